// Package normalize contains functions to normalize usernames and addresses.
package normalize

import (
	"github.com/alfmel/rsmtpd-go/internal/envelope"
	"golang.org/x/net/idna"
	"golang.org/x/text/secure/precis"
)

// User normalices an username using PRECIS.
// On error, it will also return the original username to simplify callers.
func User(user string) (string, error) {
	norm, err := precis.UsernameCaseMapped.String(user)
	if err != nil {
		return user, err
	}

	return norm, nil
}

// Addr normalices an email address using PRECIS.
// On error, it will also return the original address to simplify callers.
func Addr(addr string) (string, error) {
	user, domain := envelope.Split(addr)

	user, err := User(user)
	if err != nil {
		return addr, err
	}

	domain, err = Domain(domain)
	if err != nil {
		return user + "@" + domain, err
	}

	return user + "@" + domain, nil
}

// Domain normalizes a domain name to its ASCII (punycode) form using
// IDNA2008, for use as a map/set key and in wire protocol exchanges
// (HELO/EHLO argument, MAIL FROM/RCPT TO domain part).
// On error, it returns the original domain to simplify callers.
func Domain(domain string) (string, error) {
	norm, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return domain, err
	}
	return norm, nil
}

// DomainToUnicode converts an ASCII (punycode) domain back to its
// Unicode form, for display purposes (logs, Received headers).
// On error, it returns the original domain to simplify callers.
func DomainToUnicode(domain string) (string, error) {
	norm, err := idna.Lookup.ToUnicode(domain)
	if err != nil {
		return domain, err
	}
	return norm, nil
}
