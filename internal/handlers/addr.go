// Package handlers implements the default Command/DataCommand library
// for the engine, grounded on the original rsmtpd project's built-in
// handler modules.
package handlers

import (
	"regexp"
	"strings"

	"github.com/alfmel/rsmtpd-go/internal/normalize"
)

// ParsedAddress is the result of parsing a MAIL FROM:/RCPT TO: argument,
// grounded on rsmtpd.validators.email_address.parser.ParsedEmailAddress.
type ParsedAddress struct {
	IsValid              bool
	Input                string
	Address              string
	LocalPart            string
	Domain               string
	IsUTF8               bool
	ContainedRFCBrackets bool
}

var angleBrackets = regexp.MustCompile(`<(.*)>`)

var domainPattern = regexp.MustCompile(`^\w[\w.-]+\w+$`)
var localPartForbidden = regexp.MustCompile(`[@\\ ]`)

// ParseAddress parses the argument following "FROM:" or "TO:" in a MAIL
// or RCPT command. When allowEmpty is true, an empty address (the null
// reverse-path "<>") is accepted as valid, matching MAIL FROM's bounce
// handling.
func ParseAddress(input string, allowEmpty bool) ParsedAddress {
	var p ParsedAddress

	if strings.HasSuffix(input, " SMTPUTF8") {
		p.IsUTF8 = true
		input = strings.TrimSpace(strings.Replace(input, " SMTPUTF8", "", 1))
	}
	p.Input = input

	if m := angleBrackets.FindStringSubmatch(input); m != nil {
		p.ContainedRFCBrackets = true
		p.Address = m[1]
	} else {
		p.Address = strings.TrimSpace(input)
	}

	at := strings.LastIndex(p.Address, "@")
	if at != -1 {
		p.LocalPart = p.Address[:at]
		domain := strings.ToLower(p.Address[at+1:])
		// Normalize internationalized domains to their ASCII (punycode)
		// form so the rest of the pipeline (blocklists, MX lookups,
		// Received headers) compares/logs a single canonical form; on
		// error (malformed label) the domain is kept as-is and left to
		// validDomain to reject.
		if normalized, err := normalize.Domain(domain); err == nil {
			domain = normalized
		}
		p.Domain = domain
		p.IsValid = validDomain(p.Domain) && validLocalPart(p.LocalPart)
	} else {
		p.LocalPart = p.Address
	}

	if p.Address == "" && allowEmpty {
		p.IsValid = true
	}

	return p
}

func validDomain(domain string) bool {
	if strings.Contains(domain, "..") {
		return false
	}
	if strings.Contains(domain, "_") {
		return false
	}
	return domainPattern.MatchString(domain)
}

func validLocalPart(localPart string) bool {
	if localPart == "" || localPart == `""` {
		return false
	}
	if strings.HasPrefix(localPart, `"`) && strings.HasSuffix(localPart, `"`) {
		return true
	}
	if strings.Contains(localPart, "..") {
		return false
	}
	if localPartForbidden.MatchString(localPart) {
		return false
	}
	return true
}
