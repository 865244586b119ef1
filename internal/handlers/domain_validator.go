package handlers

import (
	"strings"

	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
	"github.com/alfmel/rsmtpd-go/internal/set"
)

// DomainValidatorConfig is DomainValidatorHandler's YAML configuration.
type DomainValidatorConfig struct {
	DomainsToBlock []string `yaml:"domains_to_block"`
}

// DomainValidatorHandler verifies the sender's domain can receive
// email: it requires a valid FQDN from the HELO/EHLO exchange, rejects
// blocklisted domains, and requires at least one MX record. It is
// chained after MailHandler and observes
// shared.CurrentCommand.Response, skipping work (and preserving the
// prior response) if MailHandler already rejected the command. Grounded
// on rsmtpd.handlers.domain_validator.DomainValidator.
type DomainValidatorHandler struct {
	rsmtpd.HandlerBase
	config   DomainValidatorConfig
	blocked  *set.String
	resolver *dnsResolver
}

func NewDomainValidatorHandler(log rsmtpd.Logger, loader rsmtpd.HandlerConfigLoader, suffix string) (rsmtpd.Handler, error) {
	h := &DomainValidatorHandler{
		HandlerBase: rsmtpd.NewHandlerBase("DomainValidatorHandler", log, loader, suffix),
		resolver:    newDNSResolver(),
	}
	_ = loader.Load("domain_validator", suffix, &h.config)
	h.blocked = set.NewString(h.config.DomainsToBlock...)
	return h, nil
}

func (h *DomainValidatorHandler) Handle(verb, arg string, shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	prior := shared.CurrentCommand.Response
	if prior == nil || prior.Code != 250 {
		h.Log.Infof("skipping domain validation: previous response not 250")
		return prior, nil
	}

	domain := shared.MailFrom.Domain
	if domain == "" {
		domain = parentDomain(shared.ClientName.Name)
	}

	if !shared.ClientName.IsValidFQDN {
		h.Log.Infof("rejecting sender: client did not present a valid name")
		return rsmtpd.New(550, "We are not accepting emails from "+domain+" at this time"), nil
	}

	if h.blocked.Has(domain) || h.blockedAsParent(domain) {
		h.Log.Infof("rejecting sender: domain %q is blocklisted", domain)
		return rsmtpd.New(550, "We are not accepting emails from "+domain+" at this time"), nil
	}

	mx := h.resolver.mxRecords(domain)
	if len(mx) == 0 {
		h.Log.Infof("rejecting sender: domain %q has no MX records", domain)
		return rsmtpd.New(550, "We are not accepting emails from "+domain+" at this time"), nil
	}

	return prior, nil
}

// blockedAsParent reports whether any parent domain of domain (e.g.
// "spam.example.com" -> "example.com" -> "com") is blocklisted.
func (h *DomainValidatorHandler) blockedAsParent(domain string) bool {
	for {
		dot := strings.Index(domain, ".")
		if dot == -1 {
			return false
		}
		domain = domain[dot+1:]
		if h.blocked.Has(domain) {
			return true
		}
	}
}

func parentDomain(domain string) string {
	if strings.Count(domain, ".") > 1 {
		return domain[strings.Index(domain, ".")+1:]
	}
	return domain
}
