package handlers

import (
	"net"

	"blitiri.com.ar/go/spf"

	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
)

// SPFValidatorHandler runs an SPF check on the client's address against
// the sender's domain, chained after MailHandler. Like
// DomainValidatorHandler, it observes shared.CurrentCommand.Response and
// skips the check (preserving whatever response ran before it) unless
// the chain is currently at 250 with a non-empty, syntactically valid
// sender. Grounded on rsmtpd.handlers.spf_validator.SpfValidator,
// reimplemented against blitiri.com.ar/go/spf (the same library
// chasquid's Conn.checkSPF uses) instead of the Python pyspf package.
type SPFValidatorHandler struct {
	rsmtpd.HandlerBase
}

func NewSPFValidatorHandler(log rsmtpd.Logger, loader rsmtpd.HandlerConfigLoader, suffix string) (rsmtpd.Handler, error) {
	return &SPFValidatorHandler{HandlerBase: rsmtpd.NewHandlerBase("SPFValidatorHandler", log, loader, suffix)}, nil
}

func (h *SPFValidatorHandler) Handle(verb, arg string, shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	prior := shared.CurrentCommand.Response
	if prior == nil || prior.Code != 250 {
		h.Log.Infof("skipping SPF check: previous response not 250")
		return prior, nil
	}

	if shared.MailFrom == nil || shared.MailFrom.Address == "" {
		h.Log.Infof("skipping SPF check: empty MAIL FROM address")
		return prior, nil
	}
	if !shared.MailFrom.IsValid {
		h.Log.Infof("skipping SPF check: invalid sender")
		return prior, nil
	}

	ip := net.ParseIP(shared.Client.IP)
	if ip == nil {
		h.Log.Infof("skipping SPF check: client address %q is not an IP", shared.Client.IP)
		return prior, nil
	}

	result, err := spf.CheckHostWithSender(ip, shared.MailFrom.Domain, shared.MailFrom.Address)

	switch result {
	case spf.Fail, spf.SoftFail, spf.PermError:
		shared.MailFrom.IsValid = false
		h.Log.Infof("client failed SPF check: %v (%v)", result, err)
		return rsmtpd.New(550, "Sender Policy Framework says you are not authorized"), nil
	case spf.TempError:
		shared.MailFrom.IsValid = false
		h.Log.Infof("error performing SPF check: %v (%v)", result, err)
		return rsmtpd.New(450, "Temporary error while applying Sender Policy Framework; please try again later"), nil
	}

	h.Log.Debugf("SPF check passed: %v", result)
	return prior, nil
}
