package handlers

import (
	"strings"

	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
)

// MailHandler implements the MAIL command (MAIL FROM only). Grounded on
// rsmtpd.handlers.mail.MailHandler.
type MailHandler struct {
	rsmtpd.HandlerBase
}

func NewMailHandler(log rsmtpd.Logger, loader rsmtpd.HandlerConfigLoader, suffix string) (rsmtpd.Handler, error) {
	return &MailHandler{HandlerBase: rsmtpd.NewHandlerBase("MailHandler", log, loader, suffix)}, nil
}

func (h *MailHandler) Handle(verb, arg string, shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	if shared.ClientName == nil {
		return rsmtpd.New(503, "You must say HELO/EHLO before using this command"), nil
	}

	if !strings.HasPrefix(strings.ToUpper(arg), "FROM:") {
		return rsmtpd.New(504, "Only MAIL FROM: is implemented on this server"), nil
	}

	parsed := ParseAddress(arg[strings.Index(arg, ":")+1:], true)

	shared.MailFrom = &rsmtpd.MailAddress{
		Raw:     parsed.Input,
		Address: parsed.Address,
		Domain:  parsed.Domain,
		IsValid: parsed.IsValid,
	}

	if !parsed.IsValid {
		return rsmtpd.New(501, "Email address does not appear to be valid"), nil
	}

	if parsed.Address == "" {
		return rsmtpd.New(250, "Accepting bounced message"), nil
	}

	return rsmtpd.New(250, "OK"), nil
}
