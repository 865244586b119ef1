package handlers

import (
	"strings"

	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
)

// RecipientHandler implements the RCPT command (RCPT TO only), with a
// pluggable RecipientValidator (defaulting to SimpleRecipientValidator,
// accept-all) demonstrating the extension point named in spec.md §9.
// Grounded on rsmtpd.handlers.recipient.RecipientHandler.
type RecipientHandler struct {
	rsmtpd.HandlerBase
	validator RecipientValidator
}

func NewRecipientHandler(log rsmtpd.Logger, loader rsmtpd.HandlerConfigLoader, suffix string) (rsmtpd.Handler, error) {
	return NewRecipientHandlerWithValidator(log, loader, suffix, NewSimpleRecipientValidator())
}

// NewRecipientHandlerWithValidator lets a deployment supply its own
// RecipientValidator instead of the accept-all default, e.g. wiring the
// handler to a local mailbox directory.
func NewRecipientHandlerWithValidator(log rsmtpd.Logger, loader rsmtpd.HandlerConfigLoader, suffix string, validator RecipientValidator) (rsmtpd.Handler, error) {
	return &RecipientHandler{
		HandlerBase: rsmtpd.NewHandlerBase("RecipientHandler", log, loader, suffix),
		validator:   validator,
	}, nil
}

func (h *RecipientHandler) Handle(verb, arg string, shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	if shared.ClientName == nil {
		return rsmtpd.New(503, "You must say HELO/EHLO before using this command"), nil
	}

	if !strings.HasPrefix(strings.ToUpper(arg), "TO:") {
		return rsmtpd.New(504, "Only RCPT TO: is implemented on this server"), nil
	}

	parsed := ParseAddress(arg[strings.Index(arg, ":")+1:], false)
	if !parsed.IsValid {
		return rsmtpd.New(501, "Email address does not appear to be valid"), nil
	}

	validated := h.validator.Validate(parsed)
	h.Log.Infof("recipient <%s> validation result: %d", parsed.Address, validated.Result)

	switch validated.Result {
	case Valid, SoftInvalid:
		shared.AddRecipient(&rsmtpd.Recipient{
			Address: rsmtpd.MailAddress{
				Raw:     parsed.Input,
				Address: parsed.Address,
				Domain:  parsed.Domain,
				IsValid: true,
			},
			DeliverTo: validated.DeliverTo,
		})
		return rsmtpd.New(250, "OK"), nil
	case Disabled:
		return rsmtpd.New(550, "This recipient no longer exists"), nil
	case InvalidDomain:
		return rsmtpd.New(550, "Relaying not allowed"), nil
	default:
		return rsmtpd.New(550, "Invalid recipient"), nil
	}
}
