package handlers

import "github.com/alfmel/rsmtpd-go/internal/rsmtpd"

// StartTLSHandler implements the STARTTLS verb (RFC 3207): if the
// listener has no TLS configuration at all, it responds 500; if the
// session is already encrypted, 503; otherwise it answers 220 with
// action StartTLS, telling the engine to perform the handshake once the
// response is written. Grounded on rsmtpd.handlers.starttls.StartTLS.
type StartTLSHandler struct {
	rsmtpd.HandlerBase
}

func NewStartTLSHandler(log rsmtpd.Logger, loader rsmtpd.HandlerConfigLoader, suffix string) (rsmtpd.Handler, error) {
	return &StartTLSHandler{HandlerBase: rsmtpd.NewHandlerBase("StartTLSHandler", log, loader, suffix)}, nil
}

func (h *StartTLSHandler) Handle(verb, arg string, shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	if !shared.Client.TLSAvailable {
		return rsmtpd.New(500, "Syntax error, command unrecognized"), nil
	}
	if shared.Client.TLSEnabled {
		return rsmtpd.New(503, "TLS already started"), nil
	}
	return rsmtpd.NewWithAction(220, "Ready to start TLS", rsmtpd.StartTLS), nil
}
