package handlers

import "github.com/alfmel/rsmtpd-go/internal/rsmtpd"

// QuitHandler implements the SMTP QUIT command per RFC 5321, including
// the 501 response recommended in section 4.3.2 when an argument is
// given, grounded on rsmtpd.handlers.quit.Quit.
type QuitHandler struct {
	rsmtpd.HandlerBase
}

func NewQuitHandler(log rsmtpd.Logger, loader rsmtpd.HandlerConfigLoader, suffix string) (rsmtpd.Handler, error) {
	return &QuitHandler{HandlerBase: rsmtpd.NewHandlerBase("QuitHandler", log, loader, suffix)}, nil
}

func (h *QuitHandler) Handle(verb, arg string, shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	if arg != "" {
		return rsmtpd.New(501, "Syntax error in parameters or arguments"), nil
	}
	return rsmtpd.NewWithAction(221, "<server_name> closing connection", rsmtpd.Close), nil
}
