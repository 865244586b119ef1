package handlers

import "github.com/alfmel/rsmtpd-go/internal/rsmtpd"

// DataHandler is the DATA prelude: it verifies the session is ready
// (HELO/EHLO done, sender set, at least one recipient) and, if so,
// emits 354 and CONTINUE to direct the engine into the DataReader.
// Grounded on rsmtpd.handlers.data.DataHandler.
type DataHandler struct {
	rsmtpd.HandlerBase
}

func NewDataHandler(log rsmtpd.Logger, loader rsmtpd.HandlerConfigLoader, suffix string) (rsmtpd.Handler, error) {
	return &DataHandler{HandlerBase: rsmtpd.NewHandlerBase("DataHandler", log, loader, suffix)}, nil
}

func (h *DataHandler) Handle(verb, arg string, shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	if arg != "" {
		return rsmtpd.New(501, "Syntax error in parameters or arguments"), nil
	}
	if shared.ClientName == nil {
		return rsmtpd.New(503, "You must say HELO/EHLO before using this command"), nil
	}
	if shared.MailFrom == nil {
		return rsmtpd.New(503, "You must first use the MAIL command before attempting to send DATA"), nil
	}
	if shared.RecipientCount() == 0 {
		return rsmtpd.New(503, "You must provide one or more valid recipients before attempting to send DATA"), nil
	}

	return rsmtpd.NewWithAction(354, "Start mail input; end with <CRLF>.<CRLF>", rsmtpd.Continue), nil
}
