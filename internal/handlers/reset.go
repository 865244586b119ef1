package handlers

import "github.com/alfmel/rsmtpd-go/internal/rsmtpd"

// ResetHandler implements RSET: it clears the envelope (sender,
// recipients, spool file) and returns to the post-HELO state, without
// tearing down the TCP session (spec.md §8 Testable Property 3).
// Grounded on rsmtpd.handlers.reset.ResetHandler.
type ResetHandler struct {
	rsmtpd.HandlerBase
	unlink func(string) error
}

func NewResetHandler(log rsmtpd.Logger, loader rsmtpd.HandlerConfigLoader, suffix string) (rsmtpd.Handler, error) {
	return &ResetHandler{
		HandlerBase: rsmtpd.NewHandlerBase("ResetHandler", log, loader, suffix),
		unlink:      defaultUnlink,
	}, nil
}

func (h *ResetHandler) Handle(verb, arg string, shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	if arg != "" {
		return rsmtpd.New(501, "Syntax error in parameters or arguments"), nil
	}

	if shared.DataFilename != "" {
		if err := h.unlink(shared.DataFilename); err != nil {
			h.Log.Errorf("error deleting spool file %q, ignoring: %v", shared.DataFilename, err)
		}
	}

	shared.ResetEnvelope()
	return rsmtpd.New(250, "OK"), nil
}
