package handlers

import "github.com/alfmel/rsmtpd-go/internal/rsmtpd"

// PostDataResetConfig is PostDataResetHandler's YAML configuration.
type PostDataResetConfig struct {
	KeepDataFile bool `yaml:"keep_data_file"`
}

// PostDataResetHandler clears the envelope (MAIL FROM and RCPT TO) at
// the end of the __DATA__ chain, so the next MAIL command starts a
// fresh transaction, and removes the spool file unless configured to
// keep it. It should run last in the __DATA__ chain, after any content
// filter or delivery handler. Grounded on
// rsmtpd.handlers.post_data_reset.PostDataResetDataHandler.
type PostDataResetHandler struct {
	rsmtpd.HandlerBase
	config PostDataResetConfig
	unlink func(string) error
}

func NewPostDataResetHandler(log rsmtpd.Logger, loader rsmtpd.HandlerConfigLoader, suffix string) (rsmtpd.Handler, error) {
	h := &PostDataResetHandler{
		HandlerBase: rsmtpd.NewHandlerBase("PostDataResetHandler", log, loader, suffix),
		unlink:      defaultUnlink,
	}
	_ = loader.Load("post_data_reset", suffix, &h.config)
	return h, nil
}

func (h *PostDataResetHandler) HandleData(line []byte, shared *rsmtpd.SharedState) error {
	return nil
}

func (h *PostDataResetHandler) HandleDataEnd(shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	dataFilename := shared.DataFilename
	shared.ResetEnvelope()

	if dataFilename != "" && !h.config.KeepDataFile {
		if err := h.unlink(dataFilename); err != nil {
			h.Log.Infof("error attempting to delete data file; ignoring and clearing state: %v", err)
		}
	}

	return shared.CurrentCommand.Response, nil
}
