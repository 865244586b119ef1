package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
)

// TransactionLogConfig is TransactionLogHandler's YAML configuration.
type TransactionLogConfig struct {
	// JSON selects logrus's JSON formatter instead of its default text
	// formatter, for deployments feeding a log aggregator.
	JSON bool `yaml:"json"`
}

// TransactionLogHandler emits one structured log line per completed
// mail transaction (MAIL..RCPT..DATA), recording the transaction ID,
// client address and advertised name, TLS use, envelope sender,
// recipient count and the final disposition code; the message size is
// not recorded. It belongs at the end of the __DATA__
// chain, after any spool or content filter handler, so
// shared.CurrentCommand.Response reflects the final decision. There is
// no equivalent handler in the original rsmtpd project; this is a
// supplemental handler built from scratch for the transaction-log
// requirement, using the logrus structured-logging library in place
// of rsmtpd's own plain-text per-handler logger. It writes to logrus's
// standard output stream (stderr), not to a per-session file, and does
// not log individual commands or responses.
type TransactionLogHandler struct {
	rsmtpd.HandlerBase
	logger *logrus.Logger
}

func NewTransactionLogHandler(log rsmtpd.Logger, loader rsmtpd.HandlerConfigLoader, suffix string) (rsmtpd.Handler, error) {
	var config TransactionLogConfig
	_ = loader.Load("transaction_log", suffix, &config)

	logger := logrus.New()
	if config.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return &TransactionLogHandler{
		HandlerBase: rsmtpd.NewHandlerBase("TransactionLogHandler", log, loader, suffix),
		logger:      logger,
	}, nil
}

func (h *TransactionLogHandler) HandleData(line []byte, shared *rsmtpd.SharedState) error {
	return nil
}

func (h *TransactionLogHandler) HandleDataEnd(shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	resp := shared.CurrentCommand.Response

	entry := h.logger.WithFields(logrus.Fields{
		"transaction_id": shared.TransactionID,
		"client_ip":      shared.Client.IP,
		"client_name":    shared.Client.AdvertisedName,
		"tls":            shared.Client.TLSEnabled,
		"recipients":     shared.RecipientCount(),
	})

	if shared.MailFrom != nil {
		entry = entry.WithField("mail_from", shared.MailFrom.Address)
	}
	if resp != nil {
		entry = entry.WithField("code", resp.Code)
	}

	entry.Info("transaction complete")

	return resp, nil
}
