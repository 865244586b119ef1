package handlers

import (
	"strings"

	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
)

// RejectAllConfig is RejectAllHandler's YAML configuration.
type RejectAllConfig struct {
	// CloseConnection, when true (the default), force-closes the
	// connection on every command. When false, the handler keeps the
	// session open and returns 521/351 per command so a client can at
	// least observe the rejection before giving up.
	CloseConnection *bool `yaml:"close_connection"`
}

func (c RejectAllConfig) closeConnection() bool {
	if c.CloseConnection == nil {
		return true
	}
	return *c.CloseConnection
}

// RejectAllHandler always returns SMTP code 521 per RFC 7504. It backs
// both the __OPEN__ and __DEFAULT__ reserved chains in the built-in
// safety configuration (spec.md §4.6), guaranteeing a misconfigured
// server is safe by default. Grounded on rsmtpd.handlers.reject_all.RejectAll.
type RejectAllHandler struct {
	rsmtpd.HandlerBase
	config RejectAllConfig
}

func NewRejectAllHandler(log rsmtpd.Logger, loader rsmtpd.HandlerConfigLoader, suffix string) (rsmtpd.Handler, error) {
	h := &RejectAllHandler{HandlerBase: rsmtpd.NewHandlerBase("RejectAllHandler", log, loader, suffix)}
	_ = loader.Load("reject_all", suffix, &h.config)
	return h, nil
}

func (h *RejectAllHandler) Handle(verb, arg string, shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	if h.config.closeConnection() {
		return rsmtpd.NewWithAction(521, "<server_name> does not accept mail at this time", rsmtpd.ForceClose), nil
	}
	if strings.ToUpper(verb) == "DATA" {
		return rsmtpd.NewWithAction(351, "Requested action aborted", rsmtpd.OK), nil
	}
	return rsmtpd.New(521, "<server_name> does not accept mail at this time"), nil
}

func (h *RejectAllHandler) HandleData(line []byte, shared *rsmtpd.SharedState) error {
	return nil
}

func (h *RejectAllHandler) HandleDataEnd(shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	return rsmtpd.New(521, "<server_name> does not accept mail at this time"), nil
}
