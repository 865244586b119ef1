package handlers

import "github.com/alfmel/rsmtpd-go/internal/rsmtpd"

// GreetingConfig is GreetingHandler's YAML configuration.
type GreetingConfig struct {
	Message string `yaml:"message"`
}

// GreetingHandler produces the 220 banner that opens every session
// (spec.md §4.4 initial state, __OPEN__ chain), grounded on
// rsmtpd.handlers.greeting.GreetingHandler.
type GreetingHandler struct {
	rsmtpd.HandlerBase
	config GreetingConfig
}

// NewGreetingHandler satisfies the rsmtpd.Constructor signature.
func NewGreetingHandler(log rsmtpd.Logger, loader rsmtpd.HandlerConfigLoader, suffix string) (rsmtpd.Handler, error) {
	h := &GreetingHandler{HandlerBase: rsmtpd.NewHandlerBase("GreetingHandler", log, loader, suffix)}
	_ = loader.Load("greeting", suffix, &h.config)
	return h, nil
}

func (h *GreetingHandler) Handle(verb, arg string, shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	if h.config.Message != "" {
		return rsmtpd.New(220, h.config.Message), nil
	}
	return rsmtpd.New(220, "<server_name> ESMTP rsmtpd ready"), nil
}
