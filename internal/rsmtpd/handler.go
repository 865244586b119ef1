package rsmtpd

// Command is the capability a handler implements to participate in the
// verb dispatch chain (spec.md §9, "Capability set"). A handler invoked
// for a verb may decline to produce a response (returning nil), leaving
// the running response from an earlier handler in the chain untouched.
type Command interface {
	Handle(verb, arg string, shared *SharedState) (*Response, error)
}

// DataCommand is the capability a handler implements to participate in
// the DATA body chain: one call per accumulated body line while the
// session is in CONTINUE mode, and one call at end-of-data.
type DataCommand interface {
	HandleData(line []byte, shared *SharedState) error
	HandleDataEnd(shared *SharedState) (*Response, error)
}

// HandlerConfigLoader loads a handler's own YAML configuration section,
// named after its handler key and (optional) config suffix, into v (spec.md §4.2 construction
// contract). Concrete implementation lives in internal/rsmtpd/config.
type HandlerConfigLoader interface {
	Load(handlerKey, suffix string, v interface{}) error
}

// Handler is implemented by every object the HandlerRegistry can
// construct. A concrete handler type embeds this via HandlerBase (or
// implements it directly) and additionally implements Command,
// DataCommand, or both; the registry enforces that at least one
// capability is present for the requested set.
type Handler interface {
	Name() string
}

// HandlerBase supplies the common construction contract described in
// spec.md §4.2: a child logger, the config loader, and the config
// suffix used to load this handler's own YAML section. Concrete
// handlers embed it to get Name() and the Suffix field for free.
type HandlerBase struct {
	Log          Logger
	ConfigLoader HandlerConfigLoader
	Suffix       string
	name         string
}

// NewHandlerBase constructs the embeddable base every handler
// constructor should use.
func NewHandlerBase(name string, logger Logger, loader HandlerConfigLoader, suffix string) HandlerBase {
	return HandlerBase{Log: logger, ConfigLoader: loader, Suffix: suffix, name: name}
}

// Name returns the handler's registered class name.
func (b HandlerBase) Name() string { return b.name }
