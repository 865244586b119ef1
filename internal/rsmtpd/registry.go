package rsmtpd

import "fmt"

// Constructor builds a Handler instance given the construction contract
// from spec.md §4.2: a child logger, the shared config loader, and the
// config suffix string the handler will use to load its own YAML
// section. It mirrors the three positional arguments
// rsmtpd.core.class_factory.ClassFactory passes to every handler class
// in the original Python implementation.
type Constructor func(logger Logger, loader HandlerConfigLoader, suffix string) (Handler, error)

// HandlerRegistry replaces the Python implementation's dynamic
// (module, class) import-and-reflect loading with a compile-time table
// of constructors, looked up by "module::class" key (spec.md §4.2,
// REDESIGN FLAG "Dynamic class loading by (module, class) strings").
// Instances are cached for the registry's lifetime, which is one worker
// (one accepted connection), matching the original's per-worker
// ClassFactory instance.
type HandlerRegistry struct {
	constructors map[string]Constructor
	loader       HandlerConfigLoader
	baseLogger   Logger

	instances map[string]Handler
}

// NewHandlerRegistry creates a registry backed by the given constructor
// table. table is typically the one returned by
// internal/handlers' Constructors.
func NewHandlerRegistry(table map[string]Constructor, loader HandlerConfigLoader, baseLogger Logger) *HandlerRegistry {
	return &HandlerRegistry{
		constructors: table,
		loader:       loader,
		baseLogger:   baseLogger,
		instances:    map[string]Handler{},
	}
}

func instanceKey(module, class string) string {
	return module + "::" + class
}

// get returns the cached or newly constructed handler for (module,
// class), without enforcing any capability.
func (r *HandlerRegistry) get(module, class string) (Handler, error) {
	key := instanceKey(module, class)
	if h, ok := r.instances[key]; ok {
		return h, nil
	}

	ctor, ok := r.constructors[key]
	if !ok {
		return nil, fmt.Errorf("rsmtpd: no handler registered for %q", key)
	}

	h, err := ctor(r.baseLogger.Child(class), r.loader, "")
	if err != nil {
		return nil, fmt.Errorf("rsmtpd: constructing %q: %w", key, err)
	}

	r.instances[key] = h
	return h, nil
}

// GetCommand resolves (module, class) and asserts it implements Command.
// Per spec.md §4.2, a handler that does not implement the requested
// capability is skipped, not fatal: the caller logs and moves on.
func (r *HandlerRegistry) GetCommand(module, class string) (Command, error) {
	h, err := r.get(module, class)
	if err != nil {
		return nil, err
	}
	cmd, ok := h.(Command)
	if !ok {
		return nil, fmt.Errorf("rsmtpd: %q does not implement Command", instanceKey(module, class))
	}
	return cmd, nil
}

// GetDataCommand resolves (module, class) and asserts it implements
// DataCommand.
func (r *HandlerRegistry) GetDataCommand(module, class string) (DataCommand, error) {
	h, err := r.get(module, class)
	if err != nil {
		return nil, err
	}
	dc, ok := h.(DataCommand)
	if !ok {
		return nil, fmt.Errorf("rsmtpd: %q does not implement DataCommand", instanceKey(module, class))
	}
	return dc, nil
}
