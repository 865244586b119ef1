package rsmtpd

import "blitiri.com.ar/go/log"

// Logger is a small per-component wrapper around blitiri.com.ar/go/log,
// giving each handler and engine component a named prefix the way the
// original Python LoggerFactory handed out per-class child loggers
// (rsmtpd.core.logger_factory.LoggerFactory.get_child_logger).
type Logger struct {
	prefix string
}

// NewLogger returns a Logger that prefixes every message with name.
func NewLogger(name string) Logger {
	return Logger{prefix: name}
}

// Child returns a logger scoped under this one, e.g. NewLogger("rcpt").Child("spf").
func (l Logger) Child(name string) Logger {
	if l.prefix == "" {
		return Logger{prefix: name}
	}
	return Logger{prefix: l.prefix + "." + name}
}

func (l Logger) Debugf(format string, a ...interface{}) {
	log.Debugf(l.prefix+": "+format, a...)
}

func (l Logger) Infof(format string, a ...interface{}) {
	log.Infof(l.prefix+": "+format, a...)
}

func (l Logger) Errorf(format string, a ...interface{}) {
	log.Errorf(l.prefix+": "+format, a...)
}
