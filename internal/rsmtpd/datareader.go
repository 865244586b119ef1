package rsmtpd

// DataReader drives the DATA body once the engine's current command is
// __DATA__ (spec.md §4.5). It materialises the data-handler chain once
// per DATA command; the handler instances themselves live for the whole
// session, cached in the HandlerRegistry.
type DataReader struct {
	log      Logger
	handlers []DataCommand
}

// NewDataReader builds a reader over the given data-handler chain, in
// invocation order.
func NewDataReader(log Logger, handlers []DataCommand) *DataReader {
	return &DataReader{log: log, handlers: handlers}
}

// Run reads lines from sock until the terminating "." line, streaming
// each unstuffed line to every data handler, then calls HandleDataEnd on
// each handler in order and returns the last non-nil response (spec.md
// §4.5). If no handler ever returns a response, it returns a 451.
func (d *DataReader) Run(shared *SharedState, sock *LineSocket) (*Response, error) {
	for {
		raw, err := sock.ReadLine(DefaultLineLimit)
		if err != nil {
			return nil, err
		}

		line := stripTrailingNewline(raw)
		if string(trimTrailingWS(line)) == "." {
			break
		}

		if len(line) > 0 && line[0] == '.' {
			line = line[1:]
		}

		// Handlers receive the line with its terminator restored: the wire
		// protocol's own CRLF is stripped above only to detect the
		// terminating "." and undo dot-stuffing, not to change what ends up
		// in the spooled message (spec.md §8 scenario 4).
		delivered := append(append([]byte(nil), line...), '\r', '\n')

		for _, h := range d.handlers {
			if err := d.invokeHandleData(h, delivered, shared); err != nil {
				d.log.Errorf("data handler error: %v", err)
			}
		}
	}

	var final *Response
	for _, h := range d.handlers {
		resp, err := d.invokeHandleDataEnd(h, shared)
		if err != nil {
			d.log.Errorf("data handler end error: %v", err)
			continue
		}
		if resp != nil {
			shared.CurrentCommand.Response = resp
			final = resp
		}
	}

	if final == nil {
		return NewWithAction(451, "Requested action aborted: error in processing", OK), nil
	}
	return final, nil
}

// invokeHandleData recovers from a panicking handler, matching spec.md
// §4.5 step 4's "any handler exception is logged; other handlers
// continue".
func (d *DataReader) invokeHandleData(h DataCommand, line []byte, shared *SharedState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToErr(r)
		}
	}()
	return h.HandleData(line, shared)
}

func (d *DataReader) invokeHandleDataEnd(h DataCommand, shared *SharedState) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToErr(r)
		}
	}()
	return h.HandleDataEnd(shared)
}

func stripTrailingNewline(b []byte) []byte {
	n := len(b)
	if n > 0 && b[n-1] == '\n' {
		n--
	}
	if n > 0 && b[n-1] == '\r' {
		n--
	}
	return b[:n]
}

func trimTrailingWS(b []byte) []byte {
	n := len(b)
	for n > 0 && (b[n-1] == ' ' || b[n-1] == '\t') {
		n--
	}
	return b[:n]
}
