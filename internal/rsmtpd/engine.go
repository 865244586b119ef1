package rsmtpd

import (
	"strings"
	"unicode"

	"github.com/alfmel/rsmtpd-go/internal/trace"
)

// ProtocolEngine drives a single accepted connection from the initial
// greeting through QUIT or transport loss (spec.md §4.4). One engine is
// created per session; it is never shared between connections.
type ProtocolEngine struct {
	ServerName    string
	ServerVersion string

	Chains   *HandlerChainConfig
	Registry *HandlerRegistry
	TLS      *TLSManager

	Log   Logger
	Trace *trace.Trace

	sock   *LineSocket
	shared *SharedState

	currentVerb string
	currentArg  string
	haveVerb    bool
}

// NewProtocolEngine builds an engine for one accepted connection. shared
// must already carry the client's address information.
func NewProtocolEngine(serverName, serverVersion string, sock *LineSocket, shared *SharedState,
	chains *HandlerChainConfig, registry *HandlerRegistry, tlsMgr *TLSManager, log Logger) *ProtocolEngine {

	return &ProtocolEngine{
		ServerName:    serverName,
		ServerVersion: serverVersion,
		Chains:        chains,
		Registry:      registry,
		TLS:           tlsMgr,
		Log:           log,
		Trace:         trace.New("rsmtpd.Session", shared.Client.IP),
		sock:          sock,
		shared:        shared,
		currentVerb:   VerbOpen,
		haveVerb:      true,
	}
}

// Run executes the session loop until the connection closes. It never
// returns an error: transport loss, syntax errors and handler failures
// are all handled internally per spec.md §7.
func (e *ProtocolEngine) Run() {
	defer e.Trace.Finish()
	defer func() {
		if !e.shared.Client.TLSEnabled {
			Metrics.PlainSessions.Inc()
		}
	}()

	for {
		if !e.haveVerb {
			if !e.acquireCommand() {
				return
			}
		}

		var resp *Response

		if e.currentVerb == VerbData {
			r, err := e.runDataChain()
			if err != nil {
				e.Log.Infof("session ending: %v", err)
				return
			}
			resp = r
		} else {
			resp = e.runCommandChain(e.currentVerb, e.currentArg)
		}

		if resp == nil {
			resp = NewWithAction(451, "Requested action aborted: local error in processing", OK)
		}

		if resp.Action == ForceClose {
			e.Log.Infof("closing without response (FORCE_CLOSE)")
			return
		}

		if resp.Action == StartTLS {
			e.emit(resp)
			if !e.doStartTLS() {
				// doStartTLS logs; session continues in plaintext per
				// spec.md §4.4 step 3 (after a failed handshake the 454
				// was already emitted by doStartTLS).
			}
			e.haveVerb = false
			continue
		}

		e.emit(resp)

		switch resp.Action {
		case Close:
			return
		case Continue:
			e.currentVerb = VerbData
			e.currentArg = ""
			e.haveVerb = true
		default:
			e.haveVerb = false
		}
	}
}

// acquireCommand reads and decodes the next command line. It returns
// false when the session must end (RemoteClosed).
func (e *ProtocolEngine) acquireCommand() bool {
	raw, err := e.sock.ReadLine(DefaultLineLimit)
	if err != nil {
		e.Log.Infof("session ending: %v", err)
		return false
	}

	e.shared.CurrentCommand.BufferEmpty = e.sock.BufferEmpty()

	line := stripTrailingNewline(raw)
	decoded, ok := decodeLine(line)
	if !ok {
		e.currentVerb = ""
		e.currentArg = ""
		e.haveVerb = true
		e.emit(NewWithAction(500, "Syntax error: unable to decode command line", OK))
		e.haveVerb = false
		return true
	}

	verb, arg := splitVerb(decoded)
	e.currentVerb = strings.ToUpper(verb)
	e.currentArg = arg
	e.haveVerb = true
	recordCommand(e.currentVerb)
	e.Trace.Debugf("-> %s %s", e.currentVerb, e.currentArg)
	return true
}

// decodeLine decodes line as US-ASCII, switching to UTF-8 when it ends
// with the literal token " SMTPUTF8" (spec.md §6, "Wire protocol").
func decodeLine(line []byte) (string, bool) {
	s := string(line)
	if strings.HasSuffix(s, " SMTPUTF8") {
		if !isValidUTF8Line(s) {
			return "", false
		}
		return s, true
	}
	for _, b := range line {
		if b > unicode.MaxASCII {
			return "", false
		}
	}
	return s, true
}

func isValidUTF8Line(s string) bool {
	for _, r := range s {
		if r == unicode.ReplacementChar {
			return false
		}
	}
	return true
}

func splitVerb(s string) (verb, arg string) {
	i := strings.IndexByte(s, ' ')
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

// runCommandChain dispatches verb to its handler chain, implementing
// spec.md §4.4 step 2: the final response is the last non-nil response
// produced by the chain, with each handler observing the prior one via
// shared.CurrentCommand.Response.
func (e *ProtocolEngine) runCommandChain(verb, arg string) *Response {
	chain := e.Chains.ChainFor(verb)

	e.shared.CurrentCommand.Response = nil
	var final *Response

	for _, ref := range chain {
		cmd, err := e.Registry.GetCommand(ref.Module, ref.Class)
		if err != nil {
			_ = e.Trace.Errorf("skipping handler %s::%s for %s: %v", ref.Module, ref.Class, verb, err)
			continue
		}

		resp := e.invokeCommand(cmd, verb, arg)
		if resp != nil {
			e.shared.CurrentCommand.Response = resp
			final = resp
		}
	}

	return final
}

func (e *ProtocolEngine) invokeCommand(cmd Command, verb, arg string) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			_ = e.Trace.Errorf("handler panic on %s: %v", verb, panicToErr(r))
			resp = nil
		}
	}()

	r, err := cmd.Handle(verb, arg, e.shared)
	if err != nil {
		_ = e.Trace.Errorf("handler error on %s: %v", verb, err)
		return nil
	}
	return r
}

// runDataChain materialises the data-handler chain for this DATA
// command and runs the DataReader over it (spec.md §4.5).
func (e *ProtocolEngine) runDataChain() (*Response, error) {
	chain := e.Chains.ChainFor(VerbData)

	var handlers []DataCommand
	for _, ref := range chain {
		dc, err := e.Registry.GetDataCommand(ref.Module, ref.Class)
		if err != nil {
			_ = e.Trace.Errorf("skipping data handler %s::%s: %v", ref.Module, ref.Class, err)
			continue
		}
		handlers = append(handlers, dc)
	}

	reader := NewDataReader(e.Log, handlers)
	return reader.Run(e.shared, e.sock)
}

// emit renders resp and writes it to the transport. Write errors are
// logged; the engine cannot recover a dead transport mid-response, the
// next acquireCommand call will surface it.
func (e *ProtocolEngine) emit(resp *Response) {
	tv := templateValues{
		ServerName:           e.ServerName,
		Version:              e.ServerVersion,
		ClientIP:             e.shared.Client.IP,
		ClientPort:           e.shared.Client.Port,
		ClientAdvertisedName: e.shared.Client.AdvertisedName,
	}

	wire := resp.Render(e.shared.ESMTPCapable, tv)
	recordResponse(resp.Code)
	e.Trace.Debugf("<- %d %s", resp.Code, resp.Message)
	if err := e.sock.WriteString(wire); err != nil {
		e.Log.Infof("write failed, session ending: %v", err)
	}
}

// doStartTLS wraps the transport in TLS, rebuilds the LineSocket, and
// updates session state per spec.md §4.4 step 3. It returns false if TLS
// is not enabled (nothing is emitted) or if the handshake failed (it then
// emits the 454 itself).
func (e *ProtocolEngine) doStartTLS() bool {
	if e.TLS == nil || !e.TLS.Enabled() {
		return false
	}

	if !e.sock.BufferEmpty() {
		_ = e.Trace.Errorf("client pipelined past STARTTLS; discarding buffered bytes")
	}

	newConn, serverName, errResp := e.TLS.Wrap(e.sock.Conn())
	if errResp != nil {
		e.emit(errResp)
		return false
	}

	e.sock = NewLineSocket(newConn)
	e.shared.Client.TLSEnabled = true
	if serverName != "" {
		// serverName is the certificate SNI selected; it identifies this
		// server, not the client, so it updates <server_name> template
		// substitutions rather than the client's HELO/EHLO name.
		e.ServerName = serverName
	}
	Metrics.TLSSessions.Inc()
	return true
}
