package handlers

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
)

const proxyExtensionKey = "internal/handlers::ProxyHandler"

// ProxyConfig is ProxyHandler's YAML configuration.
type ProxyConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	DialTimeoutSec int    `yaml:"dial_timeout_seconds"`
}

// proxyConn bundles the upstream connection with a buffered reader, and
// is what gets stashed in SharedState under proxyExtensionKey.
type proxyConn struct {
	conn net.Conn
	r    *bufio.Reader
}

// ProxyHandler forwards the entire SMTP dialogue verbatim to an
// upstream server: every command this session receives (starting with
// the synthetic __OPEN__ verb on accept) is relayed, the upstream's
// response is parsed back into a Response, and the DATA body is
// streamed through unmodified. STARTTLS and AUTH lines are stripped
// from a proxied EHLO's capability list, since this layer does not
// proxy a TLS handshake or authentication state. Grounded on
// rsmtpd.handlers.proxy.Proxy.
type ProxyHandler struct {
	rsmtpd.HandlerBase
	config ProxyConfig
}

func NewProxyHandler(log rsmtpd.Logger, loader rsmtpd.HandlerConfigLoader, suffix string) (rsmtpd.Handler, error) {
	h := &ProxyHandler{HandlerBase: rsmtpd.NewHandlerBase("ProxyHandler", log, loader, suffix)}
	_ = loader.Load("proxy", suffix, &h.config)
	if h.config.DialTimeoutSec <= 0 {
		h.config.DialTimeoutSec = 10
	}
	return h, nil
}

func (h *ProxyHandler) Handle(verb, arg string, shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	if verb == rsmtpd.VerbOpen {
		addr := net.JoinHostPort(h.config.Host, strconv.Itoa(h.config.Port))
		conn, err := net.DialTimeout("tcp", addr, time.Duration(h.config.DialTimeoutSec)*time.Second)
		if err != nil {
			h.Log.Errorf("unable to connect to upstream %s: %v", addr, err)
			return rsmtpd.NewWithAction(421, "Service temporarily unavailable", rsmtpd.ForceClose), nil
		}

		pc := &proxyConn{conn: conn, r: bufio.NewReader(conn)}
		shared.SetExtension(proxyExtensionKey, pc)

		data, err := h.readResponse(pc)
		if err != nil {
			h.Log.Errorf("error reading upstream greeting: %v", err)
			return rsmtpd.NewWithAction(421, "Service temporarily unavailable", rsmtpd.ForceClose), nil
		}
		return parseProxyResponse(data, false), nil
	}

	pc, ok := h.proxyConn(shared)
	if !ok {
		h.Log.Errorf("proxy command issued without an open upstream connection")
		return rsmtpd.NewWithAction(421, "Service temporarily unavailable", rsmtpd.ForceClose), nil
	}

	isEHLO := verb == "EHLO"
	if isEHLO {
		shared.ESMTPCapable = true
	}

	if err := h.sendCommand(pc, verb, arg); err != nil {
		h.Log.Errorf("error writing to upstream: %v", err)
		return rsmtpd.NewWithAction(421, "Service temporarily unavailable", rsmtpd.ForceClose), nil
	}

	data, err := h.readResponse(pc)
	if err != nil {
		h.Log.Errorf("error reading from upstream: %v", err)
		return rsmtpd.NewWithAction(421, "Service temporarily unavailable", rsmtpd.ForceClose), nil
	}

	resp := parseProxyResponse(data, isEHLO)
	if verb == "QUIT" {
		resp = rsmtpd.NewWithAction(resp.Code, resp.Message, rsmtpd.Close)
	}
	return resp, nil
}

func (h *ProxyHandler) HandleData(line []byte, shared *rsmtpd.SharedState) error {
	pc, ok := h.proxyConn(shared)
	if !ok {
		return nil
	}
	_, err := pc.conn.Write(line)
	return err
}

func (h *ProxyHandler) HandleDataEnd(shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	pc, ok := h.proxyConn(shared)
	if !ok {
		return rsmtpd.New(451, "Unable to deliver message at this time. Please try again later."), nil
	}

	if _, err := pc.conn.Write([]byte(".\r\n")); err != nil {
		h.Log.Errorf("error writing DATA terminator to upstream: %v", err)
		return rsmtpd.New(451, "Unable to deliver message at this time. Please try again later."), nil
	}

	data, err := h.readResponse(pc)
	if err != nil {
		h.Log.Errorf("error reading upstream DATA response: %v", err)
		return rsmtpd.New(451, "Unable to deliver message at this time. Please try again later."), nil
	}
	return parseProxyResponse(data, false), nil
}

func (h *ProxyHandler) proxyConn(shared *rsmtpd.SharedState) (*proxyConn, bool) {
	v, ok := shared.Extension(proxyExtensionKey)
	if !ok {
		return nil, false
	}
	pc, ok := v.(*proxyConn)
	return pc, ok
}

func (h *ProxyHandler) sendCommand(pc *proxyConn, verb, arg string) error {
	line := verb
	if arg != "" {
		line += " " + arg
	}
	_, err := pc.conn.Write([]byte(line + "\r\n"))
	return err
}

// readResponse reads one logical SMTP response (one or more lines,
// terminated by a line whose 4th character is a space rather than a
// dash) from the upstream connection.
func (h *ProxyHandler) readResponse(pc *proxyConn) (string, error) {
	var b strings.Builder
	for {
		line, err := pc.r.ReadString('\n')
		if err != nil {
			return "", err
		}
		b.WriteString(line)
		trimmed := strings.TrimRight(line, "\r\n")
		if len(trimmed) < 4 || trimmed[3] == ' ' {
			break
		}
	}
	return b.String(), nil
}

// parseProxyResponse turns raw upstream SMTP response text into a
// Response, stripping STARTTLS/AUTH lines from a proxied EHLO's
// capability list.
func parseProxyResponse(data string, isEHLO bool) *rsmtpd.Response {
	rawLines := strings.Split(strings.TrimRight(data, "\r\n"), "\n")

	code := 0
	var multiLine []string
	for _, raw := range rawLines {
		line := strings.TrimRight(raw, "\r")
		if line == "" {
			continue
		}
		if len(line) < 4 {
			continue
		}
		if line[3] == ' ' || line[3] == '-' {
			if c, err := strconv.Atoi(line[0:3]); err == nil {
				code = c
			}
		}
		message := line[4:]
		if isEHLO {
			upper := strings.ToUpper(message)
			if upper == "STARTTLS" || strings.HasPrefix(upper, "AUTH") {
				continue
			}
		}
		multiLine = append(multiLine, message)
	}

	if code == 0 {
		return rsmtpd.New(421, "Service temporarily unavailable")
	}

	action := rsmtpd.OK
	if code == 354 {
		action = rsmtpd.Continue
	}

	return rsmtpd.NewMultiLine(code, multiLine, action)
}
