package handlers

import (
	"strconv"
	"strings"

	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
)

// HelloConfig is HelloHandler's YAML configuration.
type HelloConfig struct {
	Message                      string `yaml:"message"`
	AdvertisePipeliningExtension bool   `yaml:"advertise_pipelining_extension"`
}

// HelloHandler implements HELO and EHLO: it sets ESMTPCapable, resolves
// the client's advertised name, and (for EHLO) lists the server's
// capabilities. Grounded on rsmtpd.handlers.hello.HelloHandler.
//
// A repeat EHLO mid-session does not reset MailFrom/Recipients: this
// matches the original's behavior of only ever assigning ClientName and
// leaves any in-progress envelope untouched, so a client that issues a
// second EHLO after MAIL/RCPT does not lose its transaction.
type HelloHandler struct {
	rsmtpd.HandlerBase
	config   HelloConfig
	resolver *dnsResolver
}

func NewHelloHandler(log rsmtpd.Logger, loader rsmtpd.HandlerConfigLoader, suffix string) (rsmtpd.Handler, error) {
	h := &HelloHandler{
		HandlerBase: rsmtpd.NewHandlerBase("HelloHandler", log, loader, suffix),
		resolver:    newDNSResolver(),
	}
	_ = loader.Load("hello", suffix, &h.config)
	return h, nil
}

func (h *HelloHandler) Handle(verb, arg string, shared *rsmtpd.SharedState) (*rsmtpd.Response, error) {
	shared.ESMTPCapable = strings.ToUpper(verb) == "EHLO"

	extensions := []string{}
	extensions = append(extensions, sizeExtension(shared.MaxMessageSize), "8BITMIME", "SMTPUTF8")

	if shared.Client.TLSAvailable && !shared.Client.TLSEnabled {
		extensions = append(extensions, "STARTTLS")
	}
	if h.config.AdvertisePipeliningExtension {
		extensions = append(extensions, "PIPELINING")
	}

	name := strings.TrimSpace(arg)
	cn := &rsmtpd.ClientName{Name: name}
	if name != "" && strings.Contains(name, ".") {
		cn.ForwardDNSIP = h.resolver.byName(name, shared.Client.IP)
		cn.IsValidFQDN = cn.ForwardDNSIP != ""
	}
	cn.ReverseDNSName = h.resolver.byIP(shared.Client.IP, name)

	shared.ClientName = cn
	shared.Client.AdvertisedName = name

	message := h.config.Message
	if message == "" {
		message = "Hello <client.advertised_name> (<client.ip> port <client.port>)"
	}

	lines := append([]string{message}, extensions...)
	return rsmtpd.NewMultiLine(250, lines, rsmtpd.OK), nil
}

func sizeExtension(maxMessageSize int64) string {
	return "SIZE " + strconv.FormatInt(maxMessageSize, 10)
}
