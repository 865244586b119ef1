package rsmtpd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseRenderSingleLine(t *testing.T) {
	r := New(250, "OK")
	tv := templateValues{}

	assert.Equal(t, "250 OK\r\n", r.Render(false, tv))
	assert.Equal(t, "250 OK\r\n", r.Render(true, tv))
}

func TestResponseRenderMultiLine(t *testing.T) {
	r := NewMultiLine(250, []string{"mail.example.com at your service", "SIZE 2097152", "STARTTLS"}, OK)
	tv := templateValues{}

	require.Equal(t, "250 mail.example.com at your service\r\n", r.Render(false, tv))

	want := "250-mail.example.com at your service\r\n" +
		"250-SIZE 2097152\r\n" +
		"250 STARTTLS\r\n"
	assert.Equal(t, want, r.Render(true, tv))
}

func TestResponseRenderTemplateSubstitution(t *testing.T) {
	r := New(220, "<server_name> ESMTP <version> ready for <client.ip>:<client.port>")
	tv := templateValues{
		ServerName: "mail.example.com",
		Version:    "1.0",
		ClientIP:   "10.0.0.1",
		ClientPort: "51234",
	}

	assert.Equal(t, "220 mail.example.com ESMTP 1.0 ready for 10.0.0.1:51234\r\n", r.Render(false, tv))
}

func TestResponseRenderEmptyMultiLine(t *testing.T) {
	r := NewMultiLine(250, nil, OK)
	assert.Equal(t, "", r.Render(true, templateValues{}))
}

func TestNewWithAction(t *testing.T) {
	r := NewWithAction(221, "bye", Close)
	assert.Equal(t, Close, r.Action)
	assert.Equal(t, "221 bye\r\n", r.Render(false, templateValues{}))
}

func TestActionString(t *testing.T) {
	cases := map[Action]string{
		OK:         "OK",
		Continue:   "CONTINUE",
		Invalid:    "INVALID",
		Close:      "CLOSE",
		ForceClose: "FORCE_CLOSE",
		StartTLS:   "STARTTLS",
	}
	for action, want := range cases {
		assert.Equal(t, want, action.String())
	}
}
