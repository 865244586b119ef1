package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
)

func TestRecipientHandlerRequiresHello(t *testing.T) {
	h := mustConstruct(t, NewRecipientHandler).(rsmtpd.Command)
	shared := newTestShared()

	resp, err := h.Handle("RCPT", "TO:<a@b.com>", shared)
	require.NoError(t, err)
	assert.Equal(t, 503, resp.Code)
}

func TestRecipientHandlerAcceptsValidRecipient(t *testing.T) {
	h := mustConstruct(t, NewRecipientHandler).(rsmtpd.Command)
	shared := newTestShared()
	shared.ClientName = &rsmtpd.ClientName{Name: "client.example"}

	resp, err := h.Handle("RCPT", "TO:<rcpt@example.com>", shared)
	require.NoError(t, err)
	assert.Equal(t, 250, resp.Code)
	assert.Equal(t, 1, shared.RecipientCount())
	assert.True(t, shared.HasRecipient("rcpt@example.com"))
}

func TestRecipientHandlerRejectsInvalidAddress(t *testing.T) {
	h := mustConstruct(t, NewRecipientHandler).(rsmtpd.Command)
	shared := newTestShared()
	shared.ClientName = &rsmtpd.ClientName{Name: "client.example"}

	resp, err := h.Handle("RCPT", "TO:<not valid>", shared)
	require.NoError(t, err)
	assert.Equal(t, 501, resp.Code)
	assert.Equal(t, 0, shared.RecipientCount())
}

func TestRecipientHandlerRejectsEmptyRecipient(t *testing.T) {
	h := mustConstruct(t, NewRecipientHandler).(rsmtpd.Command)
	shared := newTestShared()
	shared.ClientName = &rsmtpd.ClientName{Name: "client.example"}

	resp, err := h.Handle("RCPT", "TO:<>", shared)
	require.NoError(t, err)
	assert.Equal(t, 501, resp.Code)
}

type disabledValidator struct{}

func (disabledValidator) Validate(addr ParsedAddress) ValidatedRecipient {
	return ValidatedRecipient{ParsedAddress: addr, Result: Disabled}
}

func TestRecipientHandlerCustomValidatorDisabled(t *testing.T) {
	h, err := NewRecipientHandlerWithValidator(rsmtpd.NewLogger("test"), noopConfigLoader{}, "", disabledValidator{})
	require.NoError(t, err)
	cmd := h.(rsmtpd.Command)

	shared := newTestShared()
	shared.ClientName = &rsmtpd.ClientName{Name: "client.example"}

	resp, err := cmd.Handle("RCPT", "TO:<rcpt@example.com>", shared)
	require.NoError(t, err)
	assert.Equal(t, 550, resp.Code)
	assert.Equal(t, 0, shared.RecipientCount())
}

type invalidDomainValidator struct{}

func (invalidDomainValidator) Validate(addr ParsedAddress) ValidatedRecipient {
	return ValidatedRecipient{ParsedAddress: addr, Result: InvalidDomain}
}

func TestRecipientHandlerCustomValidatorInvalidDomain(t *testing.T) {
	h, err := NewRecipientHandlerWithValidator(rsmtpd.NewLogger("test"), noopConfigLoader{}, "", invalidDomainValidator{})
	require.NoError(t, err)
	cmd := h.(rsmtpd.Command)

	shared := newTestShared()
	shared.ClientName = &rsmtpd.ClientName{Name: "client.example"}

	resp, err := cmd.Handle("RCPT", "TO:<rcpt@example.com>", shared)
	require.NoError(t, err)
	assert.Equal(t, 550, resp.Code)
}
