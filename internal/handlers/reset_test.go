package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
)

func TestResetHandlerClearsEnvelope(t *testing.T) {
	h := mustConstruct(t, NewResetHandler).(*ResetHandler)
	var unlinked string
	h.unlink = func(path string) error {
		unlinked = path
		return nil
	}

	shared := newTestShared()
	shared.ClientName = &rsmtpd.ClientName{Name: "client.example"}
	shared.MailFrom = &rsmtpd.MailAddress{Address: "a@b.com", IsValid: true}
	shared.AddRecipient(&rsmtpd.Recipient{Address: rsmtpd.MailAddress{Address: "c@d.com", IsValid: true}})
	shared.DataFilename = "/tmp/spool-1"

	resp, err := h.Handle("RSET", "", shared)
	require.NoError(t, err)
	assert.Equal(t, 250, resp.Code)
	assert.Nil(t, shared.MailFrom)
	assert.Equal(t, 0, shared.RecipientCount())
	assert.Empty(t, shared.DataFilename)
	assert.Equal(t, "/tmp/spool-1", unlinked)
	assert.NotNil(t, shared.ClientName, "RSET must not clear the HELO/EHLO state")
}

func TestResetHandlerRejectsArgument(t *testing.T) {
	h := mustConstruct(t, NewResetHandler).(rsmtpd.Command)
	shared := newTestShared()

	resp, err := h.Handle("RSET", "unexpected", shared)
	require.NoError(t, err)
	assert.Equal(t, 501, resp.Code)
}

func TestResetHandlerIgnoresUnlinkError(t *testing.T) {
	h := mustConstruct(t, NewResetHandler).(*ResetHandler)
	h.unlink = func(string) error { return errors.New("permission denied") }

	shared := newTestShared()
	shared.DataFilename = "/tmp/spool-1"

	resp, err := h.Handle("RSET", "", shared)
	require.NoError(t, err)
	assert.Equal(t, 250, resp.Code, "an unlink failure must not fail the RSET itself")
}

func TestResetHandlerNoSpoolFile(t *testing.T) {
	h := mustConstruct(t, NewResetHandler).(*ResetHandler)
	called := false
	h.unlink = func(string) error {
		called = true
		return nil
	}

	shared := newTestShared()
	resp, err := h.Handle("RSET", "", shared)
	require.NoError(t, err)
	assert.Equal(t, 250, resp.Code)
	assert.False(t, called)
}
