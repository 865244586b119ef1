package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
)

func TestPostDataResetUnlinksSpoolFile(t *testing.T) {
	h := mustConstruct(t, NewPostDataResetHandler).(*PostDataResetHandler)
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
	shared.CurrentCommand.Response = rsmtpd.New(250, "queued")

	resp, err := h.HandleDataEnd(shared)
	require.NoError(t, err)
	assert.Equal(t, 250, resp.Code)
	assert.Equal(t, "/tmp/spool-1", unlinked)
	assert.Nil(t, shared.MailFrom)
	assert.Equal(t, 0, shared.RecipientCount())
	assert.Empty(t, shared.DataFilename)
}

func TestPostDataResetKeepsFileWhenConfigured(t *testing.T) {
	loader := fakeYAMLLoader{"post_data_reset": "keep_data_file: true\n"}
	h, err := NewPostDataResetHandler(rsmtpd.NewLogger("test"), loader, "")
	require.NoError(t, err)
	pdr := h.(*PostDataResetHandler)

	called := false
	pdr.unlink = func(string) error {
		called = true
		return nil
	}

	shared := newTestShared()
	shared.DataFilename = "/tmp/spool-1"

	_, err = pdr.HandleDataEnd(shared)
	require.NoError(t, err)
	assert.False(t, called, "keep_data_file must suppress the unlink")
}

func TestPostDataResetIgnoresUnlinkError(t *testing.T) {
	h := mustConstruct(t, NewPostDataResetHandler).(*PostDataResetHandler)
	h.unlink = func(string) error { return errors.New("permission denied") }

	shared := newTestShared()
	shared.DataFilename = "/tmp/spool-1"
	shared.CurrentCommand.Response = rsmtpd.New(250, "queued")

	resp, err := h.HandleDataEnd(shared)
	require.NoError(t, err)
	assert.Equal(t, 250, resp.Code)
}

func TestPostDataResetReturnsPriorResponseUnchanged(t *testing.T) {
	h := mustConstruct(t, NewPostDataResetHandler).(*PostDataResetHandler)
	h.unlink = func(string) error { return nil }

	shared := newTestShared()
	shared.CurrentCommand.Response = rsmtpd.New(552, "too big")

	resp, err := h.HandleDataEnd(shared)
	require.NoError(t, err)
	assert.Equal(t, 552, resp.Code)
}
