package handlers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
)

func writeTestMessage(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "msg.txt")
	body := "Subject: hi\r\n\r\nbody text\r\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newContentFilterHandler(t *testing.T, cfg ExternalContentFilterConfig) *ExternalContentFilterHandler {
	t.Helper()
	return &ExternalContentFilterHandler{
		HandlerBase: rsmtpd.NewHandlerBase("ExternalContentFilterHandler", rsmtpd.NewLogger("test"), noopConfigLoader{}, ""),
		config:      cfg,
	}
}

func TestExternalContentFilterNoCommandConfigured(t *testing.T) {
	h := newContentFilterHandler(t, ExternalContentFilterConfig{Timeout: 5})

	shared := newTestShared()
	shared.CurrentCommand.Response = rsmtpd.New(250, "queued")

	resp, err := h.HandleDataEnd(shared)
	require.NoError(t, err)
	assert.Equal(t, 250, resp.Code)
}

func TestExternalContentFilterSkipsWhenPriorNotOK(t *testing.T) {
	h := newContentFilterHandler(t, ExternalContentFilterConfig{
		Command: []string{"sh", "-c", "echo 5"},
		Timeout: 5,
	})

	shared := newTestShared()
	shared.DataFilename = "/tmp/does-not-matter"
	shared.CurrentCommand.Response = rsmtpd.New(550, "already rejected")

	resp, err := h.HandleDataEnd(shared)
	require.NoError(t, err)
	assert.Equal(t, 550, resp.Code)
}

func TestExternalContentFilterPassesBelowThreshold(t *testing.T) {
	dir := t.TempDir()
	path := writeTestMessage(t, dir)

	h := newContentFilterHandler(t, ExternalContentFilterConfig{
		Command:         []string{"sh", "-c", "echo 1"},
		RejectThreshold: 10,
		FlagThreshold:   5,
		Timeout:         5,
	})

	shared := newTestShared()
	shared.DataFilename = path
	shared.CurrentCommand.Response = rsmtpd.New(250, "queued")

	resp, err := h.HandleDataEnd(shared)
	require.NoError(t, err)
	assert.Equal(t, 250, resp.Code)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Subject: hi\r\n\r\nbody text\r\n", string(data))
}

func TestExternalContentFilterRejectsAboveThreshold(t *testing.T) {
	dir := t.TempDir()
	path := writeTestMessage(t, dir)

	h := newContentFilterHandler(t, ExternalContentFilterConfig{
		Command:         []string{"sh", "-c", "echo 20"},
		RejectThreshold: 10,
		FlagThreshold:   5,
		Timeout:         5,
	})

	shared := newTestShared()
	shared.DataFilename = path
	shared.CurrentCommand.Response = rsmtpd.New(250, "queued")

	resp, err := h.HandleDataEnd(shared)
	require.NoError(t, err)
	assert.Equal(t, 550, resp.Code)
}

func TestExternalContentFilterFlagsMessage(t *testing.T) {
	dir := t.TempDir()
	path := writeTestMessage(t, dir)

	h := newContentFilterHandler(t, ExternalContentFilterConfig{
		Command:         []string{"sh", "-c", "echo 7"},
		RejectThreshold: 10,
		FlagThreshold:   5,
		Flags:           []string{"X-Spam-Flag: YES"},
		Timeout:         5,
	})

	shared := newTestShared()
	shared.DataFilename = path
	shared.CurrentCommand.Response = rsmtpd.New(250, "queued")

	resp, err := h.HandleDataEnd(shared)
	require.NoError(t, err)
	assert.Equal(t, 250, resp.Code, "a flagged (not rejected) message keeps the prior response")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.Contains(content, "X-Spam-Flag: YES"))

	lines := strings.Split(content, "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "Subject: hi\r", lines[0])
	assert.Equal(t, "X-Spam-Flag: YES\r", lines[1])

	_, err = os.Stat(path + "--untagged")
	assert.True(t, os.IsNotExist(err), "no untagged copy of the message may be left beside it")
}

func TestExternalContentFilterNonNumericOutputPassesThrough(t *testing.T) {
	dir := t.TempDir()
	path := writeTestMessage(t, dir)

	h := newContentFilterHandler(t, ExternalContentFilterConfig{
		Command: []string{"sh", "-c", "echo not-a-number"},
		Timeout: 5,
	})

	shared := newTestShared()
	shared.DataFilename = path
	shared.CurrentCommand.Response = rsmtpd.New(250, "queued")

	resp, err := h.HandleDataEnd(shared)
	require.NoError(t, err)
	assert.Equal(t, 250, resp.Code)
}
