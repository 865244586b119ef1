package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
)

func TestGreetingHandlerDefaultMessage(t *testing.T) {
	h := mustConstruct(t, NewGreetingHandler).(rsmtpd.Command)
	shared := newTestShared()

	resp, err := h.Handle("__OPEN__", "", shared)
	require.NoError(t, err)
	assert.Equal(t, 220, resp.Code)
}

func TestGreetingHandlerCustomMessage(t *testing.T) {
	loader := fakeYAMLLoader{"greeting": "message: custom banner\n"}
	h, err := NewGreetingHandler(rsmtpd.NewLogger("test"), loader, "")
	require.NoError(t, err)
	cmd := h.(rsmtpd.Command)

	resp, err := cmd.Handle("__OPEN__", "", newTestShared())
	require.NoError(t, err)
	assert.Equal(t, 220, resp.Code)
	assert.Equal(t, "custom banner", resp.Message)
}
