package handlers

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
)

func TestTransactionLogHandlerPassesThroughResponse(t *testing.T) {
	h := mustConstruct(t, NewTransactionLogHandler).(*TransactionLogHandler)
	var buf bytes.Buffer
	h.logger.SetOutput(&buf)

	shared := newTestShared()
	shared.MailFrom = &rsmtpd.MailAddress{Address: "a@b.com", IsValid: true}
	shared.AddRecipient(&rsmtpd.Recipient{Address: rsmtpd.MailAddress{Address: "c@d.com", IsValid: true}})
	shared.CurrentCommand.Response = rsmtpd.New(250, "queued")

	resp, err := h.HandleDataEnd(shared)
	require.NoError(t, err)
	assert.Equal(t, 250, resp.Code)

	logged := buf.String()
	assert.Contains(t, logged, "transaction complete")
	assert.Contains(t, logged, "a@b.com")
	assert.Contains(t, logged, shared.TransactionID)
}

func TestTransactionLogHandlerJSONFormat(t *testing.T) {
	loader := fakeYAMLLoader{"transaction_log": "json: true\n"}
	h, err := NewTransactionLogHandler(rsmtpd.NewLogger("test"), loader, "")
	require.NoError(t, err)
	tl := h.(*TransactionLogHandler)

	_, ok := tl.logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestTransactionLogHandlerNoResponseYet(t *testing.T) {
	h := mustConstruct(t, NewTransactionLogHandler).(*TransactionLogHandler)
	var buf bytes.Buffer
	h.logger.SetOutput(&buf)

	shared := newTestShared()
	resp, err := h.HandleDataEnd(shared)
	require.NoError(t, err)
	assert.Nil(t, resp)
}
