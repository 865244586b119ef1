package rsmtpd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSharedStateDefaults(t *testing.T) {
	s := NewSharedState("10.0.0.5", "4025", true, "1.0", 1024)

	assert.NotEmpty(t, s.TransactionID)
	assert.Equal(t, "[10.0.0.5:4025]", s.Client.AdvertisedName)
	assert.True(t, s.Client.TLSAvailable)
	assert.False(t, s.Client.TLSEnabled)
	assert.False(t, s.ReadyForData())
}

func TestAddRecipientIsCaseInsensitive(t *testing.T) {
	s := NewSharedState("127.0.0.1", "25", false, "1.0", 1024)

	s.AddRecipient(&Recipient{Address: MailAddress{Address: "User@Example.com", IsValid: true}})
	assert.True(t, s.HasRecipient("user@example.com"))
	assert.Equal(t, 1, s.RecipientCount())

	s.AddRecipient(&Recipient{Address: MailAddress{Address: "user@example.com", IsValid: true}})
	assert.Equal(t, 1, s.RecipientCount(), "same address differing only in case must not be added twice")
}

func TestReadyForData(t *testing.T) {
	s := NewSharedState("127.0.0.1", "25", false, "1.0", 1024)
	require.False(t, s.ReadyForData())

	s.ClientName = &ClientName{Name: "client.example"}
	require.False(t, s.ReadyForData())

	s.MailFrom = &MailAddress{Address: "a@b.com", IsValid: true}
	require.False(t, s.ReadyForData())

	s.AddRecipient(&Recipient{Address: MailAddress{Address: "c@d.com", IsValid: true}})
	assert.True(t, s.ReadyForData())
}

func TestResetEnvelopeClearsState(t *testing.T) {
	s := NewSharedState("127.0.0.1", "25", false, "1.0", 1024)
	s.ClientName = &ClientName{Name: "client.example"}
	s.MailFrom = &MailAddress{Address: "a@b.com", IsValid: true}
	s.AddRecipient(&Recipient{Address: MailAddress{Address: "c@d.com", IsValid: true}})
	s.DataFilename = "/tmp/spool-1"

	s.ResetEnvelope()

	assert.Nil(t, s.MailFrom)
	assert.Equal(t, 0, s.RecipientCount())
	assert.Empty(t, s.DataFilename)
	assert.NotNil(t, s.ClientName, "ResetEnvelope must not clear the HELO/EHLO state")
}

func TestExtensions(t *testing.T) {
	s := NewSharedState("127.0.0.1", "25", false, "1.0", 1024)

	_, ok := s.Extension("proxy")
	assert.False(t, ok)

	s.SetExtension("proxy", 42)
	v, ok := s.Extension("proxy")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}
