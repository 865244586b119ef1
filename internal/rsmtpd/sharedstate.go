package rsmtpd

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
)

// ClientInfo describes the remote peer, as known at accept time and as
// amended by STARTTLS. AdvertisedName defaults to "[ip:port]" until a
// HELO/EHLO handler sets it (spec.md §3 invariant 1).
type ClientInfo struct {
	IP             string
	Port           string
	TLSAvailable   bool
	TLSEnabled     bool
	AdvertisedName string
}

// ClientName is populated by the HELO/EHLO handler.
type ClientName struct {
	Name           string
	IsValidFQDN    bool
	ForwardDNSIP   string
	ReverseDNSName string
}

// MailAddress is a parsed sender or recipient address. IsValid records
// whether a validator has accepted it; handlers downstream of the parser
// (e.g. an SPF validator) may flip it to false without discarding the
// parsed value, matching rsmtpd's MailFrom.is_valid mutation pattern.
type MailAddress struct {
	Raw     string
	Address string
	Domain  string
	IsValid bool
}

// Recipient is a validated RCPT target plus any routing metadata a
// RecipientValidator wants to stash (e.g. the local mailbox to deliver
// to).
type Recipient struct {
	Address   MailAddress
	DeliverTo string
}

// CurrentCommand is scratch state for the command currently being
// dispatched (spec.md §3). BufferEmpty is set each time a command line
// is read; Response is cleared at the start of each command's chain
// dispatch and is not cleared while DATA body lines are dispatched.
type CurrentCommand struct {
	BufferEmpty bool
	Response    *Response
}

// SharedState is the per-session mutable context threaded through every
// handler invocation (spec.md §3, "SharedState"). One is created per
// accepted connection and discarded on close.
type SharedState struct {
	TransactionID string
	ServerVersion string

	Client     ClientInfo
	ClientName *ClientName

	ESMTPCapable   bool
	MaxMessageSize int64

	MailFrom   *MailAddress
	recipients map[string]*Recipient

	DataFilename string

	LastCommandHasStandardLineEnding bool

	CurrentCommand CurrentCommand

	// Extensions is scratch space for handlers that need per-session
	// state beyond the fields above. Handlers must only write under
	// their own key (spec.md §9).
	mu         sync.Mutex
	extensions map[string]interface{}
}

// NewSharedState creates a new session context with a fresh transaction
// ID and default advertised name.
func NewSharedState(ip, port string, tlsAvailable bool, serverVersion string, maxMessageSize int64) *SharedState {
	return &SharedState{
		TransactionID:  newTransactionID(),
		ServerVersion:  serverVersion,
		MaxMessageSize: maxMessageSize,
		Client: ClientInfo{
			IP:             ip,
			Port:           port,
			TLSAvailable:   tlsAvailable,
			AdvertisedName: "[" + ip + ":" + port + "]",
		},
		recipients: map[string]*Recipient{},
		extensions: map[string]interface{}{},
	}
}

func newTransactionID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// AddRecipient records a validated recipient, keyed by case-insensitive
// address equality (spec.md §3 Session field "recipients").
func (s *SharedState) AddRecipient(r *Recipient) {
	s.recipients[strings.ToLower(r.Address.Address)] = r
}

// HasRecipient reports whether addr is already a recipient.
func (s *SharedState) HasRecipient(addr string) bool {
	_, ok := s.recipients[strings.ToLower(addr)]
	return ok
}

// Recipients returns a snapshot slice of the current recipients.
func (s *SharedState) Recipients() []*Recipient {
	out := make([]*Recipient, 0, len(s.recipients))
	for _, r := range s.recipients {
		out = append(out, r)
	}
	return out
}

// RecipientCount reports how many recipients have been accepted so far.
func (s *SharedState) RecipientCount() int {
	return len(s.recipients)
}

// ReadyForData implements invariant 1 from spec.md §3: DATA may be
// accepted only once a sender, at least one recipient, and a client name
// are all present.
func (s *SharedState) ReadyForData() bool {
	return len(s.recipients) > 0 && s.MailFrom != nil && s.ClientName != nil && s.ClientName.Name != ""
}

// ResetEnvelope clears MAIL/RCPT/DATA state, implementing the RESET
// invariant from spec.md §8 (Testable Property 3). It does not unlink the
// spool file; that is a handler's responsibility (invariant 4).
func (s *SharedState) ResetEnvelope() {
	s.MailFrom = nil
	s.recipients = map[string]*Recipient{}
	s.DataFilename = ""
}

// Extension fetches per-handler scratch state stored under key.
func (s *SharedState) Extension(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.extensions[key]
	return v, ok
}

// SetExtension stores per-handler scratch state under key. Handlers
// should use their own registry key (module::class, see HandlerRegistry)
// to avoid clobbering another handler's state.
func (s *SharedState) SetExtension(key string, v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extensions[key] = v
}
