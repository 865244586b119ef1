package handlers

// ValidationResult is the outcome of validating a parsed recipient
// address, grounded on rsmtpd.validators.email_address.recipient's
// VALID/SOFT_INVALID/DISABLED/INVALID_DOMAIN/INVALID constants.
type ValidationResult int

const (
	Valid ValidationResult = iota
	SoftInvalid
	Disabled
	InvalidDomain
	Invalid
)

// ValidatedRecipient is a ParsedAddress plus the validator's verdict and
// routing target.
type ValidatedRecipient struct {
	ParsedAddress
	Result    ValidationResult
	DeliverTo string
}

// RecipientValidator is the pluggable extension point named in spec.md
// §9: a RecipientHandler is constructed with one, defaulting to
// SimpleRecipientValidator, and callers may supply their own
// implementation (e.g. one backed by a directory service or alias
// database) without touching RecipientHandler itself.
type RecipientValidator interface {
	Validate(addr ParsedAddress) ValidatedRecipient
}

// SimpleRecipientValidator accepts every syntactically valid address,
// delivering to the address itself. It is the engine's built-in
// default, matching spec.md §9's "demonstrates the extension point"
// framing: real deployments are expected to supply their own validator
// (e.g. one backed by a local mailbox directory), grounded in shape on
// rsmtpd.validators.email_address.simple_recipient_validator but
// simplified to accept-all (domain/tagging configuration is left to a
// custom RecipientValidator implementation).
type SimpleRecipientValidator struct{}

// NewSimpleRecipientValidator returns the accept-all default validator.
func NewSimpleRecipientValidator() *SimpleRecipientValidator {
	return &SimpleRecipientValidator{}
}

func (v *SimpleRecipientValidator) Validate(addr ParsedAddress) ValidatedRecipient {
	return ValidatedRecipient{
		ParsedAddress: addr,
		Result:        Valid,
		DeliverTo:     addr.Address,
	}
}
