package message

import "errors"

// Message errors.
var (
	// ErrNotSTUN is returned for datagrams that are not STUN messages.
	ErrNotSTUN = errors.New("message: not a STUN message")

	// ErrMalformed is returned when a STUN message fails to decode.
	ErrMalformed = errors.New("message: malformed STUN message")

	// ErrNoMappedAddress is returned when a response lacks XOR-MAPPED-ADDRESS.
	ErrNoMappedAddress = errors.New("message: no mapped address")

	// ErrErrorResponse is returned when a Binding error response is received.
	ErrErrorResponse = errors.New("message: error response")

	// ErrMissingIntegrity is returned when a message lacks MESSAGE-INTEGRITY.
	ErrMissingIntegrity = errors.New("message: missing message integrity")

	// ErrAlreadyFingerprinted is returned when signing a message that already
	// ends with FINGERPRINT.
	ErrAlreadyFingerprinted = errors.New("message: message already fingerprinted")

	// ErrEmptyKey is returned when a signer is created without key material.
	ErrEmptyKey = errors.New("message: empty integrity key")
)
