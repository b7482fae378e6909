// Package message provides the STUN message helpers used by the stack.
//
// Wire encoding is delegated to github.com/pion/stun/v3. This package adds
// the pieces the transaction layer needs on top: transaction identifiers,
// Binding request/response builders, class predicates, and a Signer that
// applies MESSAGE-INTEGRITY and FINGERPRINT.
package message

import (
	"encoding/hex"
	"fmt"
	"net"

	"github.com/pion/stun/v3"
)

// Software is the SOFTWARE attribute value sent with every message.
const Software = "traverse"

// MaxUDPMessageSize bounds datagrams read from and written to UDP sockets.
const MaxUDPMessageSize = 1500

// TransactionID identifies one request/response exchange.
type TransactionID [stun.TransactionIDSize]byte

// String returns the hex form of the identifier.
func (id TransactionID) String() string {
	return hex.EncodeToString(id[:])
}

// ID returns the transaction identifier of m.
func ID(m *stun.Message) TransactionID {
	return TransactionID(m.TransactionID)
}

// BindingIndication is the Binding indication message type, used for
// keep-alives.
var BindingIndication = stun.NewType(stun.MethodBinding, stun.ClassIndication)

// NewBindingRequest builds a Binding request with a fresh transaction ID.
// Extra setters are applied after SOFTWARE.
func NewBindingRequest(setters ...stun.Setter) (*stun.Message, error) {
	base := []stun.Setter{stun.TransactionID, stun.BindingRequest, stun.NewSoftware(Software)}
	return stun.Build(append(base, setters...)...)
}

// NewBindingIndication builds a Binding indication.
func NewBindingIndication() (*stun.Message, error) {
	return stun.Build(stun.TransactionID, BindingIndication, stun.NewSoftware(Software))
}

// NewBindingSuccess builds the success response to req reporting mapped as
// the XOR-MAPPED-ADDRESS.
func NewBindingSuccess(req *stun.Message, mapped *net.UDPAddr) (*stun.Message, error) {
	if mapped == nil {
		return nil, ErrNoMappedAddress
	}
	return stun.Build(
		stun.NewTransactionIDSetter(req.TransactionID),
		stun.BindingSuccess,
		stun.NewSoftware(Software),
		&stun.XORMappedAddress{IP: mapped.IP, Port: mapped.Port},
	)
}

// NewErrorResponse builds an error response to req of the same method.
func NewErrorResponse(req *stun.Message, code stun.ErrorCode) (*stun.Message, error) {
	return stun.Build(
		stun.NewTransactionIDSetter(req.TransactionID),
		stun.NewType(req.Type.Method, stun.ClassErrorResponse),
		stun.NewSoftware(Software),
		code,
	)
}

// Decode parses a datagram. It fails fast for data that is not STUN.
func Decode(data []byte) (*stun.Message, error) {
	if !stun.IsMessage(data) {
		return nil, ErrNotSTUN
	}
	m := new(stun.Message)
	if err := stun.Decode(data, m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return m, nil
}

// IsRequest reports whether m is a request.
func IsRequest(m *stun.Message) bool {
	return m.Type.Class == stun.ClassRequest
}

// IsIndication reports whether m is an indication.
func IsIndication(m *stun.Message) bool {
	return m.Type.Class == stun.ClassIndication
}

// IsResponse reports whether m is a success or error response.
func IsResponse(m *stun.Message) bool {
	return m.Type.Class == stun.ClassSuccessResponse || m.Type.Class == stun.ClassErrorResponse
}

// HasIntegrity reports whether m carries MESSAGE-INTEGRITY.
func HasIntegrity(m *stun.Message) bool {
	return m.Contains(stun.AttrMessageIntegrity)
}

// MappedAddress extracts the XOR-MAPPED-ADDRESS of a Binding response.
func MappedAddress(m *stun.Message) (*net.UDPAddr, error) {
	if m.Type.Class == stun.ClassErrorResponse {
		var code stun.ErrorCodeAttribute
		if err := code.GetFrom(m); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrErrorResponse, code)
		}
		return nil, ErrErrorResponse
	}
	var xor stun.XORMappedAddress
	if err := xor.GetFrom(m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMappedAddress, err)
	}
	return &net.UDPAddr{IP: xor.IP, Port: xor.Port}, nil
}
