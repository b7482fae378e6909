package stack

import (
	"net"

	"github.com/backkem/traverse/pkg/message"
	"github.com/backkem/traverse/pkg/transaction"
	"github.com/backkem/traverse/pkg/transport"
	"github.com/pion/stun/v3"
)

// HandleMessage processes one received datagram. It is the
// transport.MessageHandler of the stack's transport.
func (s *Stack) HandleMessage(msg *transport.ReceivedMessage) {
	m, err := message.Decode(msg.Data)
	if err != nil {
		if s.log != nil {
			s.log.Debugf("dropping datagram from %v: %v", msg.Source, err)
		}
		return
	}

	policy := s.controller.Policy()
	if policy.RequireIntegrity && !s.checkIntegrity(m, msg.Source) {
		return
	}

	switch {
	case message.IsResponse(m):
		s.controller.OnResponse(m, msg.Source)
	case message.IsRequest(m):
		s.handleRequest(m, msg.Source, policy)
	case message.IsIndication(m):
		if s.log != nil {
			s.log.Tracef("indication %s from %v", m.Type, msg.Source)
		}
	}
}

// checkIntegrity rejects unsigned requests with 401 and drops every other
// message that lacks or fails MESSAGE-INTEGRITY.
func (s *Stack) checkIntegrity(m *stun.Message, src net.Addr) bool {
	if !message.HasIntegrity(m) {
		if message.IsRequest(m) {
			s.reject(m, src, stun.CodeUnauthorized)
		} else if s.log != nil {
			s.log.Debugf("dropping %s from %v without integrity", m.Type, src)
		}
		return false
	}

	if s.signer == nil {
		if s.log != nil {
			s.log.Warnf("integrity required but no signer configured, dropping %s from %v", m.Type, src)
		}
		return false
	}
	if err := s.signer.Verify(m); err != nil {
		if s.log != nil {
			s.log.Debugf("dropping %s from %v: %v", m.Type, src, err)
		}
		return false
	}
	return true
}

func (s *Stack) handleRequest(req *stun.Message, src net.Addr, policy transaction.Policy) {
	id := message.ID(req)

	v := s.controller.OnIncomingRequest(id, src)
	if v.Disposition == transaction.DispositionAbsorb {
		if v.Response != nil {
			s.send(v.Response, src)
		}
		return
	}

	if s.handler == nil {
		if s.log != nil {
			s.log.Debugf("no handler for %s from %v", req.Type, src)
		}
		return
	}

	resp, err := s.handler(req, src)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("handler failed for %s from %v: %v", req.Type, src, err)
		}
		if resp, err = message.NewErrorResponse(req, stun.CodeServerError); err != nil {
			return
		}
	}
	if resp == nil {
		return
	}

	if policy.ShouldSign() && s.signer != nil {
		if err := s.signer.Sign(resp); err != nil {
			if s.log != nil {
				s.log.Warnf("signing response to %v: %v", src, err)
			}
			return
		}
	}

	s.controller.RecordResponse(id, src, resp.Raw)
	s.send(resp.Raw, src)
}

func (s *Stack) reject(req *stun.Message, src net.Addr, code stun.ErrorCode) {
	resp, err := message.NewErrorResponse(req, code)
	if err != nil {
		return
	}
	if s.log != nil {
		s.log.Debugf("rejecting %s from %v with %d", req.Type, src, code)
	}
	s.send(resp.Raw, src)
}

func (s *Stack) send(data []byte, dest net.Addr) {
	if err := s.transport.Send(data, dest); err != nil && s.log != nil {
		s.log.Warnf("send to %v failed: %v", dest, err)
	}
}

// BindingHandler answers Binding requests with the source address as
// XOR-MAPPED-ADDRESS. Other methods get 400 Bad Request.
func BindingHandler(req *stun.Message, src net.Addr) (*stun.Message, error) {
	if req.Type != stun.BindingRequest {
		return message.NewErrorResponse(req, stun.CodeBadRequest)
	}
	udp, ok := src.(*net.UDPAddr)
	if !ok {
		return nil, ErrUnsupportedAddress
	}
	return message.NewBindingSuccess(req, udp)
}
