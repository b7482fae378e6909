package stack

import (
	"context"
	"net"

	"github.com/backkem/traverse/pkg/message"
	"github.com/pion/stun/v3"
)

// Request runs one client transaction and waits for its outcome. When ctx
// ends first the transaction is cancelled and ctx's error is returned.
func (s *Stack) Request(ctx context.Context, req *stun.Message, dest net.Addr) (*stun.Message, error) {
	tx, err := s.controller.Start(req, dest)
	if err != nil {
		return nil, err
	}

	select {
	case <-tx.Done():
		o := tx.Outcome()
		return o.Response, o.Err
	case <-ctx.Done():
		tx.Cancel()
		return nil, ctx.Err()
	}
}

// Binding asks server for the address it sees this stack's transport as.
func (s *Stack) Binding(ctx context.Context, server net.Addr) (*net.UDPAddr, error) {
	req, err := message.NewBindingRequest()
	if err != nil {
		return nil, err
	}
	resp, err := s.Request(ctx, req, server)
	if err != nil {
		return nil, err
	}
	return message.MappedAddress(resp)
}

// KeepAlive sends a Binding indication to dest every keep-alive interval
// until ctx ends. It returns nil at once when keep-alives are disabled.
// Send failures are logged and do not stop the loop.
func (s *Stack) KeepAlive(ctx context.Context, dest net.Addr) error {
	policy := s.controller.Policy()
	if policy.DisableKeepAlives {
		return nil
	}

	ticker := s.clock.Ticker(policy.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ind, err := message.NewBindingIndication()
			if err != nil {
				return err
			}
			if policy.ShouldSign() && s.signer != nil {
				if err := s.signer.Sign(ind); err != nil {
					return err
				}
			}
			s.send(ind.Raw, dest)
		}
	}
}
