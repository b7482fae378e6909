package transaction

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/backkem/traverse/pkg/config"
	"github.com/backkem/traverse/pkg/message"
	"github.com/benbjohnson/clock"
	"github.com/pion/stun/v3"
)

var testDest = &net.UDPAddr{IP: net.IPv4(203, 0, 113, 1), Port: 3478}

// recordingSender records every datagram handed to it.
type recordingSender struct {
	mu    sync.Mutex
	sends [][]byte
	dests []net.Addr
	err   error
}

func (s *recordingSender) Send(data []byte, dest net.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, append([]byte(nil), data...))
	s.dests = append(s.dests, dest)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sends)
}

func (s *recordingSender) sent(i int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sends[i]
}

func (s *recordingSender) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// waitSends polls until at least n datagrams were sent. Timer callbacks of
// the mock clock run on their own goroutines.
func waitSends(t *testing.T, s *recordingSender, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.count() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("sends = %d, want %d", s.count(), n)
}

func waitDone(t *testing.T, tx *Transaction) Outcome {
	t.Helper()
	select {
	case <-tx.Done():
		return tx.Outcome()
	case <-time.After(2 * time.Second):
		t.Fatalf("transaction %s not finished, state %s", tx.ID(), tx.State())
		return Outcome{}
	}
}

func newTestController(t *testing.T, src config.MapSource, mock *clock.Mock, sender *recordingSender, mutate func(*ControllerConfig)) *Controller {
	t.Helper()
	cfg := ControllerConfig{
		Sender: sender,
		Config: config.NewResolver(config.ResolverConfig{Source: src}),
		Clock:  mock,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewController(cfg)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func mustBindingRequest(t *testing.T) *stun.Message {
	t.Helper()
	req, err := message.NewBindingRequest()
	if err != nil {
		t.Fatalf("NewBindingRequest() error = %v", err)
	}
	return req
}

func mustBindingSuccess(t *testing.T, req *stun.Message) *stun.Message {
	t.Helper()
	resp, err := message.NewBindingSuccess(req, &net.UDPAddr{IP: net.IPv4(198, 51, 100, 7), Port: 40000})
	if err != nil {
		t.Fatalf("NewBindingSuccess() error = %v", err)
	}
	return resp
}
