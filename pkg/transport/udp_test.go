package transport

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/backkem/traverse/pkg/message"
	"github.com/pion/transport/v3/vnet"
)

func TestNewUDP(t *testing.T) {
	t.Run("with handler", func(t *testing.T) {
		handler := func(msg *ReceivedMessage) {}
		u, err := NewUDP(UDPConfig{
			ListenAddr:     "127.0.0.1:0",
			MessageHandler: handler,
		})
		if err != nil {
			t.Fatalf("NewUDP() error = %v", err)
		}
		defer u.Stop()

		if u.conn == nil {
			t.Error("NewUDP() conn is nil")
		}
	})

	t.Run("without handler", func(t *testing.T) {
		_, err := NewUDP(UDPConfig{
			ListenAddr: "127.0.0.1:0",
		})
		if err != ErrNoHandler {
			t.Errorf("NewUDP() error = %v, want %v", err, ErrNoHandler)
		}
	})

	t.Run("with injected conn", func(t *testing.T) {
		conn, err := net.ListenPacket("udp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("ListenPacket() error = %v", err)
		}

		handler := func(msg *ReceivedMessage) {}
		u, err := NewUDP(UDPConfig{
			Conn:           conn,
			MessageHandler: handler,
		})
		if err != nil {
			t.Fatalf("NewUDP() error = %v", err)
		}
		defer u.Stop()

		if u.conn != conn {
			t.Error("NewUDP() did not use injected conn")
		}
	})
}

func TestUDPStartStop(t *testing.T) {
	handler := func(msg *ReceivedMessage) {}
	u, err := NewUDP(UDPConfig{
		ListenAddr:     "127.0.0.1:0",
		MessageHandler: handler,
	})
	if err != nil {
		t.Fatalf("NewUDP() error = %v", err)
	}

	if err := u.Start(); err != nil {
		t.Errorf("Start() error = %v", err)
	}

	if err := u.Start(); err != ErrAlreadyStarted {
		t.Errorf("Start() second call error = %v, want %v", err, ErrAlreadyStarted)
	}

	if err := u.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	if err := u.Stop(); err != ErrClosed {
		t.Errorf("Stop() second call error = %v, want %v", err, ErrClosed)
	}

	if err := u.Start(); err != ErrClosed {
		t.Errorf("Start() after Stop error = %v, want %v", err, ErrClosed)
	}
}

func TestUDPSendReceive(t *testing.T) {
	received := make(chan *ReceivedMessage, 1)

	server, err := NewUDP(UDPConfig{
		ListenAddr: "127.0.0.1:0",
		MessageHandler: func(msg *ReceivedMessage) {
			received <- msg
		},
	})
	if err != nil {
		t.Fatalf("NewUDP(server) error = %v", err)
	}
	defer server.Stop()
	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	client, err := NewUDP(UDPConfig{
		ListenAddr:     "127.0.0.1:0",
		MessageHandler: func(msg *ReceivedMessage) {},
	})
	if err != nil {
		t.Fatalf("NewUDP(client) error = %v", err)
	}
	defer client.Stop()

	payload := []byte("binding")
	if err := client.Send(payload, server.LocalAddr()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case msg := <-received:
		if !bytes.Equal(msg.Data, payload) {
			t.Errorf("Data = %q, want %q", msg.Data, payload)
		}
		if msg.Source.String() != client.LocalAddr().String() {
			t.Errorf("Source = %v, want %v", msg.Source, client.LocalAddr())
		}
		if msg.Local.String() != server.LocalAddr().String() {
			t.Errorf("Local = %v, want %v", msg.Local, server.LocalAddr())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for datagram")
	}
}

func TestUDPSendErrors(t *testing.T) {
	u, err := NewUDP(UDPConfig{
		ListenAddr:     "127.0.0.1:0",
		MessageHandler: func(msg *ReceivedMessage) {},
	})
	if err != nil {
		t.Fatalf("NewUDP() error = %v", err)
	}

	if err := u.Send([]byte("x"), nil); err != ErrInvalidAddress {
		t.Errorf("Send(nil addr) error = %v, want %v", err, ErrInvalidAddress)
	}

	big := make([]byte, message.MaxUDPMessageSize+1)
	if err := u.Send(big, u.LocalAddr()); err != ErrMessageTooLarge {
		t.Errorf("Send(big) error = %v, want %v", err, ErrMessageTooLarge)
	}

	u.Stop()
	if err := u.Send([]byte("x"), u.LocalAddr()); err != ErrClosed {
		t.Errorf("Send() after Stop error = %v, want %v", err, ErrClosed)
	}
}

func TestUDPBindRetry(t *testing.T) {
	n, err := vnet.NewNet(&vnet.NetConfig{})
	if err != nil {
		t.Fatalf("vnet.NewNet() error = %v", err)
	}

	handler := func(msg *ReceivedMessage) {}
	first, err := NewUDP(UDPConfig{
		Net:            n,
		ListenAddr:     "127.0.0.1:5000",
		MessageHandler: handler,
	})
	if err != nil {
		t.Fatalf("NewUDP(first) error = %v", err)
	}
	defer first.Stop()

	t.Run("no retries", func(t *testing.T) {
		_, err := NewUDP(UDPConfig{
			Net:            n,
			ListenAddr:     "127.0.0.1:5000",
			BindRetries:    1,
			MessageHandler: handler,
		})
		if err == nil {
			t.Fatal("NewUDP() on busy port succeeded without retries")
		}
	})

	t.Run("next port", func(t *testing.T) {
		second, err := NewUDP(UDPConfig{
			Net:            n,
			ListenAddr:     "127.0.0.1:5000",
			BindRetries:    3,
			MessageHandler: handler,
		})
		if err != nil {
			t.Fatalf("NewUDP() error = %v", err)
		}
		defer second.Stop()

		if got := second.LocalAddr().(*net.UDPAddr).Port; got != 5001 {
			t.Errorf("bound port = %d, want 5001", got)
		}
	})
}
