package responder

import (
	"bytes"
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbrittain/aether-throughput/internal/config"
)

func testArgs() config.Args {
	return config.Args{
		Bind:        "127.0.0.1:0",
		IdleTimeout: time.Minute,
	}
}

func startResponder(t *testing.T, args config.Args) (*Responder, context.CancelFunc, chan error) {
	t.Helper()

	r, err := New(args)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()
	return r, cancel, done
}

func stopResponder(t *testing.T, cancel context.CancelFunc, done chan error) {
	t.Helper()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Run() did not stop after cancel")
	}
}

func TestNew_InvalidBind(t *testing.T) {
	args := testArgs()
	args.Bind = "not-an-address"

	if _, err := New(args); err == nil {
		t.Error("New() expected error for invalid bind address")
	}
}

func TestResponder_Echo(t *testing.T) {
	r, cancel, done := startResponder(t, testArgs())

	client, err := net.Dial("udp", r.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	payload := []byte{0x01, 0x02, 0x03, 0xff, 0xff}
	if _, err := client.Write(payload); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Errorf("echo = %v, want %v", buf[:n], payload)
	}

	stopResponder(t, cancel, done)
}

func TestResponder_EchoPreservesLength(t *testing.T) {
	r, cancel, done := startResponder(t, testArgs())
	defer stopResponder(t, cancel, done)

	client, err := net.Dial("udp", r.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	for _, size := range []int{8, 50, 100, 200, 1400} {
		payload := bytes.Repeat([]byte{0xab}, size)
		if _, err := client.Write(payload); err != nil {
			t.Fatalf("Write(%d bytes) error = %v", size, err)
		}

		client.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 2048)
		n, err := client.Read(buf)
		if err != nil {
			t.Fatalf("Read() after %d byte send error = %v", size, err)
		}
		if n != size {
			t.Errorf("echo length = %d, want %d", n, size)
		}
	}
}

func TestResponder_RateCap(t *testing.T) {
	args := testArgs()
	args.MaxPPS = 1

	r, cancel, done := startResponder(t, args)
	defer stopResponder(t, cancel, done)

	client, err := net.Dial("udp", r.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	// First datagram consumes the only token
	if _, err := client.Write([]byte("first")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	if _, err := client.Read(buf); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	// The bucket refills at 1/s, so an immediate burst gets dropped
	for i := 0; i < 4; i++ {
		if _, err := client.Write([]byte("burst")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, err := client.Read(buf); err == nil {
		t.Error("Read() succeeded, want timeout for rate-capped echoes")
	}
}

func TestResponder_PeerTracking(t *testing.T) {
	r, cancel, done := startResponder(t, testArgs())
	defer stopResponder(t, cancel, done)

	client, err := net.Dial("udp", r.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer client.Close()

	buf := make([]byte, 64)
	for i := 0; i < 3; i++ {
		if _, err := client.Write([]byte("ping")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		client.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, err := client.Read(buf); err != nil {
			t.Fatalf("Read() error = %v", err)
		}
	}

	if got := r.peers.Len(); got != 1 {
		t.Errorf("peer table length = %d, want 1", got)
	}
	item := r.peers.Get(client.LocalAddr().String())
	if item == nil {
		t.Fatal("peer table missing client entry")
	}
	if got := item.Value(); got != 3 {
		t.Errorf("peer datagram count = %d, want 3", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := newMetrics()
	m.echoedTotal.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "aether_responder_echoed_total 1") {
		t.Errorf("metrics body missing echoed counter:\n%s", body)
	}
}
