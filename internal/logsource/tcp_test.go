package logsource

import (
	"net"
	"testing"
	"time"
)

func TestTCPSourceDeliversLines(t *testing.T) {
	src := NewTCPSource("127.0.0.1:0")
	if err := src.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer src.Stop()

	conn, err := net.Dial("tcp", src.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte("hello\nworld\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.Close()

	for _, want := range []string{"hello", "world"} {
		select {
		case env := <-src.Lines():
			if env.Line != want || env.Source != "tcp" {
				t.Errorf("got %+v, want line %q from tcp", env, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestTCPSourceStopClosesLines(t *testing.T) {
	src := NewTCPSource("127.0.0.1:0")
	if err := src.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	src.Stop()
	src.Stop() // idempotent

	select {
	case _, ok := <-src.Lines():
		if ok {
			t.Fatal("expected closed lines channel after Stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
