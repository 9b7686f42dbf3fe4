package ports

import (
	"net"
	"strings"
	"testing"
)

// busyPort holds an OS-assigned port open for the duration of the test.
func busyPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("Failed to get a test port: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().(*net.TCPAddr).Port
}

func TestFindAvailablePort(t *testing.T) {
	blockedPort := busyPort(t)

	got := FindAvailablePort(blockedPort)
	if got <= blockedPort {
		t.Errorf("FindAvailablePort(%d) = %d; want a port above %d (because %d is busy)", blockedPort, got, blockedPort, blockedPort)
	}
}

func TestResolve(t *testing.T) {
	blocked := busyPort(t)

	t.Run("override wins", func(t *testing.T) {
		c, err := Resolve(blocked, 9123, false)
		if err != nil {
			t.Fatal(err)
		}
		if c.Port != 9123 || c.Shifted || c.Busy {
			t.Errorf("got %+v", c)
		}
	})

	t.Run("busy preferred shifts", func(t *testing.T) {
		c, err := Resolve(blocked, 0, false)
		if err != nil {
			t.Fatal(err)
		}
		if !c.Shifted || c.Port <= blocked {
			t.Errorf("got %+v, want a shifted port above %d", c, blocked)
		}
	})

	t.Run("busy preferred without shift", func(t *testing.T) {
		c, err := Resolve(blocked, 0, true)
		if err != nil {
			t.Fatal(err)
		}
		if c.Port != blocked || !c.Busy || c.Shifted {
			t.Errorf("got %+v", c)
		}
	})

	t.Run("invalid override", func(t *testing.T) {
		if _, err := Resolve(0, 70000, false); err == nil {
			t.Error("expected an error for an out of range port")
		}
	})
}

func TestURL(t *testing.T) {
	if got := URL(8000); got != "http://127.0.0.1:8000" {
		t.Errorf("URL(8000) = %q", got)
	}
}

func TestGetPortStatus(t *testing.T) {
	blocked := busyPort(t)
	if s := GetPortStatus(blocked); !strings.Contains(s, "in use") {
		t.Errorf("GetPortStatus(%d) = %q", blocked, s)
	}
}
