// Package ports picks a free TCP port for the Django dev server.
package ports

import (
	"fmt"
	"net"
	"strconv"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// DefaultPort is Django's runserver default.
const DefaultPort = 8000

// maxAttempts bounds how far FindAvailablePort searches.
const maxAttempts = 100

// IsPortAvailable checks if a port is available for binding
func IsPortAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

// FindAvailablePort finds the next available port starting from the given
// port. It returns 0 if none is free within maxAttempts.
func FindAvailablePort(startPort int) int {
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		if port > 65535 {
			break
		}
		if IsPortAvailable(port) {
			return port
		}
	}
	return 0
}

// Choice is the outcome of Resolve.
type Choice struct {
	Port    int
	Shifted bool // Port differs from the preferred one because it was busy
	Busy    bool // the preferred port was busy and shifting was disabled
}

// Resolve picks the dev server port. An override > 0 wins unconditionally.
// Otherwise preferred is used when free, or the next free port unless
// noShift is set, in which case preferred is returned with Busy set.
func Resolve(preferred, override int, noShift bool) (Choice, error) {
	if override > 0 {
		if override > 65535 {
			return Choice{}, fmt.Errorf("invalid port %d", override)
		}
		return Choice{Port: override}, nil
	}
	if preferred <= 0 {
		preferred = DefaultPort
	}

	if IsPortAvailable(preferred) {
		return Choice{Port: preferred}, nil
	}
	if noShift {
		return Choice{Port: preferred, Busy: true}, nil
	}

	port := FindAvailablePort(preferred + 1)
	if port == 0 {
		return Choice{}, fmt.Errorf("could not find an available port after %d", preferred)
	}
	return Choice{Port: port, Shifted: true}, nil
}

// Addr returns the runserver bind address for port.
func Addr(port int) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}

// URL returns the browser URL for port.
func URL(port int) string {
	return "http://" + Addr(port)
}

// GetProcessOnPort returns the PID of a process listening on the given port.
// Returns 0 if no process is found or if the lookup fails.
func GetProcessOnPort(port int) int32 {
	conns, err := psnet.Connections("tcp")
	if err != nil {
		return 0
	}
	for _, c := range conns {
		if c.Status == "LISTEN" && int(c.Laddr.Port) == port && c.Pid > 0 {
			return c.Pid
		}
	}
	return 0
}

// GetPortStatus returns a human-readable status of a port
func GetPortStatus(port int) string {
	if IsPortAvailable(port) {
		return fmt.Sprintf("Port %d is available", port)
	}
	if pid := GetProcessOnPort(port); pid > 0 {
		return fmt.Sprintf("Port %d is in use (PID %d)", port, pid)
	}
	return fmt.Sprintf("Port %d is in use", port)
}
