package utils

import (
	"fmt"
	"math/rand/v2"
	"net"
)

// GenerateAvailablePort returns a TCP port nothing listens on right now.
// The port is not reserved; another process may take it before it is used.
func GenerateAvailablePort() (int, error) {
	if port, err := kernelAssignedPort(); err == nil {
		return port, nil
	}
	for i := 0; i < 100; i++ {
		port := int(rand.Int32N(65535-1024+1) + 1024)
		if isPortAvailable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found")
}

func kernelAssignedPort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = listener.Close()
	}()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

func isPortAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}
