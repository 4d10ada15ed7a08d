//go:build e2e

package e2e

import (
	"io"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/fgeck/devicectl/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func getDeviceConfig(t *testing.T) models.Device {
	t.Helper()

	host := os.Getenv("TEST_DEVICE_HOST")
	if host == "" {
		t.Skip("TEST_DEVICE_HOST not set")
	}

	portStr := os.Getenv("TEST_DEVICE_PORT")
	if portStr == "" {
		portStr = "22"
	}
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	user := os.Getenv("TEST_DEVICE_USER")
	if user == "" {
		user = "root"
	}

	keyPath := os.Getenv("TEST_DEVICE_KEY_PATH")
	password := os.Getenv("TEST_DEVICE_PASSWORD")
	if keyPath == "" && password == "" && os.Getenv("SSH_AUTH_SOCK") == "" {
		t.Skip("TEST_DEVICE_KEY_PATH, TEST_DEVICE_PASSWORD or SSH_AUTH_SOCK required")
	}

	platform := os.Getenv("TEST_DEVICE_PLATFORM")
	if platform == "" {
		platform = "linux"
	}

	return models.Device{
		Name:     host,
		Hostname: host,
		Username: user,
		Password: password,
		Platform: platform,
		Timeout:  5 * time.Second,
		Interval: time.Second,
		PingPort: port,
		SSH: models.SSHConfig{
			Port:    port,
			KeyPath: keyPath,
			Agent:   os.Getenv("SSH_AUTH_SOCK"),
		},
	}
}
