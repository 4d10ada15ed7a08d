package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fgeck/devicectl/internal/models"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_LoadReader_MinimalConfig(t *testing.T) {
	t.Setenv("SUDO_USER", "")
	t.Setenv("USER", "alice")
	t.Setenv("SSH_AUTH_SOCK", "/run/agent.sock")

	yaml := `
devices:
  - name: nas
`
	parser := NewParser()
	cfg, err := parser.LoadReader(yaml)

	require.NoError(t, err)
	require.Len(t, cfg.Devices, 1)

	dev := cfg.Devices[0]
	assert.Equal(t, "nas", dev.Name)
	// Check defaults
	assert.Equal(t, "nas", dev.Hostname)
	assert.Empty(t, dev.Address)
	assert.Equal(t, "alice", dev.Username)
	assert.Equal(t, 5*time.Second, dev.Timeout)
	assert.Equal(t, 5*time.Second, dev.Interval)
	assert.Equal(t, 22, dev.SSH.Port)
	assert.Equal(t, 22, dev.PingPort)
	assert.Equal(t, "/run/agent.sock", dev.SSH.Agent)
	assert.Equal(t, "255.255.255.255", dev.WOL.BroadcastIP)
	assert.Equal(t, 9, dev.WOL.Port)
}

func TestParser_LoadReader_FullConfig(t *testing.T) {
	t.Setenv("NAS_PASSWORD", "s3cret")

	yaml := `
devices:
  - name: nas
    hostname: nas.lan
    address: 192.168.1.10
    mac: ["aa:bb:cc:dd:ee:ff", "aa:bb:cc:dd:ee:00"]
    username: admin
    password: ${NAS_PASSWORD}
    platform: linux
    description: storage box
    timeout: 3s
    interval: 10s
    ping_port: 445
    ssh:
      port: 2222
      username: root
      password: rootpw
      passphrase: keypw
      key_path: /keys/id_ed25519
      agent: /tmp/agent.sock
      agent_forward: true
      known_hosts: /keys/known_hosts
    wol:
      broadcast_ip: 192.168.1.255
      port: 7
`
	parser := NewParser()
	cfg, err := parser.LoadReader(yaml)

	require.NoError(t, err)
	require.Len(t, cfg.Devices, 1)

	assert.Equal(t, models.Device{
		Name:        "nas",
		Hostname:    "nas.lan",
		Address:     "192.168.1.10",
		MACs:        []string{"aa:bb:cc:dd:ee:ff", "aa:bb:cc:dd:ee:00"},
		Username:    "admin",
		Password:    "s3cret",
		Platform:    "linux",
		Description: "storage box",
		Timeout:     3 * time.Second,
		Interval:    10 * time.Second,
		PingPort:    445,
		SSH: models.SSHConfig{
			Port:         2222,
			Username:     "root",
			Password:     "rootpw",
			Passphrase:   "keypw",
			KeyPath:      "/keys/id_ed25519",
			Agent:        "/tmp/agent.sock",
			AgentForward: true,
			KnownHosts:   "/keys/known_hosts",
		},
		WOL: models.WOLConfig{BroadcastIP: "192.168.1.255", Port: 7},
	}, cfg.Devices[0])
}

func TestParser_LoadReader_Defaults(t *testing.T) {
	yaml := `
defaults:
  username: ops
  timeout: 2s
  platform: linux
  ssh:
    port: 2022
  wol:
    broadcast_ip: 10.0.0.255
devices:
  - name: a
  - name: b
    username: bob
    ssh:
      port: 22
`
	parser := NewParser()
	cfg, err := parser.LoadReader(yaml)

	require.NoError(t, err)
	require.Len(t, cfg.Devices, 2)

	a, b := cfg.Devices[0], cfg.Devices[1]
	assert.Equal(t, "ops", a.Username)
	assert.Equal(t, 2*time.Second, a.Timeout)
	assert.Equal(t, "linux", a.Platform)
	assert.Equal(t, 2022, a.SSH.Port)
	assert.Equal(t, 2022, a.PingPort)
	assert.Equal(t, "10.0.0.255", a.WOL.BroadcastIP)

	assert.Equal(t, "bob", b.Username)
	assert.Equal(t, 22, b.SSH.Port)
	assert.Equal(t, 22, b.PingPort)
}

func TestParser_LoadReader_SingleMAC(t *testing.T) {
	yaml := `
devices:
  - name: nas
    mac: "aa:bb:cc:dd:ee:ff"
`
	cfg, err := NewParser().LoadReader(yaml)

	require.NoError(t, err)
	assert.Equal(t, []string{"aa:bb:cc:dd:ee:ff"}, cfg.Devices[0].MACs)
}

func TestParser_LoadReader_IPName(t *testing.T) {
	yaml := `
devices:
  - name: 192.168.1.20
`
	cfg, err := NewParser().LoadReader(yaml)

	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", cfg.Devices[0].Address)
	assert.Equal(t, "192.168.1.20", cfg.Devices[0].Hostname)
}

func TestParser_LoadReader_SudoUser(t *testing.T) {
	t.Setenv("SUDO_USER", "realuser")
	t.Setenv("USER", "root")

	cfg, err := NewParser().LoadReader("devices:\n  - name: nas\n")

	require.NoError(t, err)
	assert.Equal(t, "realuser", cfg.Devices[0].Username)
}

func TestParser_LoadReader_HomeExpansion(t *testing.T) {
	home, err := homedir.Dir()
	require.NoError(t, err)

	yaml := `
devices:
  - name: nas
    ssh:
      key_path: ~/.ssh/id_ed25519
`
	cfg, err := NewParser().LoadReader(yaml)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ssh", "id_ed25519"), cfg.Devices[0].SSH.KeyPath)
}

func TestParser_LoadReader_MissingDevices(t *testing.T) {
	_, err := NewParser().LoadReader("defaults:\n  timeout: 1s\n")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "devices is required")
}

func TestParser_LoadReader_MissingName(t *testing.T) {
	_, err := NewParser().LoadReader("devices:\n  - hostname: nas.lan\n")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "devices[0].name is required")
}

func TestParser_LoadReader_InvalidDuration(t *testing.T) {
	_, err := NewParser().LoadReader("devices:\n  - name: nas\n    timeout: soon\n")

	assert.Error(t, err)
}

func TestParser_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(path, []byte("devices:\n  - name: nas\n    mac: [\"aa:bb:cc:dd:ee:ff\"]\n"), 0o600))

	cfg, err := NewParser().LoadFile(path)

	require.NoError(t, err)
	dev, ok := cfg.Lookup("nas")
	require.True(t, ok)
	assert.Equal(t, []string{"aa:bb:cc:dd:ee:ff"}, dev.MACs)

	_, ok = cfg.Lookup("other")
	assert.False(t, ok)
}

func TestParser_LoadFile_NotFound(t *testing.T) {
	_, err := NewParser().LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func validDevice() models.Device {
	return models.Device{
		Name:     "nas",
		Hostname: "nas",
		MACs:     []string{"aa:bb:cc:dd:ee:ff"},
		Timeout:  time.Second,
		Interval: time.Second,
		PingPort: 22,
		SSH:      models.SSHConfig{Port: 22},
		WOL:      models.WOLConfig{BroadcastIP: "255.255.255.255", Port: 9},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *models.InventoryConfig)
		wantErr string
	}{
		{"valid", func(cfg *models.InventoryConfig) {}, ""},
		{"no devices", func(cfg *models.InventoryConfig) { cfg.Devices = nil }, "devices is required"},
		{"duplicate", func(cfg *models.InventoryConfig) { cfg.Devices = append(cfg.Devices, cfg.Devices[0]) }, "duplicate name"},
		{"bad port", func(cfg *models.InventoryConfig) { cfg.Devices[0].PingPort = 70000 }, "ping_port must be between"},
		{"bad ssh port", func(cfg *models.InventoryConfig) { cfg.Devices[0].SSH.Port = 0 }, "ssh.port must be between"},
		{"bad mac", func(cfg *models.InventoryConfig) { cfg.Devices[0].MACs = []string{"nope"} }, "invalid mac"},
		{"zero timeout", func(cfg *models.InventoryConfig) { cfg.Devices[0].Timeout = 0 }, "timeout must be positive"},
		{"negative interval", func(cfg *models.InventoryConfig) { cfg.Devices[0].Interval = -time.Second }, "interval must be positive"},
		{"bad broadcast", func(cfg *models.InventoryConfig) { cfg.Devices[0].WOL.BroadcastIP = "lan" }, "not an IP address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &models.InventoryConfig{Devices: []models.Device{validDevice()}}
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	assert.Error(t, Validate(nil))
}
