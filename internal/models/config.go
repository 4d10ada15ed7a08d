// Package models contains the data structures used throughout devicectl.
package models

import "time"

// InventoryConfig holds every device declared in a configuration file.
type InventoryConfig struct {
	Devices []Device
}

// Lookup returns the device with the given name.
func (c InventoryConfig) Lookup(name string) (Device, bool) {
	for _, d := range c.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return Device{}, false
}

// Device describes one controllable host. It is treated as read-only once built.
type Device struct {
	Name        string
	Hostname    string   // defaults to Name
	Address     string   // optional; skips DNS when set
	MACs        []string // one per NIC to wake
	Username    string
	Password    string // answers the sudo prompt in interactive sessions
	Platform    string // "linux" enables uptime/meminfo
	Description string
	Timeout     time.Duration // bounds probe dial and ssh connect
	Interval    time.Duration // poll period for waitup/waitdown
	PingPort    int           // TCP port used for liveness, defaults to SSH.Port
	SSH         SSHConfig
	WOL         WOLConfig
}

// SSHConfig holds the SSH settings of a device.
type SSHConfig struct {
	Port         int
	Username     string // falls back to Device.Username
	Password     string // falls back to Device.Password
	Passphrase   string // for an encrypted KeyPath
	KeyPath      string
	Agent        string // agent socket path
	AgentForward bool
	KnownHosts   string // empty disables host key verification
}

// WOLConfig holds Wake-on-LAN settings of a device.
type WOLConfig struct {
	BroadcastIP string
	Port        int
}
