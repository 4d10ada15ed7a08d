package models

import (
	"net"
	"time"
)

// Defaults applied to devices that leave a setting empty.
const (
	DefaultTimeout     = 5 * time.Second
	DefaultInterval    = 5 * time.Second
	DefaultSSHPort     = 22
	DefaultWOLPort     = 9
	DefaultBroadcastIP = "255.255.255.255"
)

// EffectiveTimeout returns the device timeout, or DefaultTimeout when unset.
func (d Device) EffectiveTimeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultTimeout
}

// EffectiveInterval returns the poll interval, or DefaultInterval when unset.
func (d Device) EffectiveInterval() time.Duration {
	if d.Interval > 0 {
		return d.Interval
	}
	return DefaultInterval
}

// EffectiveSSHPort returns the SSH port, or DefaultSSHPort when unset.
func (d Device) EffectiveSSHPort() int {
	if d.SSH.Port > 0 {
		return d.SSH.Port
	}
	return DefaultSSHPort
}

// EffectivePingPort returns the liveness port. It falls back to the SSH port.
func (d Device) EffectivePingPort() int {
	if d.PingPort > 0 {
		return d.PingPort
	}
	return d.EffectiveSSHPort()
}

// EffectiveHostname returns the hostname, or the device name when unset.
func (d Device) EffectiveHostname() string {
	if d.Hostname != "" {
		return d.Hostname
	}
	return d.Name
}

// EffectiveAddress returns the cached address. A name that is a literal IP
// serves as its own address; otherwise it is empty and DNS decides.
func (d Device) EffectiveAddress() string {
	if d.Address != "" {
		return d.Address
	}
	if net.ParseIP(d.Name) != nil {
		return d.Name
	}
	return ""
}

// Normalize returns a copy of d with every derived default filled in.
// Username and agent socket come from the environment and stay as they are.
func (d Device) Normalize() Device {
	d.Hostname = d.EffectiveHostname()
	d.Address = d.EffectiveAddress()
	d.Timeout = d.EffectiveTimeout()
	d.Interval = d.EffectiveInterval()
	d.SSH.Port = d.EffectiveSSHPort()
	d.PingPort = d.EffectivePingPort()
	if d.WOL.BroadcastIP == "" {
		d.WOL.BroadcastIP = DefaultBroadcastIP
	}
	if d.WOL.Port == 0 {
		d.WOL.Port = DefaultWOLPort
	}
	return d
}
