package models

import "time"

// State is the liveness state of a device.
type State int

// Liveness states.
const (
	StateDown State = iota
	StateUp
)

func (s State) String() string {
	if s == StateUp {
		return "up"
	}
	return "down"
}

// ProbeResult holds the outcome of a single liveness probe.
type ProbeResult struct {
	Address   string
	Port      int
	Reachable bool
	Latency   time.Duration
	Error     error
}

// WOLResult holds the result of a Wake-on-LAN fan-out.
type WOLResult struct {
	PacketsSent int
	Attempts    int
	Error       error // first failure, if any
}

// ExecResult holds the result of a local or remote command.
type ExecResult struct {
	CommandRun bool
	Output     string
	Stderr     string
	ExitStatus int
	Error      error
}

// CopyResult holds the result of a file transfer.
type CopyResult struct {
	Source      string
	Destination string
	Bytes       int64
	Error       error
}
