package models

import "errors"

// Error kinds. Callers match them with errors.Is; the concrete error wraps the cause.
var (
	ErrResolution          = errors.New("cannot resolve host")
	ErrProbeTimeout        = errors.New("probe timeout")
	ErrProbeRefused        = errors.New("probe refused")
	ErrConnection          = errors.New("ssh connection failed")
	ErrConnectTimeout      = errors.New("timeout")
	ErrChannel             = errors.New("ssh channel failed")
	ErrRemoteCommand       = errors.New("remote command failed")
	ErrLocalCommand        = errors.New("local command failed")
	ErrWake                = errors.New("wake failed")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)
