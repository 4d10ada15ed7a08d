package models

import (
	"io"
	"os"
)

// Terminal is the set of streams an interactive command is attached to.
type Terminal struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdTerminal returns the process's own terminal streams.
func StdTerminal() Terminal {
	return Terminal{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}
