package server

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCommand: a command was requested before a full frame
	// was buffered.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrUtf8 reports a frame field that is not valid UTF-8.
	ErrUtf8 = errors.New("invalid utf-8")
	// ErrInvalidArgument reports an argument that failed to parse.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotADirectory: the walk target did not resolve to a directory.
	ErrNotADirectory = errors.New("not a directory")
	// ErrHomeUnset: HOME was needed for ~/ expansion but is not set.
	ErrHomeUnset = errors.New("HOME is not set")
	// ErrKilled is returned by window admission when the walker
	// version moved or the outbound stream died.
	ErrKilled = errors.New("killed")
)

// UnknownCommandError reports a command name outside the protocol.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Name)
}
