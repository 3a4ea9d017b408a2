// Package server implements the interactive file-name search
// protocol: NUL-framed commands on the input stream, NUL-framed
// add/remove/clear frames on the output stream, with a parallel
// directory traversal feeding a bounded result window in between.
package server

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Run serves the command protocol until the input closes. threads
// sizes the traversal worker pool, the initial window capacity and the
// outbound queue. A clean EOF returns nil; input-side I/O failures are
// the only errors that end the loop. Everything that goes wrong while
// processing a command is reported to the client as a message frame
// and the loop keeps going.
func Run(threads int, in io.Reader, out io.Writer, log zerolog.Logger) error {
	commander := newCommandReader(in)
	msgs := make(chan Msg, threads*2)
	dead := make(chan struct{})

	win := NewWindow(threads, msgs, dead)
	walker := NewWalker(win, threads, log)
	go relay(msgs, out, dead)

	for {
		if err := commander.read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		cmd, arg, err := commander.command()
		if err != nil {
			walker.Message(fmt.Sprintf("Command read error: %v", err))
			continue
		}
		if err := walker.Command(cmd, arg); err != nil {
			log.Warn().Err(err).Str("command", cmd).Msg("command failed")
			walker.Message(err.Error())
		}
	}
}
