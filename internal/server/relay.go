package server

import (
	"bufio"
	"io"
)

// relay is the single consumer of the outbound channel. After each
// blocking receive it opportunistically drains whatever else is ready
// before flushing, which batches a burst of matches without adding
// latency to a lone frame. A write failure silently ends the relay;
// dead is closed so producers fail their next send.
func relay(msgs <-chan Msg, out io.Writer, dead chan<- struct{}) {
	defer close(dead)
	bw := bufio.NewWriter(out)
	for m := range msgs {
		if err := m.encode(bw); err != nil {
			return
		}
	drain:
		for {
			select {
			case m = <-msgs:
				if err := m.encode(bw); err != nil {
					return
				}
			default:
				break drain
			}
		}
		if err := bw.Flush(); err != nil {
			return
		}
	}
}
