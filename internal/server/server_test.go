package server

import (
	"bufio"
	"bytes"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// scanFrames splits the output stream on NUL terminators.
func scanFrames(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

type serverHarness struct {
	t    *testing.T
	in   io.WriteCloser
	out  *bufio.Scanner
	errc chan error
}

func startServer(t *testing.T, threads int) *serverHarness {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	errc := make(chan error, 1)
	go func() {
		errc <- Run(threads, inR, outW, zerolog.Nop())
	}()

	sc := bufio.NewScanner(outR)
	sc.Split(scanFrames)
	return &serverHarness{t: t, in: inW, out: sc, errc: errc}
}

func (h *serverHarness) send(frames string) {
	h.t.Helper()
	_, err := h.in.Write([]byte(frames))
	require.NoError(h.t, err)
}

func (h *serverHarness) next() string {
	h.t.Helper()
	got := make(chan string, 1)
	go func() {
		if h.out.Scan() {
			got <- h.out.Text()
		}
	}()
	select {
	case frame := <-got:
		return frame
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for an output frame")
	}
	return ""
}

func (h *serverHarness) close() {
	h.t.Helper()
	require.NoError(h.t, h.in.Close())
	select {
	case err := <-h.errc:
		require.NoError(h.t, err)
	case <-time.After(2 * time.Second):
		h.t.Fatal("server did not stop on EOF")
	}
}

func TestRun(t *testing.T) {
	dir := testTree(t)
	h := startServer(t, 1)

	h.send("window_size 3\x00walk " + dir + "\x00")

	require.Equal(t, "started", h.next())
	files := []string{h.next(), h.next()}
	sort.Strings(files)
	require.Equal(t, []string{"+a/1/2.txt", "+a/1/3.txt"}, files)
	require.Equal(t, "done", h.next())

	h.send("stop\x00add a/2\x00walk " + dir + "\x00")

	require.Equal(t, "clear", h.next())
	require.Equal(t, "started", h.next())
	require.Equal(t, "+a/1/2.txt", h.next())
	require.Equal(t, "done", h.next())

	h.close()
}

func TestRunExceedWindowSize(t *testing.T) {
	dir := testTree(t)
	// one worker: the window starts at capacity one, so the second
	// match must block rather than deadlock the traversal
	h := startServer(t, 1)

	h.send("walk " + dir + "\x00")

	require.Equal(t, "started", h.next())
	frame := h.next()
	require.Contains(t, []string{"+a/1/2.txt", "+a/1/3.txt"}, frame)

	h.send("stop\x00")

	require.Equal(t, "done", h.next())
	require.Equal(t, "clear", h.next())

	h.send("add a/2\x00walk " + dir + "\x00")

	require.Equal(t, "started", h.next())
	require.Equal(t, "+a/1/2.txt", h.next())
	require.Equal(t, "done", h.next())

	h.close()
}

func TestRunReportsCommandErrors(t *testing.T) {
	h := startServer(t, 2)

	h.send("frobnicate\x00redraw\x00")

	require.Equal(t, `message unknown command "frobnicate"`, h.next())
	require.Equal(t, "clear", h.next())

	h.close()
}
