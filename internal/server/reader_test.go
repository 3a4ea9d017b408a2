package server

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func TestCommandReader(t *testing.T) {
	// one byte per read exercises the compact-then-refill loop
	input := iotest.OneByteReader(strings.NewReader(
		"ignore >_test.rs\x00window_size 85\x00walk ~/src/koru-find\x00"))
	cr := newCommandReader(input)

	require.NoError(t, cr.read())
	cmd, arg, err := cr.command()
	require.NoError(t, err)
	require.Equal(t, "ignore", cmd)
	require.Equal(t, ">_test.rs", arg)

	require.NoError(t, cr.read())
	cmd, arg, err = cr.command()
	require.NoError(t, err)
	require.Equal(t, "window_size", cmd)
	require.Equal(t, "85", arg)

	require.NoError(t, cr.read())
	cmd, arg, err = cr.command()
	require.NoError(t, err)
	require.Equal(t, "walk", cmd)
	require.Equal(t, "~/src/koru-find", arg)

	require.ErrorIs(t, cr.read(), io.EOF)
}

func TestCommandReaderGrowth(t *testing.T) {
	long := strings.Repeat("x", 131)
	cr := newCommandReader(strings.NewReader("add " + long + "\x00"))

	require.NoError(t, cr.read())
	cmd, arg, err := cr.command()
	require.NoError(t, err)
	require.Equal(t, "add", cmd)
	require.Equal(t, long, arg)
	require.ErrorIs(t, cr.read(), io.EOF)
}

func TestCommandReaderCoalesced(t *testing.T) {
	// two frames arriving in one read: the second is served without
	// touching the input again
	cr := newCommandReader(strings.NewReader("a 1\x00b 2\x00"))

	require.NoError(t, cr.read())
	cmd, arg, err := cr.command()
	require.NoError(t, err)
	require.Equal(t, "a", cmd)
	require.Equal(t, "1", arg)

	require.NoError(t, cr.read())
	cmd, arg, err = cr.command()
	require.NoError(t, err)
	require.Equal(t, "b", cmd)
	require.Equal(t, "2", arg)

	require.ErrorIs(t, cr.read(), io.EOF)
}

func TestCommandReaderEmptyFields(t *testing.T) {
	cr := newCommandReader(strings.NewReader("redraw\x00\x00"))

	require.NoError(t, cr.read())
	cmd, arg, err := cr.command()
	require.NoError(t, err)
	require.Equal(t, "redraw", cmd)
	require.Equal(t, "", arg)

	require.NoError(t, cr.read())
	cmd, arg, err = cr.command()
	require.NoError(t, err)
	require.Equal(t, "", cmd)
	require.Equal(t, "", arg)
}

func TestCommandReaderErrors(t *testing.T) {
	cr := newCommandReader(strings.NewReader("late\x00"))
	_, _, err := cr.command()
	require.ErrorIs(t, err, ErrInvalidCommand)

	cr = newCommandReader(strings.NewReader("a \xff\xfe\x00"))
	require.NoError(t, cr.read())
	_, _, err = cr.command()
	require.ErrorIs(t, err, ErrUtf8)
}
