package main

import (
	"bufio"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jacott/koru-find/internal/findfiles"
	"github.com/jacott/koru-find/internal/pattern"
	"github.com/jacott/koru-find/internal/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		serverMode  bool
		expr        string
		concurrency int
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "koru-find [dir]",
		Short: "Interactive file name search",
		Long: `koru-find searches a directory tree by file name.

With --server it speaks a NUL-framed command protocol on stdin/stdout,
streaming a bounded window of matches that refreshes as the pattern is
edited. Without it, the tree is walked once and every match of
--pattern is printed.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(logLevel)
			if len(args) == 1 {
				if err := os.Chdir(args[0]); err != nil {
					return err
				}
			}
			if concurrency <= 0 {
				concurrency = runtime.NumCPU()
			}
			if serverMode {
				return server.Run(concurrency, os.Stdin, os.Stdout, log)
			}
			return findOnce(expr)
		},
	}

	cmd.Flags().BoolVar(&serverMode, "server", false, "serve the stdin/stdout command protocol")
	cmd.Flags().StringVar(&expr, "pattern", "", "pattern expression for one-shot mode")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "traversal workers (default: CPU count)")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "stderr log level (debug|info|warn|error)")
	return cmd
}

func findOnce(expr string) error {
	p := pattern.New()
	p.Add(expr)

	matches := make(chan []byte, runtime.NumCPU())
	errc := make(chan error, 1)
	go func() {
		errc <- findfiles.Find(".", p, matches)
	}()

	out := bufio.NewWriter(os.Stdout)
	for m := range matches {
		_, _ = out.Write(m)
		_ = out.WriteByte('\n')
	}
	if err := out.Flush(); err != nil {
		return err
	}
	return <-errc
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}
