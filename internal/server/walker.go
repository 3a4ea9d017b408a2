package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/opencoff/go-fio"
	"github.com/opencoff/go-fio/walk"
	"github.com/rs/zerolog"

	"github.com/jacott/koru-find/internal/pattern"
)

// Walker owns the lifecycle of the traversal and translates client
// commands into pattern, window and traversal mutations. It runs on
// the command thread; the traversal workers and the match sink only
// ever see it through the shared pattern, window and walker version.
type Walker struct {
	out           *Window
	pattern       *pattern.Pattern
	ignorePattern *pattern.Pattern
	version       *WalkerVersion
	path          string
	isWalking     bool
	threads       int

	// closed when the current traversal goroutine has fully stopped;
	// nil when none was started since the last kill
	walkDone chan struct{}
	// lines for the lazy match sink; nil until the first match command
	matchCh chan []byte

	log zerolog.Logger
}

func NewWalker(out *Window, threads int, log zerolog.Logger) *Walker {
	return &Walker{
		out:           out,
		pattern:       out.Pattern(),
		ignorePattern: pattern.New(),
		version:       NewWalkerVersion(),
		path:          "./",
		threads:       threads,
		log:           log,
	}
}

// Command executes one (name, arg) pair from the command reader.
// Failures of the walk target are reported to the client as message
// frames; argument and command-name errors are returned for the server
// loop to report.
func (w *Walker) Command(cmd, arg string) error {
	switch cmd {
	case "walk":
		if err := w.walk(arg); err != nil {
			w.Message(fmt.Sprintf("walk %s failed: %v", arg, err))
		}
	case "match":
		w.matchLine(arg)
	case "stop":
		w.killRunning()
		w.out.Clear()
		w.pattern.Reset()
		w.ignorePattern.Reset()
		w.pattern.SkipPrefix(0)
		w.ignorePattern.SkipPrefix(0)
		w.isWalking = false
	case "add":
		w.changePattern(w.pattern.Add(arg))
	case "ignore":
		w.ignorePattern.Set(0, arg)
		w.killRunning()
		w.out.Clear()
	case "skip-prefix":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return ErrInvalidArgument
		}
		w.pattern.SkipPrefix(n)
		w.ignorePattern.SkipPrefix(n)
		w.changePattern(pattern.ScopeChange)
	case "rm":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return ErrInvalidArgument
		}
		w.changePattern(w.pattern.Rm(n))
	case "set":
		pos, text := splitString(arg)
		n, err := strconv.Atoi(pos)
		if err != nil || n < 0 {
			return ErrInvalidArgument
		}
		w.changePattern(w.pattern.Set(n, text))
	case "redraw":
		w.out.Redraw()
	case "window_size":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return ErrInvalidArgument
		}
		w.out.SetSize(n)
	default:
		return &UnknownCommandError{Name: cmd}
	}
	return nil
}

// Message sends a diagnostic frame to the client.
func (w *Walker) Message(text string) {
	w.out.Message(text)
}

// changePattern acts on the scope of a pattern edit. A narrowing edit
// only purges entries the smaller match set rejects; anything else
// either restarts the traversal or, in streaming mode, discards the
// match sink and asks the client to re-feed its lines.
func (w *Walker) changePattern(scope pattern.Scope) {
	if scope == pattern.ScopeNarrow {
		w.out.RemoveUnmatched()
		return
	}
	if w.isWalking {
		w.killRunning()
		w.out.RemoveUnmatched()
		w.ensureRunning()
	} else {
		w.killMatch()
		w.out.RequestResync()
	}
}

func (w *Walker) walk(arg string) error {
	dir := arg
	if rest, ok := strings.CutPrefix(dir, "~/"); ok {
		home := os.Getenv("HOME")
		if home == "" {
			return ErrHomeUnset
		}
		abs, err := filepath.Abs(filepath.Join(home, rest))
		if err != nil {
			return err
		}
		if abs, err = filepath.EvalSymlinks(abs); err != nil {
			return err
		}
		dir = abs
	}
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return ErrNotADirectory
	}

	w.killRunning()
	dir = filepath.Clean(dir)
	w.path = dir
	w.pattern.SkipPrefix(len(dir) + 1)
	w.ignorePattern.SkipPrefix(len(dir) + 1)
	w.isWalking = true
	w.ensureRunning()
	return nil
}

// matchLine feeds one client-supplied line through the pattern in
// streaming mode. The sink passes pattern version 0 to the window,
// which forces a re-test on insertion under the window's own lock;
// that is what keeps streamed lines correct across pattern edits, so
// it must stay even though the current version would usually do.
func (w *Walker) matchLine(line string) {
	data := w.pattern.Strip([]byte(line))
	if w.ignorePattern.AnyMatches(data) {
		return
	}
	if w.matchCh == nil {
		ch := make(chan []byte, w.threads)
		w.matchCh = ch
		wv := w.version.Clone()
		wv.Start()
		out := w.out
		go func() {
			for line := range ch {
				_ = out.Add(line, 0, wv)
			}
		}()
	}
	w.matchCh <- data
}

// ensureRunning starts a traversal of the current root unless one has
// been started since the last killRunning, whether or not it has
// finished. The started frame goes out before any worker runs.
func (w *Walker) ensureRunning() {
	if w.walkDone != nil {
		return
	}
	w.out.Started()
	w.version.Start()
	wv := w.version.Clone()
	done := make(chan struct{})
	w.walkDone = done

	root := w.path
	pat, ign, out := w.pattern, w.ignorePattern, w.out
	filter := newIgnoreFilter(root)
	log := w.log
	log.Debug().Str("root", root).Msg("walk started")

	go func() {
		defer close(done)
		defer out.Done()
		opt := walk.Options{
			Concurrency: w.threads,
			Type:        walk.FILE | walk.SYMLINK,
			Excludes:    []string{".git"},
			Filter:      filter,
		}
		err := walk.WalkFunc([]string{root}, opt, func(fi *fio.Info) error {
			if wv.IsWrong() {
				return nil
			}
			data := pat.Strip([]byte(fi.Name()))
			if ign.AnyMatches(data) {
				return nil
			}
			version := pat.Version() // read before the test
			if !pat.AllMatches(data) {
				return nil
			}
			// a killed add does not stop the enumeration: after a
			// walker-version kill the version check above
			// short-circuits every remaining entry; after the outbound
			// stream died, the remaining entries are still tested and
			// offered to the window
			_ = out.Add(data, version, wv)
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("root", root).Msg("walk failed")
		}
	}()
}

// killRunning cancels the traversal and the match sink by bumping the
// walker version, wakes any blocked producer, and joins the traversal
// goroutine so a restart never races a dying walk.
func (w *Walker) killRunning() {
	w.version.Kill()
	w.out.Killed()
	w.killMatch()
	if w.walkDone != nil {
		<-w.walkDone
		w.walkDone = nil
	}
}

// killMatch discards the match sink; the client is expected to re-feed
// lines after the resync frame.
func (w *Walker) killMatch() {
	if w.matchCh != nil {
		close(w.matchCh)
		w.matchCh = nil
	}
}

func splitString(data string) (string, string) {
	if i := strings.IndexByte(data, ' '); i >= 0 {
		return data[:i], data[i+1:]
	}
	return data, ""
}
