package server

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/emirpasic/gods/sets/treeset"

	"github.com/jacott/koru-find/internal/pattern"
)

func byteLess(a, b interface{}) int {
	return bytes.Compare(a.([]byte), b.([]byte))
}

// Window is the bounded, byte-lexicographically ordered set of
// accepted paths, the view the client sees. Producers block in
// Add while the window is full; the admission mutex exists so that the
// wait does not hold the content lock, which must stay available to
// whichever mutator will wake the waiter.
type Window struct {
	pattern *pattern.Pattern
	size    atomic.Uint64

	mu      sync.Mutex // content
	content *treeset.Set

	admit sync.Mutex
	cond  *sync.Cond

	out  chan<- Msg
	dead <-chan struct{}
}

// NewWindow creates a window of the given capacity writing frames to
// out. dead is closed when the frame consumer goes away; sends fail
// from then on and producers unwind.
func NewWindow(size int, out chan<- Msg, dead <-chan struct{}) *Window {
	w := &Window{
		pattern: pattern.New(),
		content: treeset.NewWith(byteLess),
		out:     out,
		dead:    dead,
	}
	w.size.Store(uint64(size))
	w.cond = sync.NewCond(&w.admit)
	return w
}

// Pattern returns the pattern this window re-tests entries against.
func (w *Window) Pattern() *pattern.Pattern {
	return w.pattern
}

func (w *Window) Size() int {
	return int(w.size.Load())
}

// Add admits value. version must be the pattern version read before
// value was tested; if the pattern has moved since, value is re-tested
// under the content lock before being committed. Returns ErrKilled
// when the walker version goes wrong or the outbound stream is dead.
func (w *Window) Add(value []byte, version uint64, wv *WalkerVersion) error {
	w.admit.Lock()
	for {
		w.mu.Lock()
		if wv.IsWrong() {
			w.mu.Unlock()
			w.admit.Unlock()
			return ErrKilled
		}
		if w.content.Size() < w.Size() {
			break
		}
		w.mu.Unlock()
		w.cond.Wait()
	}
	w.admit.Unlock()
	defer w.mu.Unlock()

	if version != w.pattern.Version() && !w.pattern.AllMatches(value) {
		return nil
	}
	if w.content.Contains(value) {
		return nil
	}
	w.content.Add(value)
	return w.send(Msg{Kind: MsgAddFile, Data: value})
}

// Remove drops value if it no longer matches. version is the pattern
// version under which the caller decided value does not match; a moved
// pattern forces a re-test. No RmFile frame is emitted; the caller
// already did that.
func (w *Window) Remove(value []byte, version uint64) {
	w.mu.Lock()
	if version != w.pattern.Version() && w.pattern.AllMatches(value) {
		w.mu.Unlock()
		return
	}
	had := w.content.Contains(value)
	if had {
		w.content.Remove(value)
	}
	below := w.content.Size() < w.Size()
	w.mu.Unlock()
	if had && below {
		w.notify()
	}
}

// RemoveUnmatched drops and announces every entry the current pattern
// rejects.
func (w *Window) RemoveUnmatched() {
	w.mu.Lock()
	var dropped [][]byte
	for _, v := range w.content.Values() {
		k := v.([]byte)
		if !w.pattern.AllMatches(k) {
			dropped = append(dropped, k)
		}
	}
	for _, k := range dropped {
		w.content.Remove(k)
		_ = w.send(Msg{Kind: MsgRmFile, Data: k})
	}
	w.mu.Unlock()
	if len(dropped) > 0 {
		w.notify()
	}
}

// SetSize changes the capacity. Shrinking silently evicts the
// lexicographically largest entries; the client finds out on the next
// redraw.
func (w *Window) SetSize(size int) {
	w.size.Store(uint64(size))
	w.mu.Lock()
	for w.content.Size() > size {
		it := w.content.Iterator()
		it.End()
		if !it.Prev() {
			break
		}
		w.content.Remove(it.Value())
	}
	w.mu.Unlock()
	w.notify()
}

// Clear discards the contents and tells the client so.
func (w *Window) Clear() {
	_ = w.send(Msg{Kind: MsgClear})
	w.mu.Lock()
	w.content.Clear()
	w.mu.Unlock()
	w.notify()
}

// Redraw re-emits the whole window: a clear followed by every entry in
// ascending byte order.
func (w *Window) Redraw() {
	_ = w.send(Msg{Kind: MsgClear})
	w.mu.Lock()
	defer w.mu.Unlock()
	it := w.content.Iterator()
	for it.Next() {
		_ = w.send(Msg{Kind: MsgAddFile, Data: it.Value().([]byte)})
	}
}

// Killed wakes all admission waiters so they observe the walker
// version change and exit.
func (w *Window) Killed() {
	w.notify()
}

func (w *Window) Started() {
	_ = w.send(Msg{Kind: MsgWalkStarted})
}

func (w *Window) Done() {
	_ = w.send(Msg{Kind: MsgWalkDone})
}

func (w *Window) Message(text string) {
	_ = w.send(Msg{Kind: MsgMessage, Data: []byte(text)})
}

// RequestResync asks the client to re-feed its match lines.
func (w *Window) RequestResync() {
	_ = w.send(Msg{Kind: MsgResync})
}

// notify broadcasts under the admission lock, so a producer between
// its capacity check and its wait cannot miss the wakeup.
func (w *Window) notify() {
	w.admit.Lock()
	w.cond.Broadcast()
	w.admit.Unlock()
}

func (w *Window) send(m Msg) error {
	select {
	case <-w.dead:
		return ErrKilled
	default:
	}
	select {
	case w.out <- m:
		return nil
	case <-w.dead:
		return ErrKilled
	}
}
