package server

import "sync/atomic"

// WalkerVersion is the cancellation signal for a traversal: a shared
// monotonic counter plus the value a worker saw when it started. A
// worker whose value no longer equals the shared counter is wrong and
// must quit at its next synchronization point.
type WalkerVersion struct {
	current *atomic.Uint64
	mine    uint64
}

func NewWalkerVersion() *WalkerVersion {
	current := &atomic.Uint64{}
	current.Store(1)
	return &WalkerVersion{current: current, mine: 1}
}

// Clone shares the current counter but keeps an independent local
// value.
func (v *WalkerVersion) Clone() *WalkerVersion {
	return &WalkerVersion{current: v.current, mine: v.mine}
}

// IsWrong reports whether this holder has been cancelled.
func (v *WalkerVersion) IsWrong() bool {
	return v.mine != v.current.Load()
}

// Kill cancels every holder of the shared counter.
func (v *WalkerVersion) Kill() {
	v.current.Add(1)
}

// Start adopts the current counter value, making this holder right
// again.
func (v *WalkerVersion) Start() {
	v.mine = v.current.Load()
}
