package core

import "sync/atomic"

// ReadyFlag is a single-writer/single-reader hand-off bit.
// The owning channel's interrupt handler sets it, the scheduler
// observes it and the channel's foreground service clears it.
type ReadyFlag struct {
	v uint32
}

// IsSet reports whether a frame is pending.
func (f *ReadyFlag) IsSet() bool {
	return atomic.LoadUint32(&f.v) != 0
}

// set is called from interrupt context only.
func (f *ReadyFlag) set() {
	atomic.StoreUint32(&f.v, 1)
}

// clear is called from the foreground only.
func (f *ReadyFlag) clear() {
	atomic.StoreUint32(&f.v, 0)
}

// Mailbox is the collection of ready flags, one per channel. A Registry
// owns exactly one; each flag is bound to the channel declared under its
// id and to nothing else.
type Mailbox struct {
	flags [MaxChannels]ReadyFlag
	bound [MaxChannels]bool
}

// bind hands the flag for id to its owning channel.
func (m *Mailbox) bind(id ChannelID) (*ReadyFlag, bool) {
	if int(id) >= MaxChannels || m.bound[id] {
		return nil, false
	}
	m.bound[id] = true
	f := &m.flags[id]
	f.clear()
	return f, true
}

// Pending reports whether the flag for id is set.
func (m *Mailbox) Pending(id ChannelID) bool {
	if int(id) >= MaxChannels {
		return false
	}
	return m.flags[id].IsSet()
}
