package core

import "sync/atomic"

// Slot names one half of a BufferPair.
type Slot uint32

const (
	Slot0 Slot = 0
	Slot1 Slot = 1
)

func (s Slot) other() Slot { return s ^ 1 }

// BufferPair transfers exclusive ownership of two equally sized sample
// regions between a DMA engine and the foreground.
//
// The slot not currently active is the full slot. While the ready flag is
// set the full slot belongs to the foreground; the producer only ever
// writes the active slot.
type BufferPair struct {
	bufs   [2][]int16
	active uint32
	ready  *ReadyFlag
}

// NewBufferPair allocates both slots. This is the only allocation the
// audio path performs and it happens before capture starts.
func NewBufferPair(frameSize int) *BufferPair {
	return &BufferPair{
		bufs: [2][]int16{make([]int16, frameSize), make([]int16, frameSize)},
	}
}

func (p *BufferPair) attach(flag *ReadyFlag) {
	p.ready = flag
}

// reset restores the initial state: slot 0 active, slot 1 full and
// zeroed, no frame pending.
func (p *BufferPair) reset() {
	atomic.StoreUint32(&p.active, uint32(Slot0))
	for i := range p.bufs[Slot1] {
		p.bufs[Slot1][i] = 0
	}
	p.ready.clear()
}

// FrameSize returns the number of samples per slot.
func (p *BufferPair) FrameSize() int {
	return len(p.bufs[0])
}

// Active returns the slot currently owned by the producer.
func (p *BufferPair) Active() Slot {
	return Slot(atomic.LoadUint32(&p.active))
}

// Samples returns the backing storage of a slot.
func (p *BufferPair) Samples(s Slot) []int16 {
	return p.bufs[s&1]
}

// SwapAndMarkFull is called from the capture-complete interrupt. If no
// frame is pending, the just-filled active slot becomes full and the flag
// is set. Otherwise the pending frame is kept and the producer reuses the
// same active slot. It returns the slot the producer must fill next.
func (p *BufferPair) SwapAndMarkFull() Slot {
	active := Slot(atomic.LoadUint32(&p.active))
	if p.ready.IsSet() {
		return active
	}
	next := active.other()
	atomic.StoreUint32(&p.active, uint32(next))
	p.ready.set()
	return next
}

// TakeFull returns the full slot if a frame is pending.
func (p *BufferPair) TakeFull() (Slot, bool) {
	if !p.ready.IsSet() {
		return 0, false
	}
	return p.Active().other(), true
}

// Release hands slot back to the producer side by clearing the flag. It
// must be the last thing the consumer does with slot. Releasing the
// active slot is a no-op: the consumer never owned it.
func (p *BufferPair) Release(slot Slot) {
	if slot == p.Active() {
		return
	}
	p.ready.clear()
}
