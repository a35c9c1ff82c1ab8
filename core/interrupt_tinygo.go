//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts around timer list edits and returns
// the previous mask.
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
