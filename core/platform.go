package core

var resetHandler func()

// SetResetHandler sets the platform-specific reset handler
func SetResetHandler(handler func()) {
	resetHandler = handler
}

// SystemReset asks the platform to reset the device. On hardware the
// handler does not return; without a handler, or in tests where it does
// return, control comes back to the caller.
func SystemReset() {
	DumpTimingRing()
	if resetHandler != nil {
		resetHandler()
	}
}
