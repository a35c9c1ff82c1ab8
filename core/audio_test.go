package core

import "testing"

func TestAudioConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*AudioConfig)
		want error
	}{
		{"default", func(c *AudioConfig) {}, nil},
		{"rate", func(c *AudioConfig) { c.SampleRate = 12345 }, ErrUnsupportedSampleRate},
		{"frame", func(c *AudioConfig) { c.FrameSize = 0 }, ErrInvalidFrameSize},
		{"decimation", func(c *AudioConfig) { c.DecimationRate = 50 }, ErrInvalidDecimation},
		{"word", func(c *AudioConfig) { c.WordLength = 24 }, ErrInvalidWordLength},
	}
	for _, tt := range tests {
		cfg := DefaultAudioConfig()
		tt.mod(&cfg)
		if err := cfg.Validate(); err != tt.want {
			t.Errorf("%s: Validate() = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestAudioInitArmsSlotZero(t *testing.T) {
	r := newRig(t, 16)
	r.mustBoot()

	if !r.audio.Running() {
		t.Fatalf("audio not running")
	}
	if r.pcm.armed != 1 || &r.pcm.dst[0] != &r.audio.Pair().Samples(Slot0)[0] {
		t.Errorf("first capture not armed into slot 0")
	}
	if r.clocks.pllHz != AudioPLL48kFamily {
		t.Errorf("pll = %d", r.clocks.pllHz)
	}
}

func TestAudioRearmIsUnconditional(t *testing.T) {
	r := newRig(t, 16)
	r.mustBoot()

	r.pcm.complete()
	r.pcm.complete()
	r.pcm.complete()
	if r.pcm.armed != 4 {
		t.Errorf("armed %d times, want 4", r.pcm.armed)
	}
	// The second and third captures reused slot 1; slot 0 holds the
	// first capture and is still pending.
	if r.audio.Pair().Active() != Slot1 {
		t.Errorf("active = %d", r.audio.Pair().Active())
	}
	if full, ok := r.audio.Pair().TakeFull(); !ok || full != Slot0 {
		t.Errorf("full = %d, %v", full, ok)
	}
}

func TestAudioServiceReleasesLast(t *testing.T) {
	r := newRig(t, 4)
	r.pcm.gen = func(frame, i int) int16 { return int16(-1 - i) }
	r.mustBoot()

	r.pcm.complete()
	if !r.audio.Ready() {
		t.Fatalf("not ready after completion")
	}
	frame := r.audio.Service()
	if r.audio.Ready() {
		t.Errorf("still ready after service")
	}
	want := []byte{0xFF, 0xFF, 0xFE, 0xFF, 0xFD, 0xFF, 0xFC, 0xFF}
	if string(frame) != string(want) {
		t.Errorf("frame = % x, want % x", frame, want)
	}
}
