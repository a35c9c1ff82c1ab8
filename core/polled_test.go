package core

import (
	"errors"
	"testing"
)

func newTestPolled(t *testing.T, s Sensor) (*PolledChannel, *TimerBank) {
	t.Helper()
	reg := NewRegistry()
	ch := NewPolledChannel(ChannelPressure, 2, PressureLayout, PressureTiming, s)
	reg.MustDeclare(ch, true)
	bank := NewTimerBank()
	if err := ch.Init(Resources{Timers: bank}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return ch, bank
}

func TestPolledClearsFlagBeforeRead(t *testing.T) {
	var ch *PolledChannel
	sensor := &fakeSensor{}
	sensor.onRead = func() {
		if ch.Ready() {
			t.Errorf("flag still set during read")
		}
	}
	ch, bank := newTestPolled(t, sensor)

	bank.Advance(2000)
	if !ch.Ready() {
		t.Fatalf("timer did not raise flag")
	}
	frame := ch.Service()
	if len(frame) != 8 || frame[0] != 1 {
		t.Errorf("frame = %v", frame)
	}
}

func TestPolledMissedTickDropped(t *testing.T) {
	sensor := &fakeSensor{}
	ch, bank := newTestPolled(t, sensor)

	bank.Advance(2000)
	bank.Advance(4000)
	ch.Service()
	if ch.Ready() {
		t.Errorf("second tick left a pending frame")
	}
	if sensor.reads != 1 {
		t.Errorf("reads = %d, want 1", sensor.reads)
	}
}

func TestPolledForwardsStaleOnReadError(t *testing.T) {
	sensor := &fakeSensor{}
	ch, _ := newTestPolled(t, sensor)

	ch.Tick()
	good := append([]byte(nil), ch.Service()...)

	sensor.readErr = errors.New("nack")
	ch.Tick()
	stale := ch.Service()
	if string(stale) != string(good) {
		t.Errorf("stale frame %v, want %v", stale, good)
	}
	if ch.LastReadErr() != sensor.readErr {
		t.Errorf("LastReadErr = %v", ch.LastReadErr())
	}
	if reads, failed := ch.ReadStats(); reads != 2 || failed != 1 {
		t.Errorf("stats = %d/%d", reads, failed)
	}
}

func TestPolledInitOrder(t *testing.T) {
	sensor := &fakeSensor{initErr: errInjected}
	reg := NewRegistry()
	ch := NewPolledChannel(ChannelRadar, 3, RadarLayout, RadarTiming, sensor)
	reg.MustDeclare(ch, true)
	bank := NewTimerBank()

	err := ch.Init(Resources{Timers: bank})
	var ie *InitError
	if !errors.As(err, &ie) || ie.Step != StepSensorInit || ie.Channel != ChannelRadar {
		t.Fatalf("err = %v", err)
	}
	if _, ok := bank.NextWake(); ok {
		t.Errorf("timer started despite sensor failure")
	}
}
