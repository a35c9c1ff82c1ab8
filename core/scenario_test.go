package core

import (
	"errors"
	"math/rand"
	"testing"
)

func pcmSamples(frame []byte) []int16 {
	out := make([]int16, len(frame)/2)
	for i := range out {
		out[i] = int16(uint16(frame[2*i]) | uint16(frame[2*i+1])<<8)
	}
	return out
}

func TestAudioOnlyRamp(t *testing.T) {
	r := newRig(t, 288)
	r.mustBoot()

	if r.audioPeriod != 1800 {
		t.Fatalf("frame period = %d ticks, want 1800", r.audioPeriod)
	}
	r.run(1000 * int(r.audioPeriod))

	frames := r.sink.frames(ChannelAudio)
	if len(frames) != 1000 {
		t.Fatalf("got %d audio frames, want 1000", len(frames))
	}
	for n, f := range frames {
		samples := pcmSamples(f.frame)
		if len(samples) != 288 {
			t.Fatalf("frame %d has %d samples", n, len(samples))
		}
		for i, s := range samples {
			if s != int16(i) {
				t.Fatalf("frame %d sample %d = %d, want %d", n, i, s, i)
			}
		}
	}
	if len(r.sink.sent) != 1000 {
		t.Errorf("unexpected extra sends: %d", len(r.sink.sent))
	}
}

func TestAudioAndPressureTenSeconds(t *testing.T) {
	r := newRig(t, 288)
	pressure := NewPolledChannel(ChannelPressure, 0, PressureLayout, PressureTiming, &fakeSensor{})
	r.declare(pressure, true)
	r.mustBoot()

	r.run(10 * TimerFreq)

	audio := r.sink.frames(ChannelAudio)
	if want := 16000 * 10 / 288; len(audio) != want {
		t.Errorf("audio frames = %d, want %d", len(audio), want)
	}
	if got := len(r.sink.frames(ChannelPressure)); got < 495 {
		t.Errorf("pressure frames = %d, want >= 495", got)
	}

	order := map[ChannelID]int{ChannelAudio: 0, ChannelPressure: 1}
	both := 0
	for i := 1; i < len(r.sink.sent); i++ {
		prev, cur := r.sink.sent[i-1], r.sink.sent[i]
		if prev.pass != cur.pass {
			continue
		}
		both++
		if order[prev.id] >= order[cur.id] {
			t.Fatalf("pass %d serviced %v before %v", cur.pass, prev.id, cur.id)
		}
	}
	if both == 0 {
		t.Errorf("no pass serviced both channels; order not exercised")
	}
}

func TestForegroundStallDropsNewest(t *testing.T) {
	r := newRig(t, 288)
	r.pcm.gen = func(frame, i int) int16 { return int16(frame) }
	r.mustBoot()

	P := int(r.audioPeriod)
	const k = 5
	// Captures 0..k-2 are delivered normally.
	r.run(k*P - 1)
	// Capture k-1 completes on the first stalled tick and stays pending
	// while the foreground is suspended for three frame periods.
	r.stall(3*P - 1)
	r.run(3*P + 1)

	var got []int16
	for _, f := range r.sink.frames(ChannelAudio) {
		got = append(got, pcmSamples(f.frame)[0])
	}
	// Captures 5 and 6 complete during the stall and are lost.
	want := []int16{0, 1, 2, 3, 4, 7, 8, 9}
	if len(got) != len(want) {
		t.Fatalf("transcript %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transcript %v, want %v", got, want)
		}
	}
	if r.pcm.frames != 10 {
		t.Errorf("captured %d frames, want 10", r.pcm.frames)
	}
	for _, f := range r.sink.frames(ChannelAudio) {
		s := pcmSamples(f.frame)
		for i := range s {
			if s[i] != s[0] {
				t.Fatalf("frame mixes captures %d and %d", s[0], s[i])
			}
		}
	}
}

func TestIMUInitFailureResets(t *testing.T) {
	r := newRig(t, 288)
	imu := NewPolledChannel(ChannelIMU, 1, IMULayout, IMUTiming, &fakeSensor{initErr: errInjected})
	r.declare(imu, true)

	r.sched = NewScheduler(r.sink, r.reg, r.res)
	r.sched.Run()

	if r.resets != 1 {
		t.Errorf("resets = %d, want 1", r.resets)
	}
	r.stall(10 * int(r.audioPeriod))
	if len(r.sink.sent) != 0 {
		t.Errorf("sink received %d frames after failed boot", len(r.sink.sent))
	}
	if r.sched.Booted() {
		t.Errorf("scheduler reports booted after failure")
	}
}

func TestRadarSixteenHertz(t *testing.T) {
	r := newRig(t, 288)
	radar := NewPolledChannel(ChannelRadar, 3, RadarLayout, RadarTiming, &fakeSensor{})
	r.declare(radar, true)
	r.mustBoot()

	if p := RadarTiming.Period(); p != 6250 {
		t.Fatalf("radar period = %d, want 6250", p)
	}
	r.run(100 * 6250)

	frames := r.sink.frames(ChannelRadar)
	if len(frames) != 100 {
		t.Fatalf("radar sends = %d, want 100", len(frames))
	}
	for i, f := range frames {
		if len(f.frame) != RadarLayout.Size() || len(f.frame) != 4096 {
			t.Fatalf("radar frame %d is %d bytes", i, len(f.frame))
		}
	}
}

func TestRampNeverTornUnderRandomInterleaving(t *testing.T) {
	const frameSize = 64
	rng := rand.New(rand.NewSource(1))

	r := newRig(t, frameSize)
	r.pcm.gen = func(frame, i int) int16 { return int16(frame*frameSize + i) }
	r.mustBoot()

	swaps := 0
	pair := r.audio.Pair()
	for step := 0; step < 200000; step++ {
		if rng.Intn(3) == 0 {
			before := pair.Active()
			r.pcm.step(1 + rng.Intn(frameSize))
			if pair.Active() != before {
				swaps++
			}
			if swaps > 1 {
				t.Fatalf("step %d: second swap without a release", step)
			}
		} else {
			if r.sched.Pass() > 0 {
				swaps = 0
			}
		}
	}

	frames := r.sink.frames(ChannelAudio)
	if len(frames) < 100 {
		t.Fatalf("only %d frames delivered", len(frames))
	}
	last := -1
	for n, f := range frames {
		s := pcmSamples(f.frame)
		if int(s[0])%frameSize != 0 {
			t.Fatalf("frame %d starts mid-capture at %d", n, s[0])
		}
		for i := 1; i < len(s); i++ {
			if s[i] != s[i-1]+1 {
				t.Fatalf("frame %d torn at %d: %d after %d", n, i, s[i], s[i-1])
			}
		}
		// Capture indices wrap with the int16 ramp.
		const wrap = 65536 / frameSize
		idx := int(uint16(s[0])) / frameSize
		if last >= 0 {
			if d := (idx - last + wrap) % wrap; d == 0 || d > wrap/2 {
				t.Fatalf("frame %d out of capture order: %d after %d", n, idx, last)
			}
		}
		last = idx
	}
}

func TestPolledCadenceWithForegroundJitter(t *testing.T) {
	const maxGap = 40
	rng := rand.New(rand.NewSource(7))

	r := newRig(t, 288)
	imu := NewPolledChannel(ChannelIMU, 1, IMULayout, IMUTiming, &fakeSensor{})
	r.declare(imu, true)
	r.mustBoot()

	gap := 0
	for i := 0; i < 5*TimerFreq; i++ {
		r.tick()
		gap++
		if gap >= maxGap || rng.Intn(maxGap) == 0 {
			r.sched.Pass()
			gap = 0
		}
	}

	frames := r.sink.frames(ChannelIMU)
	if len(frames) < 245 {
		t.Fatalf("imu frames = %d", len(frames))
	}
	period := int64(IMUTiming.Period())
	for i := 1; i < len(frames); i++ {
		d := int64(frames[i].tick) - int64(frames[i-1].tick)
		if d < period-maxGap || d > period+maxGap {
			t.Fatalf("inter-arrival %d = %d ticks, want %d±%d", i, d, period, maxGap)
		}
	}
}

func TestEachChannelAtMostOncePerPass(t *testing.T) {
	r := newRig(t, 288)
	sensor := &fakeSensor{}
	imu := NewPolledChannel(ChannelIMU, 1, IMULayout, IMUTiming, sensor)
	r.declare(imu, true)
	r.mustBoot()

	// A tick landing while the IMU is being read is serviced next pass.
	sensor.onRead = func() { imu.Tick() }
	imu.Tick()
	r.pcm.complete()

	if n := r.sched.Pass(); n != 2 {
		t.Fatalf("first pass delivered %d frames, want 2", n)
	}
	if n := r.sched.Pass(); n != 1 {
		t.Fatalf("second pass delivered %d frames, want 1", n)
	}
	if r.sink.sent[0].id != ChannelAudio || r.sink.sent[1].id != ChannelIMU {
		t.Errorf("first pass order %v, %v", r.sink.sent[0].id, r.sink.sent[1].id)
	}
}

func TestBootFailureAtEveryStep(t *testing.T) {
	clockSteps := []InitStep{
		StepPLLReserve, StepPLLFrequency, StepPLLEnable,
		StepRootReserve, StepRootSource, StepRootEnable,
	}
	timerSteps := []InitStep{
		StepTimerInit, StepTimerConfigure, StepTimerFrequency,
		StepTimerCallback, StepTimerEvent, StepTimerStart,
	}

	type injection struct {
		name    string
		step    InitStep
		channel ChannelID
		setup   func(r *rig, s *fakeSensor)
	}
	var cases []injection
	for _, step := range clockSteps {
		step := step
		cases = append(cases, injection{step.String(), step, ChannelAudio, func(r *rig, s *fakeSensor) {
			r.clocks.failAt = step
		}})
	}
	for _, step := range timerSteps {
		step := step
		cases = append(cases, injection{step.String(), step, ChannelPressure, func(r *rig, s *fakeSensor) {
			r.res.Timers = &failingTimers{TimerBank: r.bank, failAt: step}
		}})
	}
	cases = append(cases,
		injection{"pcm init", StepPCMInit, ChannelAudio, func(r *rig, s *fakeSensor) { r.pcm.initErr = errInjected }},
		injection{"pcm start", StepPCMStart, ChannelAudio, func(r *rig, s *fakeSensor) { r.pcm.startErr = errInjected }},
		injection{"sensor init", StepSensorInit, ChannelPressure, func(r *rig, s *fakeSensor) { s.initErr = errInjected }},
		injection{"sink init", StepSinkInit, ChannelAudio, func(r *rig, s *fakeSensor) { r.sink.initErr = errInjected }},
	)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			build := func() *rig {
				r := newRig(t, 288)
				sensor := &fakeSensor{}
				r.declare(NewPolledChannel(ChannelPressure, 2, PressureLayout, PressureTiming, sensor), true)
				tc.setup(r, sensor)
				return r
			}
			checkErr := func(phase string, err error) {
				t.Helper()
				var ie *InitError
				if !errors.As(err, &ie) {
					t.Fatalf("%s error = %v, want *InitError", phase, err)
				}
				if ie.Step != tc.step || ie.Channel != tc.channel {
					t.Errorf("%s failed at %v/%v, want %v/%v", phase, ie.Channel, ie.Step, tc.channel, tc.step)
				}
				if !errors.Is(err, errInjected) {
					t.Errorf("%s error %v does not wrap the injected failure", phase, err)
				}
			}

			// Each phase gets its own rig: a timer claimed by the first
			// Init would otherwise fail Boot with ErrTimerInUse.
			r := build()
			checkErr("Init", NewScheduler(r.sink, r.reg, r.res).Init())

			r = build()
			if r.boot() {
				t.Fatalf("boot succeeded")
			}
			checkErr("Boot", r.sched.BootErr())
			if r.resets != 1 {
				t.Errorf("resets = %d, want 1", r.resets)
			}
			r.stall(int(r.audioPeriod) * 4)
			if len(r.sink.sent) != 0 {
				t.Errorf("sink received %d frames", len(r.sink.sent))
			}
		})
	}
}

func TestReadFailureLoggedAtEndOfPass(t *testing.T) {
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	InitAsyncDebug()
	defer func() {
		debugChan = nil
		SetDebugEnabled(false)
		SetDebugWriter(func(string) {})
	}()

	r := newRig(t, 288)
	sensor := &fakeSensor{readErr: errInjected}
	imu := NewPolledChannel(ChannelIMU, 1, IMULayout, IMUTiming, sensor)
	r.declare(imu, true)
	r.mustBoot()

	// Debug off: nothing is formatted or queued.
	imu.Tick()
	r.sched.Pass()
	if len(debugChan) != 0 || len(lines) != 0 {
		t.Fatalf("queued %d, wrote %q with debug off", len(debugChan), lines)
	}

	SetDebugEnabled(true)
	imu.Tick()
	r.sched.Pass()
	if len(debugChan) != 0 {
		t.Errorf("%d lines left queued after the pass", len(debugChan))
	}
	want := "[READ] imu: " + errInjected.Error()
	if len(lines) != 1 || lines[0] != want {
		t.Errorf("lines = %q, want [%q]", lines, want)
	}
}
