package colorcontrol

import (
	"fmt"
	"testing"
	"time"

	"zigbee-color-light/internal/zcl"
	"zigbee-color-light/internal/zcl/clusters"
)

func TestMoveToHueUpCountsDown(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.attrs.set(1, 10, 100)

	if st := rig.engine.MoveToHue(1, 20, DirectionUp, 10); st != zcl.StatusSuccess {
		t.Fatalf("status = %v, want SUCCESS", st)
	}
	if got := rig.sched.pending[1]; got != 100*time.Millisecond {
		t.Fatalf("first tick delay = %v, want 100ms", got)
	}
	state := rig.engine.State(1)
	if state.TickIntervalMs != 100 || state.TotalDurationMs != 1000 {
		t.Fatalf("interval/total = %d/%d, want 100/1000", state.TickIntervalMs, state.TotalDurationMs)
	}
	if got := rig.engine.Phase(1); got != PhaseRunningBounded {
		t.Errorf("phase = %v, want %v", got, PhaseRunningBounded)
	}

	ticks := rig.sched.runUntilIdle(t, rig.engine, 1, 50)
	if ticks != 10 {
		t.Errorf("ticks = %d, want 10", ticks)
	}

	wantHues := []uint8{11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	if len(rig.attrs.hueLog) != len(wantHues) {
		t.Fatalf("hue writes = %v, want %v", rig.attrs.hueLog, wantHues)
	}
	for i, h := range wantHues {
		if rig.attrs.hueLog[i] != h {
			t.Errorf("hue write %d = %d, want %d", i, rig.attrs.hueLog[i], h)
		}
	}

	// Start value, then 9..1 during ticks, then cleared.
	wantRemaining := []uint16{10, 9, 8, 7, 6, 5, 4, 3, 2, 1, clusters.RemainingTimeIdle}
	if len(rig.attrs.remaining) != len(wantRemaining) {
		t.Fatalf("remaining writes = %v, want %v", rig.attrs.remaining, wantRemaining)
	}
	for i, r := range wantRemaining {
		if rig.attrs.remaining[i] != r {
			t.Errorf("remaining write %d = %d, want %d", i, rig.attrs.remaining[i], r)
		}
	}

	if rig.engine.State(1).Active {
		t.Error("transition still active after reaching target")
	}
	if len(rig.ended) != 1 || rig.ended[0].Reason != EndCompleted || rig.ended[0].Kind != KindMoveToHue {
		t.Errorf("ended = %+v, want one completed MoveToHue", rig.ended)
	}
}

func TestMoveToHueShortestWrapsDown(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.attrs.set(1, 5, 0)

	if st := rig.engine.MoveToHue(1, 250, DirectionShortest, 100); st != zcl.StatusSuccess {
		t.Fatalf("status = %v", st)
	}
	state := rig.engine.State(1)
	if state.HueDirection {
		t.Fatal("direction = up, want down")
	}

	ticks := rig.sched.runUntilIdle(t, rig.engine, 1, 50)
	if ticks != 10 {
		t.Errorf("ticks = %d, want 10", ticks)
	}
	want := []uint8{4, 3, 2, 1, 0, 0xFE, 0xFD, 0xFC, 0xFB, 0xFA}
	for i, h := range want {
		if rig.attrs.hueLog[i] != h {
			t.Errorf("hue write %d = 0x%02X, want 0x%02X", i, rig.attrs.hueLog[i], h)
		}
	}
}

func TestMoveToHueDirections(t *testing.T) {
	tests := []struct {
		name    string
		current uint8
		target  uint8
		dir     Direction
		wantUp  bool
	}{
		{"shortest up", 10, 100, DirectionShortest, true},
		{"shortest down", 100, 10, DirectionShortest, false},
		{"shortest boundary 127 goes up", 0, 127, DirectionShortest, true},
		{"shortest 128 goes down", 0, 128, DirectionShortest, false},
		{"longest up", 100, 10, DirectionLongest, true},
		{"longest down", 10, 100, DirectionLongest, false},
		{"longest boundary 127 goes up", 0, 127, DirectionLongest, true},
		{"forced up", 100, 10, DirectionUp, true},
		{"forced down", 10, 100, DirectionDown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, nil)
			rig.attrs.set(1, tt.current, 0)
			if st := rig.engine.MoveToHue(1, tt.target, tt.dir, 10); st != zcl.StatusSuccess {
				t.Fatalf("status = %v", st)
			}
			if got := rig.engine.State(1).HueDirection; got != tt.wantUp {
				t.Errorf("up = %v, want %v", got, tt.wantUp)
			}
		})
	}
}

func TestMoveToHueAtTargetIsNoop(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.attrs.set(1, 42, 0)

	if st := rig.engine.MoveToHue(1, 42, DirectionShortest, 10); st != zcl.StatusSuccess {
		t.Fatalf("status = %v, want SUCCESS", st)
	}
	if rig.sched.scheduled != 0 {
		t.Errorf("scheduled = %d, want 0", rig.sched.scheduled)
	}
	if rig.engine.State(1).Active {
		t.Error("state active after no-op")
	}
	if len(rig.attrs.remaining) != 0 {
		t.Errorf("remaining writes = %v, want none", rig.attrs.remaining)
	}
}

func TestMoveToHueRejections(t *testing.T) {
	noRed := CapabilityFunc(func(hue, _ uint8) bool { return hue > 20 })
	tests := []struct {
		name   string
		target uint8
		dir    Direction
		want   zcl.Status
	}{
		{"unsupported color", 10, DirectionUp, zcl.StatusInvalidValue},
		{"reserved hue", 0xFF, DirectionUp, zcl.StatusInvalidValue},
		{"bad direction", 100, Direction(0x07), zcl.StatusInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, noRed)
			rig.attrs.set(1, 50, 0)
			if st := rig.engine.MoveToHue(1, tt.target, tt.dir, 10); st != tt.want {
				t.Errorf("status = %v, want %v", st, tt.want)
			}
			if rig.sched.scheduled != 0 {
				t.Error("tick scheduled for rejected command")
			}
		})
	}
}

func TestMoveToHueReadFailure(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.attrs.set(1, 50, 0)
	rig.attrs.failRead[clusters.AttrCurrentHue] = true

	if st := rig.engine.MoveToHue(1, 60, DirectionUp, 10); st != zcl.StatusFailure {
		t.Errorf("status = %v, want FAILURE", st)
	}
}

func TestMoveToHueTinyTransitionClampsInterval(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.attrs.set(1, 0, 0)

	if st := rig.engine.MoveToHue(1, 200, DirectionUp, 0); st != zcl.StatusSuccess {
		t.Fatalf("status = %v", st)
	}
	if got := rig.engine.State(1).TickIntervalMs; got != 1 {
		t.Errorf("interval = %d, want 1", got)
	}
}

func TestMoveToHueRejectedKeepsPriorTransition(t *testing.T) {
	rig := newTestRig(t, CapabilityFunc(func(hue, _ uint8) bool { return hue != 99 }))
	rig.attrs.set(1, 0, 0)

	rig.engine.MoveToHue(1, 50, DirectionUp, 50)
	before := rig.engine.State(1)

	if st := rig.engine.MoveToHue(1, 99, DirectionUp, 10); st != zcl.StatusInvalidValue {
		t.Fatalf("status = %v, want INVALID_VALUE", st)
	}
	if after := rig.engine.State(1); after != before {
		t.Errorf("state changed by rejected command: %+v -> %+v", before, after)
	}
}

func TestLastCommandWins(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.attrs.set(1, 0, 0)

	rig.engine.MoveToHue(1, 100, DirectionUp, 100)
	rig.sched.fire(rig.engine, 1)
	rig.engine.MoveToHue(1, 0, DirectionDown, 10)

	if len(rig.sched.pending) != 1 {
		t.Fatalf("pending ticks = %d, want 1", len(rig.sched.pending))
	}
	rig.sched.runUntilIdle(t, rig.engine, 1, 300)
	if got := rig.attrs.hue(1); got != 0 {
		t.Errorf("hue = %d, want 0", got)
	}
}

func TestMoveHueAndStop(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.attrs.set(1, 30, 0)

	if st := rig.engine.MoveHue(1, MoveUp, 5); st != zcl.StatusSuccess {
		t.Fatalf("status = %v", st)
	}
	if got := rig.sched.pending[1]; got != 200*time.Millisecond {
		t.Errorf("delay = %v, want 200ms", got)
	}
	if got := rig.engine.Phase(1); got != PhaseRunningUnbounded {
		t.Errorf("phase = %v, want %v", got, PhaseRunningUnbounded)
	}

	if st := rig.engine.MoveHue(1, MoveStop, 0); st != zcl.StatusSuccess {
		t.Fatalf("stop status = %v", st)
	}
	if rig.engine.State(1).Active {
		t.Error("active after stop")
	}
	if len(rig.sched.pending) != 0 {
		t.Error("tick still pending after stop")
	}
	if got := rig.attrs.hue(1); got != 30 {
		t.Errorf("hue = %d, want 30", got)
	}
	if got := rig.attrs.remainingTime(1); got != clusters.RemainingTimeIdle {
		t.Errorf("remaining = 0x%04X, want 0xFFFF", got)
	}
}

func TestMoveHueRunsUntilStopped(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.attrs.set(1, 0xFC, 0)

	rig.engine.MoveHue(1, MoveUp, 10)
	for i := 0; i < 300; i++ {
		if !rig.sched.fire(rig.engine, 1) {
			t.Fatalf("move stopped by itself after %d ticks", i)
		}
	}
	for _, h := range rig.attrs.hueLog {
		if h == 0xFF {
			t.Fatal("move produced hue 0xFF")
		}
	}
	if rig.attrs.hueLog[2] != 0x00 {
		t.Errorf("third hue = 0x%02X, want wrap to 0x00", rig.attrs.hueLog[2])
	}
	rig.engine.Stop(1)
	if rig.engine.Phase(1) != PhaseIdle {
		t.Error("not idle after stop")
	}
}

func TestStopIdleIsNoop(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.attrs.set(1, 30, 40)

	for i := 0; i < 2; i++ {
		if st := rig.engine.MoveHue(1, MoveStop, 0); st != zcl.StatusSuccess {
			t.Fatalf("status = %v", st)
		}
	}
	if len(rig.attrs.remaining) != 0 || len(rig.attrs.hueLog) != 0 {
		t.Error("stop on idle endpoint wrote attributes")
	}
	if len(rig.ended) != 0 {
		t.Errorf("ended = %+v, want none", rig.ended)
	}
}

func TestMoveHueRejections(t *testing.T) {
	tests := []struct {
		name string
		mode MoveMode
		rate uint8
		want zcl.Status
	}{
		{"zero rate", MoveUp, 0, zcl.StatusInvalidValue},
		{"zero rate down", MoveDown, 0, zcl.StatusInvalidValue},
		{"bad mode", MoveMode(0x02), 10, zcl.StatusInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, nil)
			rig.attrs.set(1, 0, 0)
			if st := rig.engine.MoveHue(1, tt.mode, tt.rate); st != tt.want {
				t.Errorf("status = %v, want %v", st, tt.want)
			}
			if rig.sched.scheduled != 0 {
				t.Error("tick scheduled for rejected command")
			}
		})
	}
}

func TestStepHue(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.attrs.set(1, 100, 0)

	if st := rig.engine.StepHue(1, StepDown, 20, 40); st != zcl.StatusSuccess {
		t.Fatalf("status = %v", st)
	}
	state := rig.engine.State(1)
	if state.HueTarget != 80 || state.TickIntervalMs != 200 {
		t.Fatalf("target/interval = %d/%d, want 80/200", state.HueTarget, state.TickIntervalMs)
	}
	if ticks := rig.sched.runUntilIdle(t, rig.engine, 1, 50); ticks != 20 {
		t.Errorf("ticks = %d, want 20", ticks)
	}
	if got := rig.attrs.hue(1); got != 80 {
		t.Errorf("hue = %d, want 80", got)
	}
}

func TestStepHueWrapSkipsInvalid(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.attrs.set(1, 0xF5, 0)

	rig.engine.StepHue(1, StepUp, 10, 10)
	if got := rig.engine.State(1).HueTarget; got != 0x00 {
		t.Fatalf("target = 0x%02X, want 0x00", got)
	}
	rig.sched.runUntilIdle(t, rig.engine, 1, 50)
	if got := rig.attrs.hue(1); got != 0x00 {
		t.Errorf("hue = 0x%02X, want 0x00", got)
	}
}

func TestStepHueWrapTiming(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.attrs.set(1, 0xFE, 0)

	if st := rig.engine.StepHue(1, StepUp, 2, 10); st != zcl.StatusSuccess {
		t.Fatalf("status = %v", st)
	}
	state := rig.engine.State(1)
	if state.HueTarget != 0x00 {
		t.Errorf("target = 0x%02X, want 0x00", state.HueTarget)
	}
	if state.TickIntervalMs != 1000 || state.TotalDurationMs != 1000 {
		t.Errorf("interval/total = %d/%d, want 1000/1000", state.TickIntervalMs, state.TotalDurationMs)
	}
	if ticks := rig.sched.runUntilIdle(t, rig.engine, 1, 10); ticks != 1 {
		t.Errorf("ticks = %d, want 1", ticks)
	}
}

func TestStepHueRejections(t *testing.T) {
	tests := []struct {
		name string
		mode StepMode
		size uint8
		cap  Capability
		want zcl.Status
	}{
		{"zero step", StepUp, 0, nil, zcl.StatusInvalidValue},
		{"bad mode", StepMode(0x02), 5, nil, zcl.StatusInvalidField},
		{"unsupported target", StepUp, 5, CapabilityFunc(func(hue, _ uint8) bool { return hue < 12 }), zcl.StatusInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, tt.cap)
			rig.attrs.set(1, 10, 0)
			if st := rig.engine.StepHue(1, tt.mode, tt.size, 10); st != tt.want {
				t.Errorf("status = %v, want %v", st, tt.want)
			}
			if rig.sched.scheduled != 0 {
				t.Error("tick scheduled for rejected command")
			}
		})
	}
}

func TestBoundedTransitionsFinishOnSchedule(t *testing.T) {
	for _, tc := range []struct{ current, target uint8 }{{0, 1}, {10, 200}, {200, 10}, {0xFE, 0}, {3, 0xFA}} {
		for _, tt := range []uint16{0, 1, 7, 100, 600} {
			rig := newTestRig(t, nil)
			rig.attrs.set(1, tc.current, 0)
			rig.engine.MoveToHue(1, tc.target, DirectionShortest, tt)
			state := rig.engine.State(1)
			n := ringDistance(tc.current, tc.target, state.HueDirection)

			var last TransitionState
			ticks := 0
			for {
				before := rig.engine.State(1)
				if !rig.sched.fire(rig.engine, 1) {
					break
				}
				last = before
				ticks++
			}
			if ticks != n {
				t.Errorf("%d->%d T=%d: ticks = %d, want %d", tc.current, tc.target, tt, ticks, n)
			}
			if last.ElapsedMs+last.TickIntervalMs != last.TotalDurationMs {
				t.Errorf("%d->%d T=%d: elapsed before final tick %d + %d != total %d",
					tc.current, tc.target, tt, last.ElapsedMs, last.TickIntervalMs, last.TotalDurationMs)
			}
			if got := rig.attrs.hue(1); got != tc.target {
				t.Errorf("%d->%d T=%d: final hue = %d", tc.current, tc.target, tt, got)
			}
		}
	}
}

	coupled := []struct{ hue, sat, targetHue, targetSat uint8 }{
		{0, 0, 100, 10},
		{10, 10, 40, 20},
		{0, 0, 10, 100},
		{250, 100, 5, 40},
	}
	for _, tc := range coupled {
		for _, tt := range []uint16{0, 1, 7, 100, 600} {
			rig := newTestRig(t, nil)
			rig.attrs.set(1, tc.hue, tc.sat)
			rig.engine.MoveToHueAndSaturation(1, tc.targetHue, tc.targetSat, tt)
			start := rig.engine.State(1)
			name := fmt.Sprintf("(%d,%d)->(%d,%d) T=%d", tc.hue, tc.sat, tc.targetHue, tc.targetSat, tt)

			var last TransitionState
			ticks := 0
			for {
				before := rig.engine.State(1)
				if !rig.sched.fire(rig.engine, 1) {
					break
				}
				last = before
				ticks++
			}
			if want := int(start.TotalDurationMs / start.TickIntervalMs); ticks != want {
				t.Errorf("%s: ticks = %d, want %d", name, ticks, want)
			}
			if last.ElapsedMs+last.TickIntervalMs != last.TotalDurationMs {
				t.Errorf("%s: elapsed before final tick %d + %d != total %d",
					name, last.ElapsedMs, last.TickIntervalMs, last.TotalDurationMs)
			}
			// Only the rounding of the interval may shorten the requested time.
			if requested := uint32(tt) * 100; requested >= uint32(ticks) {
				if start.TotalDurationMs > requested || requested-start.TotalDurationMs >= uint32(ticks) {
					t.Errorf("%s: total = %d ms, want within %d ms below %d", name, start.TotalDurationMs, ticks, requested)
				}
			}

			rem := rig.attrs.remaining
			if len(rem) < 2 || rem[len(rem)-1] != clusters.RemainingTimeIdle {
				t.Fatalf("%s: remaining writes = %v, want idle last", name, rem)
			}
			counting := rem[:len(rem)-1]
			for i := 1; i < len(counting); i++ {
				if counting[i] > counting[i-1] {
					t.Errorf("%s: remaining went up: %v", name, counting)
					break
				}
			}
			if final := counting[len(counting)-1]; uint32(final)*100 > start.TickIntervalMs {
				t.Errorf("%s: remaining before idle = %d ds, want at most one interval (%d ms)", name, final, start.TickIntervalMs)
			}
			if rig.attrs.hue(1) != tc.targetHue || rig.attrs.sat(1) != tc.targetSat {
				t.Errorf("%s: final = (%d,%d)", name, rig.attrs.hue(1), rig.attrs.sat(1))
			}
		}
	}
}

func TestMoveToHueAndSaturationHonorsTransitionTime(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.attrs.set(1, 0, 0)

	if st := rig.engine.MoveToHueAndSaturation(1, 100, 10, 100); st != zcl.StatusSuccess {
		t.Fatalf("status = %v", st)
	}
	state := rig.engine.State(1)
	if state.TickIntervalMs != 1000 || state.TotalDurationMs != 10000 {
		t.Errorf("interval/total = %d/%d, want 1000/10000", state.TickIntervalMs, state.TotalDurationMs)
	}
	if ticks := rig.sched.runUntilIdle(t, rig.engine, 1, 50); ticks != 10 {
		t.Errorf("ticks = %d, want 10", ticks)
	}
	want := []uint16{100, 90, 80, 70, 60, 50, 40, 30, 20, 10, clusters.RemainingTimeIdle}
	if len(rig.attrs.remaining) != len(want) {
		t.Fatalf("remaining writes = %v, want %v", rig.attrs.remaining, want)
	}
	for i, w := range want {
		if rig.attrs.remaining[i] != w {
			t.Errorf("remaining write %d = %d, want %d", i, rig.attrs.remaining[i], w)
		}
	}
}
