package colorcontrol

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"zigbee-color-light/internal/zcl/clusters"
)

var errFake = errors.New("fake failure")

type attrKey struct {
	endpoint uint8
	attrID   uint16
}

// fakeAttributes is an in-memory attribute table with failure injection.
type fakeAttributes struct {
	values    map[attrKey]interface{}
	failRead  map[uint16]bool
	failWrite map[uint16]bool
	hueLog    []uint8
	satLog    []uint8
	remaining []uint16
}

func newFakeAttributes() *fakeAttributes {
	return &fakeAttributes{
		values:    make(map[attrKey]interface{}),
		failRead:  make(map[uint16]bool),
		failWrite: make(map[uint16]bool),
	}
}

func (f *fakeAttributes) set(ep uint8, hue, sat uint8) {
	f.values[attrKey{ep, clusters.AttrCurrentHue}] = hue
	f.values[attrKey{ep, clusters.AttrCurrentSaturation}] = sat
	f.values[attrKey{ep, clusters.AttrRemainingTime}] = clusters.RemainingTimeIdle
}

func (f *fakeAttributes) hue(ep uint8) uint8 {
	v, _ := f.values[attrKey{ep, clusters.AttrCurrentHue}].(uint8)
	return v
}

func (f *fakeAttributes) sat(ep uint8) uint8 {
	v, _ := f.values[attrKey{ep, clusters.AttrCurrentSaturation}].(uint8)
	return v
}

func (f *fakeAttributes) remainingTime(ep uint8) uint16 {
	v, _ := f.values[attrKey{ep, clusters.AttrRemainingTime}].(uint16)
	return v
}

func (f *fakeAttributes) ReadAttribute(ep uint8, clusterID, attrID uint16) (interface{}, error) {
	if clusterID != clusters.ColorControlID || f.failRead[attrID] {
		return nil, errFake
	}
	v, ok := f.values[attrKey{ep, attrID}]
	if !ok {
		return nil, errFake
	}
	return v, nil
}

func (f *fakeAttributes) WriteAttribute(ep uint8, clusterID, attrID uint16, value interface{}) error {
	if clusterID != clusters.ColorControlID || f.failWrite[attrID] {
		return errFake
	}
	switch attrID {
	case clusters.AttrCurrentHue:
		f.hueLog = append(f.hueLog, value.(uint8))
	case clusters.AttrCurrentSaturation:
		f.satLog = append(f.satLog, value.(uint8))
	case clusters.AttrRemainingTime:
		f.remaining = append(f.remaining, value.(uint16))
	}
	f.values[attrKey{ep, attrID}] = value
	return nil
}

// fakeScheduler records the single pending tick per endpoint.
type fakeScheduler struct {
	pending   map[uint8]time.Duration
	scheduled int
	cancelled int
	err       error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{pending: make(map[uint8]time.Duration)}
}

func (s *fakeScheduler) ScheduleTick(ep uint8, delay time.Duration) error {
	if s.err != nil {
		return s.err
	}
	s.scheduled++
	s.pending[ep] = delay
	return nil
}

func (s *fakeScheduler) CancelTick(ep uint8) {
	if _, ok := s.pending[ep]; ok {
		s.cancelled++
	}
	delete(s.pending, ep)
}

// fire delivers the pending tick for ep, if any, and reports whether one was pending.
func (s *fakeScheduler) fire(e *Engine, ep uint8) bool {
	if _, ok := s.pending[ep]; !ok {
		return false
	}
	delete(s.pending, ep)
	e.Tick(ep)
	return true
}

// runUntilIdle fires ticks until nothing is pending, returning the tick count.
func (s *fakeScheduler) runUntilIdle(t *testing.T, e *Engine, ep uint8, limit int) int {
	t.Helper()
	ticks := 0
	for s.fire(e, ep) {
		ticks++
		if ticks > limit {
			t.Fatalf("transition did not finish within %d ticks", limit)
		}
	}
	return ticks
}

type testRig struct {
	attrs  *fakeAttributes
	sched  *fakeScheduler
	engine *Engine
	ended  []TransitionEnd
}

func newTestRig(t *testing.T, capability Capability) *testRig {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	rig := &testRig{attrs: newFakeAttributes(), sched: newFakeScheduler()}
	rig.engine = New(rig.attrs, capability, rig.sched, logger)
	rig.engine.OnTransitionEnd(func(end TransitionEnd) {
		rig.ended = append(rig.ended, end)
	})
	return rig
}
