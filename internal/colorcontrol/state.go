package colorcontrol

// CommandKind identifies which stepping algorithm a transition uses.
type CommandKind uint8

const (
	KindMoveToHue CommandKind = iota + 1
	KindMoveHue
	KindStepHue
	KindMoveToSaturation
	KindMoveSaturation
	KindStepSaturation
	KindMoveToHueAndSaturation
)

func (k CommandKind) String() string {
	switch k {
	case KindMoveToHue:
		return "MoveToHue"
	case KindMoveHue:
		return "MoveHue"
	case KindStepHue:
		return "StepHue"
	case KindMoveToSaturation:
		return "MoveToSaturation"
	case KindMoveSaturation:
		return "MoveSaturation"
	case KindStepSaturation:
		return "StepSaturation"
	case KindMoveToHueAndSaturation:
		return "MoveToHueAndSaturation"
	default:
		return "None"
	}
}

// MarshalText encodes the kind by name in API and event payloads.
func (k CommandKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// bounded reports whether the transition ends on its own once a target is reached.
func (k CommandKind) bounded() bool {
	return k != KindMoveHue && k != KindMoveSaturation
}

// Axis names one of the two color coordinates.
type Axis uint8

const (
	AxisHue Axis = iota
	AxisSaturation
)

func (a Axis) String() string {
	if a == AxisSaturation {
		return "saturation"
	}
	return "hue"
}

// MarshalText encodes the axis by name.
func (a Axis) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// TransitionState is the in-progress transition plan for one endpoint.
type TransitionState struct {
	Active              bool        `json:"active"`
	Kind                CommandKind `json:"kind"`
	HueDirection        bool        `json:"hue_up"`
	SaturationDirection bool        `json:"saturation_up"`
	AcceleratedAxis     Axis        `json:"accelerated_axis"`
	AccelerationRate    int         `json:"acceleration_rate"`
	HueTarget           uint8       `json:"hue_target"`
	SaturationTarget    uint8       `json:"saturation_target"`
	TickIntervalMs      uint32      `json:"tick_interval_ms"`
	ElapsedMs           uint32      `json:"elapsed_ms"`
	TotalDurationMs     uint32      `json:"total_duration_ms"`
}

// RemainingDeciseconds returns the RemainingTime attribute value derived from progress.
func (s *TransitionState) RemainingDeciseconds() uint16 {
	if s.ElapsedMs >= s.TotalDurationMs {
		return 0
	}
	ds := (s.TotalDurationMs - s.ElapsedMs) / 100
	if ds > 0xFFFE {
		ds = 0xFFFE
	}
	return uint16(ds)
}

// Phase is the coarse state of an endpoint's transition state machine.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseRunningBounded   Phase = "running_bounded"
	PhaseRunningUnbounded Phase = "running_unbounded"
	PhaseRunningCoupled   Phase = "running_coupled"
)

func (s *TransitionState) phase() Phase {
	switch {
	case s == nil || !s.Active:
		return PhaseIdle
	case s.Kind == KindMoveToHueAndSaturation:
		return PhaseRunningCoupled
	case s.Kind.bounded():
		return PhaseRunningBounded
	default:
		return PhaseRunningUnbounded
	}
}

// EndReason says why a transition left the running state.
type EndReason string

const (
	EndCompleted EndReason = "completed"
	EndStopped   EndReason = "stopped"
	EndAborted   EndReason = "aborted"
)

// TransitionEnd describes a finished transition.
type TransitionEnd struct {
	Endpoint uint8
	Kind     CommandKind
	Reason   EndReason
}
