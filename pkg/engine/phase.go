package engine

// Phase is a named stage of the frame. Every phase has its own schedule.
type Phase uint8

const (
	// Startup runs once when the engine starts.
	Startup Phase = iota
	// FixedUpdate runs zero or more times per frame, once per elapsed timestep.
	FixedUpdate
	// Update runs once per frame.
	Update
	// Render runs once per frame, after Update.
	Render

	phaseCount = 4
)

func (p Phase) String() string {
	switch p {
	case Startup:
		return "startup"
	case FixedUpdate:
		return "fixed_update"
	case Update:
		return "update"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

func (p Phase) valid() bool {
	return p < phaseCount
}
