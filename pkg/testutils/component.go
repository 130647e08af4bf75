package testutils

// Component names used across tests.
const (
	PositionName = "position"
	VelocityName = "velocity"
	HealthName   = "health"
	TagName      = "tag"
)

// ComponentNames lists every fixture component name.
var ComponentNames = []string{PositionName, VelocityName, HealthName, TagName} //nolint:gochecknoglobals // fixture

type Position struct {
	X, Y float64
}

type Velocity struct {
	DX, DY float64
}

type Health struct {
	HP    int
	Flags []string
}

type Tag struct{}
