package component

const (
	PositionName = "position"
	VelocityName = "velocity"
	GlyphName    = "glyph"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Velocity struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Glyph is the character an entity is drawn with.
type Glyph struct {
	Rune string `json:"rune"`
}
