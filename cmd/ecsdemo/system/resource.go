package system

import "strings"

const (
	CanvasName = "canvas"
	ClockName  = "clock"
)

// Canvas is a character grid redrawn every frame.
type Canvas struct {
	Width  int
	Height int
	Cells  [][]string
}

func NewCanvas(width, height int) *Canvas {
	c := &Canvas{Width: width, Height: height}
	c.Clear()
	return c
}

func (c *Canvas) Clear() {
	c.Cells = make([][]string, c.Height)
	for y := range c.Cells {
		c.Cells[y] = make([]string, c.Width)
		for x := range c.Cells[y] {
			c.Cells[y][x] = "."
		}
	}
}

func (c *Canvas) Draw(x, y int, glyph string) {
	if y < 0 || y >= c.Height || x < 0 || x >= c.Width {
		return
	}
	c.Cells[y][x] = glyph
}

func (c *Canvas) String() string {
	var sb strings.Builder
	for _, row := range c.Cells {
		sb.WriteString(strings.Join(row, ""))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Clock counts frames and fixed updates.
type Clock struct {
	Frames       int
	FixedUpdates int
}
