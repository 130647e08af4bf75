package system

import (
	"context"
	"math"

	"github.com/argus-labs/ecsrt/cmd/ecsdemo/component"
	"github.com/argus-labs/ecsrt/pkg/ecs"
	"github.com/rs/zerolog"
)

// ClearSystem wipes the canvas at the start of every render pass.
func ClearSystem() *ecs.System {
	return ecs.NewSystem(ecs.SystemConfig[*Canvas]{
		Name:    "clear",
		Declare: func(a ecs.Accessor) (*Canvas, error) { return ecs.GetMutableResource[Canvas](a, CanvasName) },
		Run: func(_ context.Context, canvas *Canvas) error {
			canvas.Clear()
			return nil
		},
	})
}

type drawParams struct {
	Sprites *ecs.Query // position, glyph
	Canvas  *Canvas
	Clock   *Clock
}

// DrawSystem draws every entity onto the cleared canvas and logs it every logEvery frames.
func DrawSystem(logger zerolog.Logger, logEvery int) *ecs.System {
	return ecs.NewSystem(ecs.SystemConfig[drawParams]{
		Name:  "draw",
		After: []string{"clear"},
		Declare: func(a ecs.Accessor) (drawParams, error) {
			sprites, err := a.Query(ecs.Read(component.PositionName, component.GlyphName))
			if err != nil {
				return drawParams{}, err
			}
			canvas, err := ecs.GetMutableResource[Canvas](a, CanvasName)
			if err != nil {
				return drawParams{}, err
			}
			clock, err := ecs.GetMutableResource[Clock](a, ClockName)
			if err != nil {
				return drawParams{}, err
			}
			return drawParams{Sprites: sprites, Canvas: canvas, Clock: clock}, nil
		},
		Run: func(_ context.Context, p drawParams) error {
			for row := range p.Sprites.All() {
				pos, err := ecs.Get[component.Position](row, 0)
				if err != nil {
					return err
				}
				glyph, err := ecs.Get[component.Glyph](row, 1)
				if err != nil {
					return err
				}
				p.Canvas.Draw(int(math.Round(pos.X)), int(math.Round(pos.Y)), glyph.Rune)
			}

			p.Clock.Frames++
			if logEvery > 0 && p.Clock.Frames%logEvery == 0 {
				logger.Info().
					Int("frame", p.Clock.Frames).
					Int("fixed_updates", p.Clock.FixedUpdates).
					Msg("\n" + p.Canvas.String())
			}
			return nil
		},
	})
}
