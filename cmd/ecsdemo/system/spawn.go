package system

import (
	"context"
	"math/rand/v2"

	"github.com/argus-labs/ecsrt/cmd/ecsdemo/component"
	"github.com/argus-labs/ecsrt/pkg/ecs"
	"github.com/rotisserie/eris"
)

const spawnCount = 8

var glyphs = []string{"@", "#", "*", "o", "x", "+", "%", "&"}

// SpawnSystem creates the moving entities. It uses commands, so it always runs alone.
func SpawnSystem(width, height int) *ecs.System {
	return ecs.NewSystem(ecs.SystemConfig[*ecs.Commands]{
		Name:    "spawn",
		Declare: func(a ecs.Accessor) (*ecs.Commands, error) { return a.Commands(), nil },
		Run: func(_ context.Context, cmd *ecs.Commands) error {
			for i := range spawnCount {
				_, err := cmd.Spawn(map[string]any{
					component.PositionName: component.Position{
						X: float64(rand.IntN(width)),  //nolint:gosec // demo
						Y: float64(rand.IntN(height)), //nolint:gosec // demo
					},
					component.VelocityName: component.Velocity{
						DX: rand.Float64()*2 - 1, //nolint:gosec // demo
						DY: rand.Float64()*2 - 1, //nolint:gosec // demo
					},
					component.GlyphName: component.Glyph{Rune: glyphs[i%len(glyphs)]},
				})
				if err != nil {
					return eris.Wrap(err, "failed to spawn entity")
				}
			}
			return nil
		},
	})
}
