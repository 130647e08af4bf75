package system

import (
	"context"

	"github.com/argus-labs/ecsrt/cmd/ecsdemo/component"
	"github.com/argus-labs/ecsrt/pkg/ecs"
)

type movementParams struct {
	Bodies *ecs.Query // velocity (read), position (write)
	Clock  *Clock
}

// MovementSystem moves every entity by its velocity once per fixed update.
func MovementSystem() *ecs.System {
	return ecs.NewSystem(ecs.SystemConfig[movementParams]{
		Name: "movement",
		Declare: func(a ecs.Accessor) (movementParams, error) {
			bodies, err := a.Query(ecs.Read(component.VelocityName), ecs.Write(component.PositionName))
			if err != nil {
				return movementParams{}, err
			}
			clock, err := ecs.GetMutableResource[Clock](a, ClockName)
			if err != nil {
				return movementParams{}, err
			}
			return movementParams{Bodies: bodies, Clock: clock}, nil
		},
		Run: func(_ context.Context, p movementParams) error {
			for row := range p.Bodies.All() {
				vel, err := ecs.Get[component.Velocity](row, 0)
				if err != nil {
					return err
				}
				err = ecs.Update(row, 1, func(pos *component.Position) {
					pos.X += vel.DX
					pos.Y += vel.DY
				})
				if err != nil {
					return err
				}
			}
			p.Clock.FixedUpdates++
			return nil
		},
	})
}

// BounceSystem reflects entities off the canvas edges.
func BounceSystem(width, height int) *ecs.System {
	return ecs.NewSystem(ecs.SystemConfig[*ecs.Query]{
		Name:  "bounce",
		After: []string{"movement"},
		Declare: func(a ecs.Accessor) (*ecs.Query, error) {
			return a.Query(ecs.Write(component.PositionName, component.VelocityName))
		},
		Run: func(_ context.Context, q *ecs.Query) error {
			for row := range q.All() {
				pos, err := ecs.Get[component.Position](row, 0)
				if err != nil {
					return err
				}
				err = ecs.Update(row, 1, func(vel *component.Velocity) {
					if pos.X < 0 || pos.X >= float64(width) {
						vel.DX = -vel.DX
					}
					if pos.Y < 0 || pos.Y >= float64(height) {
						vel.DY = -vel.DY
					}
				})
				if err != nil {
					return err
				}
				err = ecs.Update(row, 0, func(p *component.Position) {
					p.X = min(max(p.X, 0), float64(width-1))
					p.Y = min(max(p.Y, 0), float64(height-1))
				})
				if err != nil {
					return err
				}
			}
			return nil
		},
	})
}
