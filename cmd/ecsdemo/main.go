package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/argus-labs/ecsrt/cmd/ecsdemo/system"
	"github.com/argus-labs/ecsrt/pkg/engine"
	"github.com/argus-labs/ecsrt/pkg/telemetry"
)

const (
	canvasWidth  = 32
	canvasHeight = 12
)

func main() {
	tel, err := telemetry.New(telemetry.Options{ServiceName: "ecsdemo"})
	if err != nil {
		panic(err.Error())
	}
	logger := tel.GetLogger("engine")

	e, err := engine.New(engine.Options{Logger: &logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create engine")
	}

	e.AddResource(system.CanvasName, system.NewCanvas(canvasWidth, canvasHeight)).
		AddResource(system.ClockName, &system.Clock{})

	must := func(err error) {
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to register systems")
		}
	}
	must(e.RegisterSystems(engine.Startup, system.SpawnSystem(canvasWidth, canvasHeight)))
	must(e.RegisterSystems(engine.FixedUpdate,
		system.MovementSystem(),
		system.BounceSystem(canvasWidth, canvasHeight),
	))
	must(e.RegisterSystems(engine.Render,
		system.DrawSystem(tel.GetLogger("draw"), 60),
		system.ClearSystem(),
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := e.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("engine stopped with an error")
	}
}
