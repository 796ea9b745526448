package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/physbox/internal/logger"
	"github.com/Faultbox/physbox/internal/scene"
	"github.com/Faultbox/physbox/internal/simulation"
	"github.com/Faultbox/physbox/pkg/math"
)

var (
	// ErrUnknownCommand is returned by Apply for a command type it does not handle.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInterval is returned by Run for a non-positive tick interval.
	ErrInterval = errors.New("tick interval must be positive")
)

// Apply performs cmd on sim.
func Apply(sim *simulation.Simulation, cmd Command) error {
	switch cmd.Type {
	case "pause":
		if !sim.Paused() {
			sim.TogglePause()
		}
	case "resume":
		if sim.Paused() {
			sim.TogglePause()
		}
	case "toggle":
		sim.TogglePause()
	case "reset":
		return sim.Reset()
	case "spawn":
		t, err := scene.ParseType(cmd.Object)
		if err != nil {
			return err
		}
		pos := math.Vec3{X: cmd.Position[0], Y: cmd.Position[1], Z: cmd.Position[2]}
		_, err = sim.Spawn(scene.TemplateFor(t), pos)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	return nil
}

// Run ticks sim every interval until ctx is done. Pending commands are
// applied before each step and the resulting snapshot is broadcast through
// hub. It returns the number of ticks run.
func Run(ctx context.Context, sim *simulation.Simulation, hub *Hub, interval time.Duration) (uint64, error) {
	if interval <= 0 {
		return 0, ErrInterval
	}
	log := logger.Named("stream")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	dt := float32(interval.Seconds())
	var frame uint64
	for {
		select {
		case <-ctx.Done():
			return frame, nil
		case <-ticker.C:
		}

	drain:
		for {
			select {
			case cmd := <-hub.Commands():
				if err := Apply(sim, cmd); err != nil {
					log.Warn("command failed", zap.String("type", cmd.Type), zap.Error(err))
				}
			default:
				break drain
			}
		}

		sim.Update(dt)
		frame++
		if err := hub.Broadcast(Capture(sim, frame)); err != nil {
			return frame, fmt.Errorf("broadcast frame %d: %w", frame, err)
		}
	}
}
