// Package stream serves a running simulation to websocket clients. Every
// tick the state of the scene is broadcast as a JSON snapshot, and clients
// can send commands back to pause, reset or spawn into the scene.
package stream

import (
	"github.com/Faultbox/physbox/internal/scene"
	"github.com/Faultbox/physbox/internal/simulation"
)

// ObjectState is the broadcast form of one scene object.
type ObjectState struct {
	ID       int        `json:"id"`
	Type     string     `json:"type"`
	Depth    int        `json:"depth"`
	Freeze   int        `json:"freeze"`
	Position [3]float32 `json:"position"`
	Matrix   string     `json:"matrix"`
}

// Snapshot is the scene state after a tick.
type Snapshot struct {
	Frame   uint64        `json:"frame"`
	Paused  bool          `json:"paused"`
	Objects []ObjectState `json:"objects"`
}

// Capture records every object under the simulation root in walk order.
// Matrices use the lossless scene document encoding.
func Capture(sim *simulation.Simulation, frame uint64) Snapshot {
	snap := Snapshot{
		Frame:   frame,
		Paused:  sim.Paused(),
		Objects: make([]ObjectState, 0, sim.ObjectCount()),
	}
	sim.Root().Walk(func(o scene.Object, depth int) {
		m := o.Matrix()
		p := m.Position()
		snap.Objects = append(snap.Objects, ObjectState{
			ID:       o.ID(),
			Type:     o.Type().String(),
			Depth:    depth,
			Freeze:   int(o.FreezeState()),
			Position: [3]float32{p.X, p.Y, p.Z},
			Matrix:   m.String(),
		})
	})
	return snap
}
