package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/physbox/internal/physics"
	"github.com/Faultbox/physbox/pkg/math"
)

func TestRigidBodyFollowsEngine(t *testing.T) {
	eng := newEngine()
	rb, err := NewRigidBody(eng, Sphere, math.Translate(0, 5, 0), math.Vec3{X: 1, Y: 1, Z: 1}, 2)
	require.NoError(t, err)

	body := eng.Body(rb.Body())
	require.NotNil(t, body)
	assert.Equal(t, float32(2), body.Mass)
	// 2 * 0.4 * 0.5^2
	assert.InDelta(t, 0.2, body.Inertia.X, eps)

	eng.Step(0.5)

	// force -20, v = -20 * 0.5 / 2 = -5, y = 5 - 5 * 0.5
	assert.Equal(t, float32(2.5), rb.Matrix().Position().Y)
}

func TestStaticBodyHasNoMass(t *testing.T) {
	eng := newEngine()
	floor := newBody(t, eng, Floor, math.Vec3{Y: -0.25})

	assert.Zero(t, eng.Body(floor.Body()).Mass)
	assert.Equal(t, physics.Frozen, floor.FreezeState())

	eng.Step(1)
	assert.Equal(t, float32(-0.25), floor.Matrix().Position().Y)
}

func TestNewRigidBodyErrors(t *testing.T) {
	eng := newEngine()

	_, err := NewRigidBody(eng, CompoundType, math.Identity(), math.Vec3{X: 1, Y: 1, Z: 1}, 1)
	assert.ErrorIs(t, err, ErrNotPrimitive)

	_, err = NewRigidBody(eng, Box, math.Identity(), math.Vec3{X: 1, Y: -1, Z: 1}, 1)
	assert.ErrorIs(t, err, physics.ErrInvalidSize)
	assert.Zero(t, eng.BodyCount())

	obj, err := NewObject(eng, CompoundType, math.Translate(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, CompoundType, obj.Type())
	assert.Equal(t, -1, obj.ID())
}

func TestRigidBodyDestroy(t *testing.T) {
	eng := newEngine()
	rb := newBody(t, eng, Box, math.Vec3{})
	handle := rb.Body()
	collision := rb.collision

	rb.Destroy()
	rb.Destroy()

	assert.Len(t, eng.DestroyedBodies, 1)
	assert.True(t, eng.Collision(collision).Released)
	assert.Equal(t, physics.NoBody, rb.Body())
	assert.False(t, rb.ContainsBody(handle))
	assert.False(t, rb.Live())

	// Callbacks captured by an engine before destruction must stay harmless.
	rb.setTransform(handle, math.Translate(9, 9, 9))
	rb.applyForceAndTorque(handle, 1)
	assert.Equal(t, math.Vec3{}, rb.Matrix().Position())
}

func TestRigidBodyFreezeState(t *testing.T) {
	eng := newEngine()
	rb := newBody(t, eng, Sphere, math.Vec3{})

	rb.SetFreezeState(physics.Frozen)
	assert.Equal(t, physics.Frozen, rb.FreezeState())
	assert.Equal(t, physics.Frozen, eng.FreezeState(rb.Body()))

	rb.SetFreezeState(physics.FreezeMixed)
	assert.Equal(t, physics.Frozen, rb.FreezeState(), "mixed is never stored")
}

func TestRigidBodyPlacement(t *testing.T) {
	eng := newEngine()
	rb := newBody(t, eng, Box, math.Vec3{X: 2, Y: 5})

	y := rb.ConvexCastPlacement(false)
	assert.Equal(t, float32(0.5), y)
	assert.Equal(t, float32(5), rb.Matrix().Position().Y, "query must not move the body")

	rb.ConvexCastPlacement(true)
	assert.Equal(t, math.Vec3{X: 2, Y: 0.5}, rb.Matrix().Position())
	assert.Equal(t, math.Vec3{X: 2, Y: 0.5}, eng.BodyMatrix(rb.Body()).Position())
}

func TestRigidBodyBounds(t *testing.T) {
	eng := newEngine()
	rb, err := NewRigidBody(eng, Box, math.Translate(1, 0, 0), math.Vec3{X: 2, Y: 2, Z: 2}, 1)
	require.NoError(t, err)

	min, max := rb.Bounds()
	assert.True(t, min.ApproxEqual(math.Vec3{X: 0, Y: -1, Z: -1}, eps), "min %v", min)
	assert.True(t, max.ApproxEqual(math.Vec3{X: 2, Y: 1, Z: 1}, eps), "max %v", max)
}
