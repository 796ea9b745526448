// Package app runs the interactive viewer: window, input, camera, renderer
// and the simulation tick.
package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/chewxy/math32"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/physbox/internal/config"
	"github.com/Faultbox/physbox/internal/engine/camera"
	"github.com/Faultbox/physbox/internal/engine/debug"
	"github.com/Faultbox/physbox/internal/engine/input"
	"github.com/Faultbox/physbox/internal/engine/lighting"
	"github.com/Faultbox/physbox/internal/engine/renderer"
	"github.com/Faultbox/physbox/internal/engine/window"
	"github.com/Faultbox/physbox/internal/logger"
	"github.com/Faultbox/physbox/internal/physics/cpengine"
	"github.com/Faultbox/physbox/internal/scene"
	"github.com/Faultbox/physbox/internal/simulation"
	"github.com/Faultbox/physbox/internal/watch"
	"github.com/Faultbox/physbox/pkg/math"
)

// defaultScene is where Ctrl+S writes when no scene file is configured.
const defaultScene = "scene.xml"

// spawnHeight is how far above the camera target new objects appear before
// they are dropped.
const spawnHeight = 5

// saveQuiet keeps the watcher from reloading a file the viewer just wrote.
const saveQuiet = time.Second

// App is the viewer instance.
type App struct {
	cfg      *config.Config
	running  bool
	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	camera   *camera.OrbitCamera
	sim      *simulation.Simulation
	shots    *debug.Screenshots
	watcher  *watch.FileWatcher

	templates []scene.Template
	template  int
	dragging  bool
}

// New opens the window and builds the simulation described by cfg. A scene
// file that fails to load is logged and the viewer starts with an empty
// scene.
func New(cfg *config.Config) (*App, error) {
	logger.Info("initializing viewer",
		zap.String("title", cfg.Window.Title),
		zap.Int("width", cfg.Window.Width),
		zap.Int("height", cfg.Window.Height))

	a := &App{
		cfg:       cfg,
		input:     input.New(),
		camera:    camera.NewOrbitCamera(),
		templates: scene.Templates(),
		shots:     &debug.Screenshots{Dir: "screenshots", Prefix: "physbox"},
	}

	var err error
	a.window, err = window.New(cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// The renderer needs the GL context the window just created.
	w, h := a.window.Size()
	a.renderer, err = renderer.New(w, h)
	if err != nil {
		a.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	a.renderer.SetSun(lighting.Sun{
		Azimuth:   cfg.Lighting.SunAzimuth,
		Elevation: cfg.Lighting.SunElevation,
		Ambient:   cfg.Lighting.Ambient,
	})

	eng := cpengine.New(cpengine.Options{
		Gravity:            cfg.Simulation.Gravity,
		Iterations:         cfg.Simulation.Iterations,
		SleepTimeThreshold: cfg.Simulation.SleepTimeThreshold,
	})
	a.sim, err = simulation.New(eng, simulation.Options{
		TimeStep: cfg.Simulation.TimeStep,
		Floor:    cfg.Scene.Floor,
		Paused:   cfg.Simulation.Paused,
	})
	if err != nil {
		eng.Close()
		a.renderer.Close()
		a.window.Close()
		return nil, fmt.Errorf("failed to create simulation: %w", err)
	}

	if cfg.Scene.File != "" {
		if _, err := a.sim.Load(cfg.Scene.File); err != nil {
			logger.Warn("scene not loaded, starting empty", zap.String("file", cfg.Scene.File), zap.Error(err))
		}
	}
	a.camera.FitToBounds(a.sim.Root().Bounds())

	if cfg.Scene.Watch && cfg.Scene.File != "" {
		if a.watcher, err = watch.File(cfg.Scene.File); err != nil {
			logger.Warn("scene file not watched", zap.Error(err))
		}
	}

	logger.Info("viewer initialized")
	return a, nil
}

// Run drives the frame loop until the window closes or Escape is pressed.
func (a *App) Run() error {
	a.running = true
	lastTime := time.Now()
	titleTimer := time.Now()

	logger.Info("starting frame loop")
	for a.running {
		now := time.Now()
		dt := float32(now.Sub(lastTime).Seconds())
		lastTime = now

		if a.input.Update() {
			a.running = false
			break
		}
		for _, e := range a.input.Events() {
			a.handleEvent(e)
		}
		a.pan()
		a.reload()

		a.sim.Update(dt)
		a.render()
		a.window.SwapBuffers()

		if time.Since(titleTimer) >= time.Second {
			a.updateTitle()
			titleTimer = time.Now()
		}
	}
	return nil
}

// reload replaces the scene when the watched file was edited elsewhere.
func (a *App) reload() {
	if a.watcher == nil || !a.watcher.Changed() {
		return
	}
	if _, err := a.sim.Load(a.watcher.Path()); err != nil {
		logger.Warn("reload failed, keeping current scene", zap.Error(err))
		return
	}
	logger.Info("scene reloaded", zap.String("file", a.watcher.Path()))
}

func (a *App) render() {
	if vb, dirty := a.sim.Buffers(); dirty {
		a.renderer.Upload(vb)
	}
	a.renderer.Begin(a.camera.ViewProjection(a.renderer.Aspect()))
	a.sim.Render(a.renderer)
	a.renderer.End()
}

func (a *App) updateTitle() {
	state := ""
	if a.sim.Paused() {
		state = " [paused]"
	}
	a.window.SetTitle(fmt.Sprintf("%s - %d fps - %d objects - %s%s",
		a.cfg.Window.Title, a.sim.FPS(), a.sim.ObjectCount(), a.templates[a.template].Name, state))
}

func (a *App) handleEvent(e input.Event) {
	switch e.Type {
	case input.EventWindowResize:
		a.renderer.Resize(a.window.Size())
	case input.EventKeyDown:
		a.handleKey(e)
	case input.EventMouseDown:
		if e.Button == sdl.BUTTON_RIGHT {
			a.dragging = true
		}
		if e.Button == sdl.BUTTON_LEFT && e.Clicks >= 2 {
			a.selectAt(e.MouseX, e.MouseY)
		}
	case input.EventMouseUp:
		if e.Button == sdl.BUTTON_RIGHT {
			a.dragging = false
		}
	case input.EventMouseMove:
		if a.dragging {
			a.camera.HandleDrag(float32(e.DeltaX), float32(e.DeltaY))
		}
	case input.EventMouseWheel:
		a.camera.HandleZoom(float32(e.DeltaY))
	}
}

func (a *App) selectAt(x, y int) {
	w, h := a.window.Size()
	if w == 0 || h == 0 {
		return
	}
	a.sim.SelectRay(a.camera.Ray(float32(x), float32(y), w, h))
}

func (a *App) handleKey(e input.Event) {
	switch e.Key {
	case sdl.SCANCODE_ESCAPE:
		a.running = false
	case sdl.SCANCODE_SPACE:
		a.sim.TogglePause()
	case sdl.SCANCODE_1, sdl.SCANCODE_2, sdl.SCANCODE_3, sdl.SCANCODE_4:
		a.template = int(e.Key - sdl.SCANCODE_1)
		a.updateTitle()
	case sdl.SCANCODE_N, sdl.SCANCODE_INSERT:
		pos := a.camera.Center.Add(math.Vec3{Y: spawnHeight})
		if obj, err := a.sim.Spawn(a.templates[a.template], pos); err == nil {
			a.sim.Select(obj)
		}
	case sdl.SCANCODE_F:
		a.report(a.sim.ToggleFreezeSelected())
	case sdl.SCANCODE_DELETE, sdl.SCANCODE_BACKSPACE:
		a.reportErr(a.sim.DeleteSelected())
	case sdl.SCANCODE_S:
		if e.Ctrl {
			a.reportErr(a.save())
		}
	case sdl.SCANCODE_O:
		if e.Ctrl {
			if _, err := a.sim.Load(a.scenePath()); err != nil {
				logger.Warn("load failed", zap.Error(err))
			}
		}
	case sdl.SCANCODE_R:
		if e.Ctrl {
			a.reportErr(a.sim.Reset())
		}
	case sdl.SCANCODE_C:
		a.camera.FitToBounds(a.sim.Root().Bounds())
	case sdl.SCANCODE_F12:
		a.screenshot()
	case sdl.SCANCODE_UP, sdl.SCANCODE_DOWN, sdl.SCANCODE_LEFT, sdl.SCANCODE_RIGHT:
		a.nudge(e)
	case sdl.SCANCODE_Q:
		a.reportErr(a.sim.SetRotation('y', 15))
	case sdl.SCANCODE_E:
		a.reportErr(a.sim.SetRotation('y', -15))
	case sdl.SCANCODE_LEFTBRACKET, sdl.SCANCODE_RIGHTBRACKET:
		a.scale(e.Key == sdl.SCANCODE_RIGHTBRACKET)
	}
}

// nudge moves the selection half a unit in X or Z, or in Y with Shift held.
func (a *App) nudge(e input.Event) {
	m, ok := a.sim.SelectedMatrix()
	if !ok {
		return
	}
	pos := m.Position()
	axis, value := byte('x'), pos.X
	step := float32(0.5)
	switch e.Key {
	case sdl.SCANCODE_UP, sdl.SCANCODE_DOWN:
		axis, value = 'z', pos.Z
		if e.Shift {
			axis, value = 'y', pos.Y
		}
		if (e.Key == sdl.SCANCODE_UP) != (axis == 'y') {
			step = -step
		}
	case sdl.SCANCODE_LEFT:
		step = -step
	}
	a.reportErr(a.sim.SetPosition(axis, int(math32.Floor((value+step)*10+0.5))))
}

// scale grows or shrinks the render scale on every axis by a tenth.
func (a *App) scale(grow bool) {
	s := a.sim.RenderScale()
	delta := -1
	if grow {
		delta = 1
	}
	for _, axis := range []byte("xyz") {
		v, _ := s.Axis(axis)
		a.reportErr(a.sim.SetSize(axis, int(math32.Floor(v*10+0.5))+delta))
	}
}

func (a *App) pan() {
	var forward, right, up float32
	keys := sdl.GetKeyboardState()
	if keys[sdl.SCANCODE_W] != 0 {
		forward++
	}
	if keys[sdl.SCANCODE_S] != 0 && keys[sdl.SCANCODE_LCTRL] == 0 && keys[sdl.SCANCODE_RCTRL] == 0 {
		forward--
	}
	if keys[sdl.SCANCODE_D] != 0 {
		right++
	}
	if keys[sdl.SCANCODE_A] != 0 {
		right--
	}
	if keys[sdl.SCANCODE_PAGEUP] != 0 {
		up++
	}
	if keys[sdl.SCANCODE_PAGEDOWN] != 0 {
		up--
	}
	if forward != 0 || right != 0 || up != 0 {
		a.camera.HandleMovement(forward, right, up)
	}
}

func (a *App) screenshot() {
	pixels, w, h := a.renderer.ReadPixels()
	path, err := a.shots.Save(pixels, w, h)
	if err != nil {
		logger.Warn("screenshot failed", zap.Error(err))
		return
	}
	logger.Info("screenshot saved", zap.String("file", path))
}

func (a *App) save() error {
	if a.watcher != nil {
		a.watcher.Ignore(saveQuiet)
	}
	return a.sim.Save(a.scenePath())
}

func (a *App) scenePath() string {
	if f := a.sim.File(); f != "" {
		return f
	}
	if a.cfg.Scene.File != "" {
		return a.cfg.Scene.File
	}
	return defaultScene
}

func (a *App) report(_ any, err error) {
	a.reportErr(err)
}

func (a *App) reportErr(err error) {
	switch {
	case err == nil:
	case errors.Is(err, simulation.ErrNoSelection):
		logger.Debug("nothing selected")
	default:
		logger.Warn("action failed", zap.Error(err))
	}
}

// Close saves the scene when autosave is on and releases everything.
func (a *App) Close() {
	logger.Info("closing viewer")
	if a.sim != nil {
		if a.cfg.Scene.AutoSave {
			a.reportErr(a.save())
		}
		a.sim.Close()
	}
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.window != nil {
		a.window.Close()
	}
}
