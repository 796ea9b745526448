// Package input translates SDL2 events into viewer events.
package input

import (
	"github.com/veandco/go-sdl2/sdl"
)

// EventType classifies an Event.
type EventType int

const (
	EventNone EventType = iota
	EventQuit
	EventWindowResize
	EventKeyDown
	EventKeyUp
	EventMouseMove
	EventMouseDown
	EventMouseUp
	EventMouseWheel
)

// Event is a processed input event.
type Event struct {
	Type EventType
	Key  sdl.Scancode
	// Ctrl and Shift report the modifier state of key events.
	Ctrl  bool
	Shift bool

	Width, Height int

	MouseX, MouseY int
	// DeltaX and DeltaY hold relative motion, or the scroll amount for
	// EventMouseWheel.
	DeltaX, DeltaY int
	Button         uint8
	// Buttons is the held-button mask during motion.
	Buttons uint32
	Clicks  uint8
}

// Input collects the events of one frame.
type Input struct {
	events []Event
}

// New creates an input handler.
func New() *Input {
	return &Input{
		events: make([]Event, 0, 16),
	}
}

// Update polls SDL events. It returns true when the window was asked to close.
func (i *Input) Update() bool {
	i.events = i.events[:0]

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		e, ok := translate(event)
		if !ok {
			continue
		}
		i.events = append(i.events, e)
		if e.Type == EventQuit {
			return true
		}
	}
	return false
}

func translate(event sdl.Event) (Event, bool) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		return Event{Type: EventQuit}, true

	case *sdl.WindowEvent:
		if e.Event == sdl.WINDOWEVENT_RESIZED || e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
			return Event{Type: EventWindowResize, Width: int(e.Data1), Height: int(e.Data2)}, true
		}

	case *sdl.KeyboardEvent:
		ev := Event{
			Type:  EventKeyDown,
			Key:   e.Keysym.Scancode,
			Ctrl:  e.Keysym.Mod&sdl.KMOD_CTRL != 0,
			Shift: e.Keysym.Mod&sdl.KMOD_SHIFT != 0,
		}
		if e.Type == sdl.KEYUP {
			ev.Type = EventKeyUp
		}
		return ev, true

	case *sdl.MouseMotionEvent:
		return Event{
			Type:    EventMouseMove,
			MouseX:  int(e.X),
			MouseY:  int(e.Y),
			DeltaX:  int(e.XRel),
			DeltaY:  int(e.YRel),
			Buttons: e.State,
		}, true

	case *sdl.MouseButtonEvent:
		ev := Event{
			Type:   EventMouseDown,
			MouseX: int(e.X),
			MouseY: int(e.Y),
			Button: e.Button,
			Clicks: e.Clicks,
		}
		if e.Type == sdl.MOUSEBUTTONUP {
			ev.Type = EventMouseUp
		}
		return ev, true

	case *sdl.MouseWheelEvent:
		return Event{Type: EventMouseWheel, DeltaX: int(e.X), DeltaY: int(e.Y)}, true
	}
	return Event{}, false
}

// Events returns the events from the last Update.
func (i *Input) Events() []Event {
	return i.events
}

// IsKeyPressed reports whether scancode went down this frame.
func (i *Input) IsKeyPressed(scancode sdl.Scancode) bool {
	for _, e := range i.events {
		if e.Type == EventKeyDown && e.Key == scancode {
			return true
		}
	}
	return false
}
