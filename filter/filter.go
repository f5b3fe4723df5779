// Package filter holds the tint filter state for the whole session and
// derives the render directive handed to every overlay surface.
package filter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/peer-calls/log"

	"github.com/veild/veild/colortemp"
	"github.com/veild/veild/types"
)

// ErrInvalidMode is returned by ApplyMode for unknown preset names.
var ErrInvalidMode = errors.New("invalid mode")

// preset pairs the temperature and brightness a mode stands for.
type preset struct {
	temperature int
	brightness  int
}

var presets = map[types.Mode]preset{
	types.ModeDay:    {temperature: 6500, brightness: 100},
	types.ModeSunset: {temperature: 4500, brightness: 90},
	types.ModeNight:  {temperature: 3400, brightness: 80},
	types.ModeSleep:  {temperature: 1900, brightness: 60},
}

// Update is pushed to subscribers after every mutation.
type Update struct {
	State     types.FilterState
	Directive types.RenderDirective
}

// Engine owns the single FilterState instance. It is constructed once at
// startup and shared by the socket service and the D-Bus layer, so every
// mutation is serialized behind a mutex and readers always observe a
// settled tuple.
type Engine struct {
	log log.Logger

	mu          sync.Mutex
	state       types.FilterState
	subscribers map[int]chan Update
	nextSubID   int
}

// New creates an engine with the default settings: night preset numbers,
// overlay inactive.
func New(logger log.Logger) *Engine {
	return &Engine{
		log: logger.WithNamespaceAppended("filter"),

		state: types.FilterState{
			Temperature: 3400,
			Brightness:  80,
			Mode:        types.ModeNight,
			Active:      false,
		},

		subscribers: map[int]chan Update{},
	}
}

// ToggleActive flips the active flag.
func (e *Engine) ToggleActive() Update {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Active = !e.state.Active

	return e.changed()
}

// SetTemperature sets the color temperature. The mode label is left alone,
// and no range validation is applied.
func (e *Engine) SetTemperature(kelvin int) Update {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Temperature = kelvin

	return e.changed()
}

// SetBrightness sets the brightness percentage. The mode label is left
// alone, and no range validation is applied.
func (e *Engine) SetBrightness(percent int) Update {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Brightness = percent

	return e.changed()
}

// ApplyMode loads the preset's temperature and brightness and always
// activates the overlay. The state is untouched when the mode is unknown.
func (e *Engine) ApplyMode(mode types.Mode) (Update, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := presets[mode]
	if !ok {
		return Update{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	e.state.Mode = mode
	e.state.Temperature = p.temperature
	e.state.Brightness = p.brightness
	e.state.Active = true

	return e.changed(), nil
}

// State returns a snapshot of the current settings tuple.
func (e *Engine) State() types.FilterState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// Directive derives the overlay instruction from the current state.
func (e *Engine) Directive() types.RenderDirective {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Derive(e.state)
}

// Update returns the current state together with its directive.
func (e *Engine) Update() Update {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Update{State: e.state, Directive: Derive(e.state)}
}

// Subscribe registers a channel that receives an Update after every
// mutation. Updates to a full channel are dropped, so slow consumers only
// miss intermediate states, never block the engine. The returned function
// cancels the subscription.
func (e *Engine) Subscribe(buffer int) (<-chan Update, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextSubID
	e.nextSubID++

	ch := make(chan Update, buffer)
	e.subscribers[id] = ch

	unsubscribe := func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		if _, ok := e.subscribers[id]; ok {
			delete(e.subscribers, id)
			close(ch)
		}
	}

	return ch, unsubscribe
}

// changed recomputes the directive and notifies subscribers. Must be called
// with the mutex held.
func (e *Engine) changed() Update {
	update := Update{
		State:     e.state,
		Directive: Derive(e.state),
	}

	e.log.Debug("State changed", log.Ctx{
		"temperature": update.State.Temperature,
		"brightness":  update.State.Brightness,
		"mode":        update.State.Mode,
		"active":      update.State.Active,
		"directive":   update.Directive.String(),
	})

	for id, ch := range e.subscribers {
		select {
		case ch <- update:
		default:
			e.log.Warn("Dropping update for slow subscriber", log.Ctx{
				"subscriber_id": id,
			})
		}
	}

	return update
}

// Derive computes the render directive for a settings tuple. An inactive
// filter renders as a fully transparent white overlay. An active filter
// tints with the black-body color of the temperature, with an opacity that
// grows as brightness and temperature drop:
//
//	opacity = (100-brightness)/100 * 0.5 + (1-temperature/6500) * 0.3
//
// Only the upper bound is clamped (at 0.6). Brightness above 100 or
// temperature above 6500 can drive the opacity negative, which compositors
// treat as fully transparent.
func Derive(state types.FilterState) types.RenderDirective {
	if !state.Active {
		return types.RenderDirective{R: 255, G: 255, B: 255, Opacity: 0}
	}

	r, g, b := colortemp.RGB(state.Temperature)

	opacity := float64(100-state.Brightness)/100*0.5 +
		(1-float64(state.Temperature)/colortemp.Neutral)*0.3

	if opacity > 0.6 {
		opacity = 0.6
	}

	return types.RenderDirective{R: r, G: g, B: b, Opacity: opacity}
}
