package types

import "fmt"

// Mode is a named preset bundling a color temperature and a brightness
// level for quick selection from the tray menu.
type Mode string

const (
	ModeDay    Mode = "day"
	ModeSunset Mode = "sunset"
	ModeNight  Mode = "night"
	ModeSleep  Mode = "sleep"
)

// Valid reports whether the mode is one of the four known presets.
func (m Mode) Valid() bool {
	switch m {
	case ModeDay, ModeSunset, ModeNight, ModeSleep:
		return true
	}

	return false
}

func (m Mode) String() string {
	return string(m)
}

// FilterState is the complete user-visible settings tuple. There is one
// instance per daemon, owned by the filter engine.
type FilterState struct {
	// Temperature is the color temperature in Kelvin. Neutral is 6500,
	// lower values are warmer.
	Temperature int `json:"temperature"`
	// Brightness is the intended display brightness in percent, 0-100. It
	// only feeds the overlay opacity, the hardware backlight is never
	// touched.
	Brightness int `json:"brightness"`
	// Mode is the preset last applied. Setting temperature or brightness
	// directly does not reset it.
	Mode Mode `json:"mode"`
	// Active reports whether the tint overlay is enabled.
	Active bool `json:"active"`
}

// RenderDirective is the instruction sent to every overlay surface: a tint
// color and an opacity. It is fully recomputed on every state change.
type RenderDirective struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
	// Opacity is in [0.0, 0.6] for any in-range state. The upper bound is
	// clamped, the lower bound deliberately is not.
	Opacity float64 `json:"opacity"`
}

func (d RenderDirective) String() string {
	return fmt.Sprintf("#%02x%02x%02x@%.3f", d.R, d.G, d.B, d.Opacity)
}

// SubscriptionKey identifies a category of pushed updates a client may
// subscribe to.
type SubscriptionKey string

// SubscriptionKeyState subscribes to filter state and directive changes.
const SubscriptionKeyState SubscriptionKey = "state"

// Request is a message sent from a client to the daemon. At most one action
// field should be set; Subscribe and Unsubscribe may accompany any request.
type Request struct {
	// Toggle flips the active flag.
	Toggle bool `json:"toggle,omitempty"`
	// Temperature sets the color temperature in Kelvin.
	Temperature *int `json:"temperature,omitempty"`
	// Brightness sets the brightness percentage.
	Brightness *int `json:"brightness,omitempty"`
	// Mode applies a preset by name.
	Mode *Mode `json:"mode,omitempty"`
	// State requests a snapshot without mutating anything.
	State bool `json:"state,omitempty"`

	// DisplayAttached and DisplayDetached report overlay surface topology
	// changes from the presentation layer.
	DisplayAttached string `json:"displayAttached,omitempty"`
	DisplayDetached string `json:"displayDetached,omitempty"`

	Subscribe   []SubscriptionKey `json:"subscribe,omitempty"`
	Unsubscribe []SubscriptionKey `json:"unsubscribe,omitempty"`
}

// Response is a message sent from the daemon to a client, either as a direct
// reply or as a pushed update for subscribed connections.
type Response struct {
	// Error is non-empty when the operation was unsuccessful.
	Error string `json:"error,omitempty"`
	// State is the settings tuple after the operation.
	State *FilterState `json:"state,omitempty"`
	// Directive is the overlay instruction derived from State.
	Directive *RenderDirective `json:"directive,omitempty"`
}
