// Package colortemp approximates the color of a black-body radiator at a
// given temperature, which is what a "warm" screen tint is modeled after.
package colortemp

import "math"

// Neutral is the color temperature at which the tint is a no-op white.
const Neutral = 6500

// RGB maps a color temperature in Kelvin to an 8-bit display color using
// Tanner Helland's curve-fitted approximation of the black-body locus. The
// fit is meant for inputs in [1000, 40000], but the curves are continuous,
// so out-of-range inputs still produce a clamped color rather than an
// error.
func RGB(kelvin int) (r, g, b int) {
	t := float64(kelvin) / 100.0

	var red, green, blue float64

	if t <= 66 {
		red = 255
	} else {
		red = 329.698727446 * math.Pow(t-60, -0.1332047592)
	}

	if t <= 66 {
		green = 99.4708025861*math.Log(t) - 161.1195681661
	} else {
		green = 288.1221695283 * math.Pow(t-60, -0.0755148492)
	}

	switch {
	case t >= 66:
		blue = 255
	case t <= 19:
		blue = 0
	default:
		blue = 138.5177312231*math.Log(t-10) - 305.0447927307
	}

	return channel(red), channel(green), channel(blue)
}

// channel clamps to [0, 255] and rounds to the nearest integer.
func channel(v float64) int {
	if v < 0 {
		return 0
	}

	if v > 255 {
		return 255
	}

	return int(math.Round(v))
}
