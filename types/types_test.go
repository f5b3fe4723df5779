package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModeValid(t *testing.T) {
	for _, mode := range []Mode{ModeDay, ModeSunset, ModeNight, ModeSleep} {
		assert.True(t, mode.Valid(), "mode %q", mode)
	}

	for _, mode := range []Mode{"", "bogus", "Day", "NIGHT", "dusk"} {
		assert.False(t, mode.Valid(), "mode %q", mode)
	}
}

func TestRenderDirectiveString(t *testing.T) {
	d := RenderDirective{R: 255, G: 190, B: 135, Opacity: 0.2430769}

	assert.Equal(t, "#ffbe87@0.243", d.String())
}
