package colortemp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRGBKnownTemperatures(t *testing.T) {
	testCases := []struct {
		kelvin  int
		r, g, b int
	}{
		{1000, 255, 68, 0},
		{1900, 255, 132, 0},
		{2700, 255, 167, 87},
		{3400, 255, 190, 135},
		{4500, 255, 218, 187},
		{6500, 255, 254, 250},
		{6600, 255, 255, 255},
		{10000, 202, 218, 255},
		{40000, 152, 186, 255},
	}

	for _, tc := range testCases {
		r, g, b := RGB(tc.kelvin)

		assert.Equal(t, tc.r, r, "red at %dK", tc.kelvin)
		assert.Equal(t, tc.g, g, "green at %dK", tc.kelvin)
		assert.Equal(t, tc.b, b, "blue at %dK", tc.kelvin)
	}
}

func TestRGBRange(t *testing.T) {
	for kelvin := 1000; kelvin <= 40000; kelvin += 100 {
		r, g, b := RGB(kelvin)

		for _, c := range []int{r, g, b} {
			if c < 0 || c > 255 {
				t.Fatalf("channel out of range at %dK: (%d, %d, %d)", kelvin, r, g, b)
			}
		}
	}
}

func TestRGBDeterministic(t *testing.T) {
	for _, kelvin := range []int{1000, 1900, 3400, 6500, 40000} {
		r1, g1, b1 := RGB(kelvin)
		r2, g2, b2 := RGB(kelvin)

		assert.Equal(t, [3]int{r1, g1, b1}, [3]int{r2, g2, b2}, "at %dK", kelvin)
	}
}

func TestRGBWarmTint(t *testing.T) {
	// A warm temperature keeps full red and drops blue below green.
	r, g, b := RGB(3400)

	assert.Equal(t, 255, r)
	assert.Less(t, b, g)
	assert.Less(t, g, r)
}

func TestRGBBlueCutoff(t *testing.T) {
	// At and below 1900K the blue channel bottoms out entirely.
	_, _, b := RGB(1900)
	assert.Equal(t, 0, b)

	_, _, b = RGB(1000)
	assert.Equal(t, 0, b)

	r, _, _ := RGB(1900)
	assert.Equal(t, 255, r)
}

func TestRGBOutOfRangeStillComputes(t *testing.T) {
	// The fit is only trusted in [1000, 40000] but must not error or
	// produce out-of-range channels elsewhere.
	for _, kelvin := range []int{500, 900, 50000, 100000} {
		r, g, b := RGB(kelvin)

		for _, c := range []int{r, g, b} {
			assert.GreaterOrEqual(t, c, 0, "at %dK", kelvin)
			assert.LessOrEqual(t, c, 255, "at %dK", kelvin)
		}
	}
}
