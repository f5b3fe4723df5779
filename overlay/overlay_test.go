package overlay

import (
	"context"
	"testing"
	"time"

	"github.com/peer-calls/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachDetach(t *testing.T) {
	ctx := context.Background()

	changes := make(chan []string, 16)

	r := New(log.New(), func(surfaces []string) {
		changes <- surfaces
	})
	defer r.Close()

	require.NoError(t, r.Attach(ctx, "HDMI-1"))
	assert.Equal(t, []string{"HDMI-1"}, <-changes)

	require.NoError(t, r.Attach(ctx, "DP-1"))
	assert.Equal(t, []string{"DP-1", "HDMI-1"}, <-changes)

	surfaces, err := r.Surfaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"DP-1", "HDMI-1"}, surfaces)

	require.NoError(t, r.Detach(ctx, "HDMI-1"))
	assert.Equal(t, []string{"DP-1"}, <-changes)
}

func TestDuplicateAttachIsNoop(t *testing.T) {
	ctx := context.Background()

	changes := make(chan []string, 16)

	r := New(log.New(), func(surfaces []string) {
		changes <- surfaces
	})
	defer r.Close()

	require.NoError(t, r.Attach(ctx, "HDMI-1"))
	<-changes

	require.NoError(t, r.Attach(ctx, "HDMI-1"))
	require.NoError(t, r.Detach(ctx, "eDP-1"))

	select {
	case surfaces := <-changes:
		t.Fatalf("unexpected topology change: %v", surfaces)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSurfacesEmpty(t *testing.T) {
	r := New(log.New(), nil)
	defer r.Close()

	surfaces, err := r.Surfaces(context.Background())
	require.NoError(t, err)
	assert.Empty(t, surfaces)
}

func TestCanceledContext(t *testing.T) {
	r := New(log.New(), nil)
	r.Close()

	// With the loop stopped, a canceled context must unblock the caller.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Attach(ctx, "HDMI-1")
	require.Error(t, err)
}

func TestCloseIdempotent(t *testing.T) {
	r := New(log.New(), nil)

	r.Close()
	r.Close()
}
