package service_test

import (
	"context"
	"encoding/json"
	"net"
	"path"
	"testing"
	"time"

	"github.com/peer-calls/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veild/veild/filter"
	"github.com/veild/veild/overlay"
	"github.com/veild/veild/service"
	"github.com/veild/veild/types"
)

func startTestService(t *testing.T) string {
	t.Helper()

	socketPath := path.Join(t.TempDir(), "veild.sock")

	logger := log.New()
	engine := filter.New(logger)

	var svc *service.Service

	displays := overlay.New(logger, func(surfaces []string) {
		svc.Broadcast(engine.Update())
	})
	t.Cleanup(displays.Close)

	svc = service.New(service.Params{
		SocketPath: socketPath,
		Log:        logger,
		Engine:     engine,
		Displays:   displays,
	})

	require.NoError(t, svc.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		_ = svc.Serve(ctx)
	}()

	return socketPath
}

type testClient struct {
	conn    net.Conn
	encoder *json.Encoder
	decoder *json.Decoder
}

func dial(t *testing.T, socketPath string) *testClient {
	t.Helper()

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
	})

	return &testClient{
		conn:    conn,
		encoder: json.NewEncoder(conn),
		decoder: json.NewDecoder(conn),
	}
}

func (c *testClient) roundTrip(t *testing.T, request types.Request) types.Response {
	t.Helper()

	require.NoError(t, c.encoder.Encode(request))

	return c.read(t)
}

func (c *testClient) read(t *testing.T) types.Response {
	t.Helper()

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var response types.Response
	require.NoError(t, c.decoder.Decode(&response))

	return response
}

func TestStateSnapshot(t *testing.T) {
	socketPath := startTestService(t)
	client := dial(t, socketPath)

	response := client.roundTrip(t, types.Request{State: true})

	require.Empty(t, response.Error)
	require.NotNil(t, response.State)
	require.NotNil(t, response.Directive)

	assert.Equal(t, types.FilterState{
		Temperature: 3400,
		Brightness:  80,
		Mode:        types.ModeNight,
		Active:      false,
	}, *response.State)

	assert.Equal(t, types.RenderDirective{R: 255, G: 255, B: 255, Opacity: 0}, *response.Directive)
}

func TestMutations(t *testing.T) {
	socketPath := startTestService(t)
	client := dial(t, socketPath)

	response := client.roundTrip(t, types.Request{Toggle: true})
	require.Empty(t, response.Error)
	assert.True(t, response.State.Active)

	kelvin := 6500
	response = client.roundTrip(t, types.Request{Temperature: &kelvin})
	require.Empty(t, response.Error)
	assert.Equal(t, 6500, response.State.Temperature)
	assert.Equal(t, types.ModeNight, response.State.Mode, "mode label survives direct changes")
	assert.InDelta(t, 0.1, response.Directive.Opacity, 1e-6)

	mode := types.ModeSleep
	response = client.roundTrip(t, types.Request{Mode: &mode})
	require.Empty(t, response.Error)
	assert.Equal(t, types.ModeSleep, response.State.Mode)
	assert.Equal(t, 1900, response.State.Temperature)
	assert.Equal(t, 60, response.State.Brightness)
	assert.True(t, response.State.Active)
	assert.Equal(t, 0, response.Directive.B, "1900K has no blue at all")
	assert.InDelta(t, 0.4123077, response.Directive.Opacity, 1e-6)
}

func TestInvalidMode(t *testing.T) {
	socketPath := startTestService(t)
	client := dial(t, socketPath)

	mode := types.Mode("bogus")
	response := client.roundTrip(t, types.Request{Mode: &mode})

	assert.Contains(t, response.Error, "invalid mode")
	assert.Nil(t, response.State)

	// The failed request must not have touched anything.
	response = client.roundTrip(t, types.Request{State: true})
	require.Empty(t, response.Error)
	assert.Equal(t, types.ModeNight, response.State.Mode)
	assert.False(t, response.State.Active)
}

func TestSubscriberReceivesPushes(t *testing.T) {
	socketPath := startTestService(t)

	subscriber := dial(t, socketPath)
	mutator := dial(t, socketPath)

	response := subscriber.roundTrip(t, types.Request{
		Subscribe: []types.SubscriptionKey{types.SubscriptionKeyState},
	})
	require.Empty(t, response.Error)

	response = mutator.roundTrip(t, types.Request{Toggle: true})
	require.Empty(t, response.Error)

	push := subscriber.read(t)
	require.NotNil(t, push.State)
	require.NotNil(t, push.Directive)
	assert.True(t, push.State.Active)
	assert.Equal(t, 255, push.Directive.R)
	assert.Equal(t, 190, push.Directive.G)
	assert.Equal(t, 135, push.Directive.B)
}

func TestDisplayAttachTriggersRepaint(t *testing.T) {
	socketPath := startTestService(t)

	subscriber := dial(t, socketPath)
	reporter := dial(t, socketPath)

	response := subscriber.roundTrip(t, types.Request{
		Subscribe: []types.SubscriptionKey{types.SubscriptionKeyState},
	})
	require.Empty(t, response.Error)

	// A newly attached display needs the current directive re-emitted.
	response = reporter.roundTrip(t, types.Request{DisplayAttached: "HDMI-1"})
	require.Empty(t, response.Error)

	push := subscriber.read(t)
	require.NotNil(t, push.Directive)
	assert.Equal(t, types.RenderDirective{R: 255, G: 255, B: 255, Opacity: 0}, *push.Directive)

	// Attaching the same display twice does not change the topology, so no
	// extra push arrives; the next message the subscriber sees is the push
	// for the toggle below.
	response = reporter.roundTrip(t, types.Request{DisplayAttached: "HDMI-1"})
	require.Empty(t, response.Error)

	response = reporter.roundTrip(t, types.Request{Toggle: true})
	require.Empty(t, response.Error)

	push = subscriber.read(t)
	require.NotNil(t, push.State)
	assert.True(t, push.State.Active)
}
