package service

import (
	"context"

	"github.com/peer-calls/log"

	"github.com/veild/veild/filter"
	"github.com/veild/veild/types"
)

// handleRequest applies a single client request. Subscription and display
// topology fields are processed first and may accompany any action; the
// action fields are mutually exclusive, with a plain state snapshot as the
// fallback.
func (s *Service) handleRequest(ctx context.Context, conn *connection, request types.Request) types.Response {
	if len(request.Subscribe) > 0 {
		conn.Subscribe(request.Subscribe)

		conn.log.Debug("Subscribed", log.Ctx{"keys": request.Subscribe})
	}

	if len(request.Unsubscribe) > 0 {
		conn.Unsubscribe(request.Unsubscribe)
	}

	if request.DisplayAttached != "" {
		if err := s.params.Displays.Attach(ctx, request.DisplayAttached); err != nil {
			conn.log.Error("Failed to attach display", err, nil)

			return types.Response{Error: "failed to attach display"}
		}
	}

	if request.DisplayDetached != "" {
		if err := s.params.Displays.Detach(ctx, request.DisplayDetached); err != nil {
			conn.log.Error("Failed to detach display", err, nil)

			return types.Response{Error: "failed to detach display"}
		}
	}

	engine := s.params.Engine

	var update filter.Update

	switch {
	case request.Toggle:
		update = engine.ToggleActive()
	case request.Temperature != nil:
		update = engine.SetTemperature(*request.Temperature)
	case request.Brightness != nil:
		update = engine.SetBrightness(*request.Brightness)
	case request.Mode != nil:
		var err error

		update, err = engine.ApplyMode(*request.Mode)
		if err != nil {
			conn.log.Debug("Rejected mode", log.Ctx{"mode": *request.Mode})

			return types.Response{Error: err.Error()}
		}
	default:
		update = engine.Update()
	}

	return types.Response{
		State:     &update.State,
		Directive: &update.Directive,
	}
}
