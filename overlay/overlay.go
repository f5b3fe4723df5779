// Package overlay tracks the overlay surfaces the presentation layer has
// attached to physical displays. The daemon never paints anything itself,
// but it needs to know when the surface set changes so the current render
// directive can be re-emitted for newly attached displays.
package overlay

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/peer-calls/log"
)

// Registry owns the surface set. All access goes through a single goroutine
// so the set is never observed mid-update.
type Registry struct {
	log log.Logger
	wg  sync.WaitGroup

	reqCh      chan request
	teardownCh chan struct{}
}

type request struct {
	attach string
	detach string
	errCh  chan<- error

	listCh chan<- []string
}

// New creates a registry and starts its loop. The onChange callback is
// invoked from the loop goroutine whenever the surface set changes, with
// the sorted surface identities.
func New(logger log.Logger, onChange func(surfaces []string)) *Registry {
	r := &Registry{
		log: logger.WithNamespaceAppended("overlay"),

		reqCh:      make(chan request),
		teardownCh: make(chan struct{}, 1),
	}

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		surfaces := map[string]struct{}{}

		for {
			select {
			case req := <-r.reqCh:
				before := len(surfaces)

				if req.attach != "" {
					surfaces[req.attach] = struct{}{}
				}

				if req.detach != "" {
					delete(surfaces, req.detach)
				}

				if req.listCh != nil {
					req.listCh <- names(surfaces)
				}

				if req.errCh != nil {
					close(req.errCh)
				}

				if len(surfaces) != before {
					r.log.Debug("Surface set changed", log.Ctx{
						"num_surfaces": len(surfaces),
					})

					if onChange != nil {
						onChange(names(surfaces))
					}
				}
			case <-r.teardownCh:
				return
			}
		}
	}()

	return r
}

func names(surfaces map[string]struct{}) []string {
	out := make([]string, 0, len(surfaces))

	for name := range surfaces {
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}

// Attach registers an overlay surface by identity. Attaching an already
// known surface is a no-op.
func (r *Registry) Attach(ctx context.Context, id string) error {
	return r.send(ctx, request{attach: id})
}

// Detach removes an overlay surface. Detaching an unknown surface is a
// no-op.
func (r *Registry) Detach(ctx context.Context, id string) error {
	return r.send(ctx, request{detach: id})
}

// Surfaces returns the sorted identities of all attached surfaces.
func (r *Registry) Surfaces(ctx context.Context) ([]string, error) {
	listCh := make(chan []string, 1)

	if err := r.send(ctx, request{listCh: listCh}); err != nil {
		return nil, err
	}

	return <-listCh, nil
}

func (r *Registry) send(ctx context.Context, req request) error {
	errCh := make(chan error, 1)
	req.errCh = errCh

	select {
	case r.reqCh <- req:
	case <-ctx.Done():
		return fmt.Errorf("context done sending registry request: %w", ctx.Err())
	}

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("registry request failed: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("context done awaiting registry response: %w", ctx.Err())
	}

	return nil
}

// Close stops the loop. Safe to call more than once.
func (r *Registry) Close() {
	select {
	case r.teardownCh <- struct{}{}:
		r.wg.Wait()
	default:
	}
}
