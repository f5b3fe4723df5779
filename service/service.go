// Package service exposes the filter engine over a unix-domain socket. It
// is the control plane the tray, popup and overlay renderer processes talk
// to: every mutation is answered with the resulting state and directive,
// and subscribed connections additionally receive pushed updates for
// changes made by anyone else.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/peer-calls/log"

	"github.com/veild/veild/filter"
	"github.com/veild/veild/overlay"
	"github.com/veild/veild/types"
)

type Service struct {
	params Params
	log    log.Logger

	listener net.Listener

	mu    sync.Mutex
	conns map[string]*connection
}

type Params struct {
	SocketPath string
	Log        log.Logger
	Engine     *filter.Engine
	Displays   *overlay.Registry
}

func New(params Params) *Service {
	return &Service{
		params: params,
		log:    params.Log.WithNamespaceAppended("service"),

		conns: map[string]*connection{},
	}
}

// Listen binds the unix socket. It is separate from Serve so the caller
// can fail fast before forking off the serve goroutine.
func (s *Service) Listen() error {
	listener, err := net.Listen("unix", s.params.SocketPath)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener

	return nil
}

// Serve accepts connections until the context is canceled. It also fans
// engine updates out to subscribed connections, regardless of whether the
// mutation came over the socket or over D-Bus.
func (s *Service) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	updates, unsubscribe := s.params.Engine.Subscribe(16)
	defer unsubscribe()

	go func() {
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}

				s.Broadcast(update)
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			return fmt.Errorf("failed to accept conn: %w", err)
		}

		go s.handleConn(ctx, netConn)
	}
}

// Broadcast pushes an update to every connection subscribed to state
// changes.
func (s *Service) Broadcast(update filter.Update) {
	response := types.Response{
		State:     &update.State,
		Directive: &update.Directive,
	}

	s.mu.Lock()
	conns := make([]*connection, 0, len(s.conns))

	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		if conn.IsSubscribed(types.SubscriptionKeyState) {
			conn.WriteLogError(response)
		}
	}
}

func (s *Service) handleConn(ctx context.Context, netConn net.Conn) {
	conn := newConnection(netConn, s.log)

	s.mu.Lock()
	s.conns[conn.id] = conn
	s.mu.Unlock()

	conn.log.Debug("Client connected", nil)

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn.id)
		s.mu.Unlock()

		if err := conn.Close(); err != nil {
			conn.log.Debug("Close error", log.Ctx{"error": err})
		}

		conn.log.Debug("Client disconnected", nil)
	}()

	// Connections stay open so subscribers keep receiving pushed updates.
	// Reads only stop on client hangup or context cancelation.
	for {
		request, err := conn.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				conn.log.Error("Read error", err, nil)
			}

			return
		}

		conn.WriteLogError(s.handleRequest(ctx, conn, request))
	}
}
