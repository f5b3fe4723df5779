package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	"github.com/peer-calls/log"

	"github.com/veild/veild/filter"
	"github.com/veild/veild/types"
)

const (
	dbusServiceName   = "io.veild.Veild"
	dbusObjectPath    = "/"
	dbusInterfaceName = "io.veild.Filter"

	temperatureProp = "Temperature"
	brightnessProp  = "Brightness"
	activeProp      = "Active"
	modeProp        = "Mode"
)

// Filter is the part of the engine the D-Bus layer needs.
type Filter interface {
	ToggleActive() filter.Update
	SetTemperature(kelvin int) filter.Update
	SetBrightness(percent int) filter.Update
	ApplyMode(mode types.Mode) (filter.Update, error)
	State() types.FilterState
	Subscribe(buffer int) (<-chan filter.Update, func())
}

type srv struct {
	mu     sync.Mutex
	filter Filter
}

func (s *srv) ToggleActive() (err *dbus.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filter.ToggleActive()

	return nil
}

func (s *srv) ApplyMode(mode string) (err *dbus.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, applyErr := s.filter.ApplyMode(types.Mode(mode)); applyErr != nil {
		return dbus.MakeFailedError(applyErr)
	}

	return nil
}

// NewDBus exports the filter on the session bus: writable Temperature,
// Brightness, Active and Mode properties plus ToggleActive and ApplyMode
// methods. Property values follow engine changes made over the socket too,
// so D-Bus clients can watch PropertiesChanged instead of polling.
func NewDBus(ctx context.Context, logger log.Logger, fltr Filter) (*dbus.Conn, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to dbus: %w", err)
	}

	init := func() error {
		reply, err := conn.RequestName(dbusServiceName, dbus.NameFlagDoNotQueue)
		if err != nil {
			return fmt.Errorf("failed to request name: %w", err)
		}

		if reply != dbus.RequestNameReplyPrimaryOwner {
			return fmt.Errorf("name already taken")
		}

		state := fltr.State()

		propsSpec := map[string]map[string]*prop.Prop{
			dbusInterfaceName: {
				temperatureProp: {
					Value:    int32(state.Temperature),
					Writable: true,
					Emit:     prop.EmitTrue,
					Callback: func(c *prop.Change) *dbus.Error {
						kelvin, ok := c.Value.(int32)
						if !ok {
							return dbus.MakeFailedError(fmt.Errorf("value is not int32: %T", c.Value))
						}

						fltr.SetTemperature(int(kelvin))

						return nil
					},
				},
				brightnessProp: {
					Value:    int32(state.Brightness),
					Writable: true,
					Emit:     prop.EmitTrue,
					Callback: func(c *prop.Change) *dbus.Error {
						percent, ok := c.Value.(int32)
						if !ok {
							return dbus.MakeFailedError(fmt.Errorf("value is not int32: %T", c.Value))
						}

						fltr.SetBrightness(int(percent))

						return nil
					},
				},
				activeProp: {
					Value:    state.Active,
					Writable: true,
					Emit:     prop.EmitTrue,
					Callback: func(c *prop.Change) *dbus.Error {
						active, ok := c.Value.(bool)
						if !ok {
							return dbus.MakeFailedError(fmt.Errorf("value is not bool: %T", c.Value))
						}

						if fltr.State().Active != active {
							fltr.ToggleActive()
						}

						return nil
					},
				},
				modeProp: {
					Value:    string(state.Mode),
					Writable: true,
					Emit:     prop.EmitTrue,
					Callback: func(c *prop.Change) *dbus.Error {
						mode, ok := c.Value.(string)
						if !ok {
							return dbus.MakeFailedError(fmt.Errorf("value is not string: %T", c.Value))
						}

						if _, err := fltr.ApplyMode(types.Mode(mode)); err != nil {
							logger.Error("Failed to apply mode", err, nil)
							return dbus.MakeFailedError(err)
						}

						return nil
					},
				},
			},
		}

		props, err := prop.Export(conn, dbusObjectPath, propsSpec)
		if err != nil {
			return fmt.Errorf("export propsSpec failed: %w", err)
		}

		service := &srv{
			filter: fltr,
		}

		if err := conn.Export(service, dbusObjectPath, dbusInterfaceName); err != nil {
			return fmt.Errorf("failed to register interface: %w", err)
		}

		n := &introspect.Node{
			Name: dbusObjectPath,
			Interfaces: []introspect.Interface{
				introspect.IntrospectData,
				prop.IntrospectData,
				{
					Name:       dbusInterfaceName,
					Methods:    introspect.Methods(service),
					Properties: props.Introspection(dbusInterfaceName),
				},
			},
		}

		if err = conn.Export(
			introspect.NewIntrospectable(n),
			dbusObjectPath,
			"org.freedesktop.DBus.Introspectable",
		); err != nil {
			return fmt.Errorf("export introspectable failed: %w", err)
		}

		updates, unsubscribe := fltr.Subscribe(16)

		go func() {
			defer unsubscribe()

			for {
				select {
				case update, ok := <-updates:
					if !ok {
						return
					}

					syncProps(props, update.State)
				case <-ctx.Done():
					return
				}
			}
		}()

		return nil
	}

	if err := init(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to register dbus: %w", err)
	}

	return conn, nil
}

// syncProps mirrors the engine state into the exported properties.
// Unchanged values are skipped so engine updates triggered by property
// writes do not echo forever.
func syncProps(props *prop.Properties, state types.FilterState) {
	set := func(name string, value interface{}) {
		if current, err := props.Get(dbusInterfaceName, name); err == nil && current.Value() == value {
			return
		}

		props.SetMust(dbusInterfaceName, name, value)
	}

	set(temperatureProp, int32(state.Temperature))
	set(brightnessProp, int32(state.Brightness))
	set(activeProp, state.Active)
	set(modeProp, string(state.Mode))
}
