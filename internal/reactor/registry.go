package reactor

import (
	"errors"
	"fmt"
)

var (
	ErrHandlerRegistered = errors.New("handler already registered")
	ErrRegistryFrozen    = errors.New("handler registry is frozen")
	ErrMissingHandler    = errors.New("handler not registered")

	errNilRegistry = errors.New("handler registry is nil")
)

// AcceptHandler runs after a client connection has been accepted.
type AcceptHandler func() (Event, bool)

// ReadHandler receives the text produced by a successful read.
type ReadHandler func(text string) (Event, bool)

// WriteHandler receives the buffer that was written and how many bytes of it
// reached the stream.
type WriteHandler func(buffer string, written int) (Event, bool)

// DirmonHandler receives a formatted filesystem notification.
type DirmonHandler func(message string) (Event, bool)

// Handlers bundles one handler per category.
type Handlers interface {
	OnAccept() (Event, bool)
	OnRead(text string) (Event, bool)
	OnWrite(buffer string, written int) (Event, bool)
	OnDirmon(message string) (Event, bool)
}

// Registry holds at most one handler per category. Registering a category
// twice fails with ErrHandlerRegistered; any registration after the reactor
// has started fails with ErrRegistryFrozen.
type Registry struct {
	accept AcceptHandler
	read   ReadHandler
	write  WriteHandler
	dirmon DirmonHandler
	frozen bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (registry *Registry) OnAccept(handler AcceptHandler) error {
	if registry == nil {
		return errNilRegistry
	}
	if err := registry.check(KindAccept, handler == nil, registry.accept != nil); err != nil {
		return err
	}
	registry.accept = handler
	return nil
}

func (registry *Registry) OnRead(handler ReadHandler) error {
	if registry == nil {
		return errNilRegistry
	}
	if err := registry.check(KindRead, handler == nil, registry.read != nil); err != nil {
		return err
	}
	registry.read = handler
	return nil
}

func (registry *Registry) OnWrite(handler WriteHandler) error {
	if registry == nil {
		return errNilRegistry
	}
	if err := registry.check(KindWrite, handler == nil, registry.write != nil); err != nil {
		return err
	}
	registry.write = handler
	return nil
}

func (registry *Registry) OnDirmon(handler DirmonHandler) error {
	if registry == nil {
		return errNilRegistry
	}
	if err := registry.check(KindDirmon, handler == nil, registry.dirmon != nil); err != nil {
		return err
	}
	registry.dirmon = handler
	return nil
}

// Register installs every method of handlers, stopping at the first failure.
func (registry *Registry) Register(handlers Handlers) error {
	if handlers == nil {
		return errors.New("handlers are nil")
	}
	if err := registry.OnAccept(handlers.OnAccept); err != nil {
		return err
	}
	if err := registry.OnRead(handlers.OnRead); err != nil {
		return err
	}
	if err := registry.OnWrite(handlers.OnWrite); err != nil {
		return err
	}
	return registry.OnDirmon(handlers.OnDirmon)
}

// Validate reports every category that has no handler.
func (registry *Registry) Validate() error {
	if registry == nil {
		return errNilRegistry
	}
	var err error
	if registry.accept == nil {
		err = errors.Join(err, fmt.Errorf("%s: %w", KindAccept, ErrMissingHandler))
	}
	if registry.read == nil {
		err = errors.Join(err, fmt.Errorf("%s: %w", KindRead, ErrMissingHandler))
	}
	if registry.write == nil {
		err = errors.Join(err, fmt.Errorf("%s: %w", KindWrite, ErrMissingHandler))
	}
	if registry.dirmon == nil {
		err = errors.Join(err, fmt.Errorf("%s: %w", KindDirmon, ErrMissingHandler))
	}
	return err
}

func (registry *Registry) check(kind Kind, isNil, exists bool) error {
	if registry.frozen {
		return fmt.Errorf("%s: %w", kind, ErrRegistryFrozen)
	}
	if isNil {
		return fmt.Errorf("%s: handler is nil", kind)
	}
	if exists {
		return fmt.Errorf("%s: %w", kind, ErrHandlerRegistered)
	}
	return nil
}

func (registry *Registry) freeze() {
	registry.frozen = true
}
