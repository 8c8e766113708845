// Package event provides the typed execution event stream: every executed
// action publishes start/finish events that listeners (logging, auditing)
// consume without coupling to the dispatch path.
package event

import (
	"reflect"
	"sync"

	"github.com/runbox/runbox/service/messaging"
	"github.com/runbox/runbox/service/messaging/memory"
)

// Service owns one untyped stream plus lazily created typed streams, all
// backed by in-process queues.
type Service struct {
	publisher       *Publisher[any]
	listener        *Listener[any]
	typedPublishers map[reflect.Type]any
	typedListeners  map[reflect.Type]any
	mux             sync.RWMutex
	newQueueConfig  func(name string) memory.Config
}

// Option customises the event service.
type Option func(*Service)

// WithQueueConfig sets the per-queue configuration factory.
func WithQueueConfig(newConfig func(name string) memory.Config) Option {
	return func(s *Service) {
		s.newQueueConfig = newConfig
	}
}

// New creates the event service.
func New(opts ...Option) *Service {
	ret := &Service{
		typedPublishers: make(map[reflect.Type]any),
		typedListeners:  make(map[reflect.Type]any),
		newQueueConfig:  func(string) memory.Config { return memory.DefaultConfig() },
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.publisher = NewPublisher[any](queueOf[Event[any]](ret, "any"))
	return ret
}

// SetListener attaches the untyped stream listener, replacing any previous
// one.
func (s *Service) SetListener(handler func(*Event[any])) {
	if s.listener != nil {
		s.listener.Stop()
	}
	s.listener = NewListener[any](s.publisher, handler)
	s.listener.Start()
}

// Shutdown stops all listeners.
func (s *Service) Shutdown() {
	if s.listener != nil {
		s.listener.Stop()
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	for _, listener := range s.typedListeners {
		if stopper, ok := listener.(interface{ Stop() }); ok {
			stopper.Stop()
		}
	}
}

func queueOf[T any](s *Service, name string) messaging.Queue[T] {
	return memory.NewQueue[T](s.newQueueConfig(name))
}

func keyOf[T any]() reflect.Type {
	rType := reflect.TypeOf((*T)(nil)).Elem()
	if rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	return rType
}

// SetListenerOf attaches a handler to the typed stream of T.
func SetListenerOf[T any](s *Service, handler func(*Event[T])) {
	key := keyOf[T]()
	s.mux.RLock()
	previous, ok := s.typedListeners[key]
	s.mux.RUnlock()
	if ok {
		previous.(*Listener[T]).Stop()
	}
	publisher := PublisherOf[T](s)
	listener := NewListener[T](publisher, handler)
	s.mux.Lock()
	s.typedListeners[key] = listener
	s.mux.Unlock()
	listener.Start()
}

// PublisherOf returns the publisher for T, creating its queue on first use.
func PublisherOf[T any](s *Service) *Publisher[T] {
	key := keyOf[T]()
	s.mux.RLock()
	existing, ok := s.typedPublishers[key]
	s.mux.RUnlock()
	if ok {
		return existing.(*Publisher[T])
	}
	publisher := NewPublisher[T](queueOf[Event[T]](s, key.String()))
	publisher.anyQueue = s.publisher.queue
	s.mux.Lock()
	s.typedPublishers[key] = publisher
	s.mux.Unlock()
	return publisher
}
