package extension

import (
	"sync"

	"github.com/viant/x"

	"github.com/runbox/runbox/model/types"
)

// DataTypeIniter is implemented by services that contribute types to the
// shared registry on registration.
type DataTypeIniter interface {
	InitTypes(types *Types)
}

// Actions is the registry of action services exposed by the runtime.
type Actions struct {
	types    *Types
	services map[string]types.Service
	mux      sync.RWMutex
}

func (s *Actions) Types() *Types {
	return s.types
}

// Lookup returns a service by name
func (s *Actions) Lookup(name string) types.Service {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.services[name]
}

// Services returns the registered service names.
func (s *Actions) Services() []string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	names := make([]string, 0, len(s.services))
	for name := range s.services {
		names = append(names, name)
	}
	return names
}

// Register registers a service
func (s *Actions) Register(service types.Service) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if typer, ok := service.(DataTypeIniter); ok {
		typer.InitTypes(s.types)
	}
	s.services[service.Name()] = service
}

// NewActions creates a new action service registry
func NewActions(goTypes ...*x.Type) *Actions {
	ret := &Actions{
		types:    NewTypes(),
		services: make(map[string]types.Service),
	}
	for _, t := range goTypes {
		if t != nil {
			ret.types.Register(t)
		}
	}
	return ret
}
