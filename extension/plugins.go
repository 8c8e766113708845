package extension

import (
	"context"
	"fmt"
	"sync"
)

// Plugin is an optional runtime capability with an explicit initialization
// lifecycle; the kernel execution client is registered as one.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, username string) error
	Ready() bool
}

// PluginStatus describes one registered plugin for the discovery surface.
type PluginStatus struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// Plugins tracks registered plugins and their initialization state.
type Plugins struct {
	mux     sync.RWMutex
	entries map[string]Plugin
	order   []string
}

// NewPlugins creates an empty plugin registry.
func NewPlugins() *Plugins {
	return &Plugins{entries: make(map[string]Plugin)}
}

// Register adds a plugin; re-registering a name replaces the previous entry.
func (p *Plugins) Register(plugin Plugin) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if _, exists := p.entries[plugin.Name()]; !exists {
		p.order = append(p.order, plugin.Name())
	}
	p.entries[plugin.Name()] = plugin
}

// Lookup returns a plugin by name, or nil.
func (p *Plugins) Lookup(name string) Plugin {
	p.mux.RLock()
	defer p.mux.RUnlock()
	return p.entries[name]
}

// Initialize initializes the named plugin; already-ready plugins are left
// untouched.
func (p *Plugins) Initialize(ctx context.Context, name, username string) error {
	plugin := p.Lookup(name)
	if plugin == nil {
		return fmt.Errorf("unknown plugin: %v", name)
	}
	if plugin.Ready() {
		return nil
	}
	return plugin.Initialize(ctx, username)
}

// Status lists all plugins in registration order.
func (p *Plugins) Status() []PluginStatus {
	p.mux.RLock()
	defer p.mux.RUnlock()
	statuses := make([]PluginStatus, 0, len(p.order))
	for _, name := range p.order {
		statuses = append(statuses, PluginStatus{Name: name, Ready: p.entries[name].Ready()})
	}
	return statuses
}
