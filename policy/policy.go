package policy

import (
	"context"
	"strings"
)

// Execution modes recognised by the dispatch layer.
const (
	ModeAsk  = "ask"  // ask before every action
	ModeAuto = "auto" // execute automatically (default)
	ModeDeny = "deny" // block execution
)

// AskFunc is invoked when Mode==ask. Returning true approves the action.
// Implementations may mutate the policy, for example switching to ModeAuto
// after the first approval.
type AskFunc func(ctx context.Context, action string, args map[string]interface{}, p *Policy) bool

// Policy gates which action kinds the runtime will execute.
//
//   - Mode controls the high-level behaviour (ask / auto / deny).
//   - AllowList and BlockList filter by action kind regardless of Mode.
//   - Ask is only consulted when Mode==ask.
//
// A nil *Policy means "execute everything" and is the zero-cost default.
type Policy struct {
	Mode      string
	AllowList []string
	BlockList []string
	Ask       AskFunc
}

// Config is the declarative, serialisable subset of a Policy.
type Config struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// FromConfig converts a stored Config into a runtime Policy (without
// AskFunc).
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{
		Mode:      c.Mode,
		AllowList: append([]string(nil), c.AllowList...),
		BlockList: append([]string(nil), c.BlockList...),
	}
}

// IsAllowed evaluates AllowList and BlockList for an action kind. Matching is
// exact, case-insensitive; BlockList wins.
func (p *Policy) IsAllowed(action string) bool {
	if p == nil {
		return true
	}
	normalized := strings.ToLower(action)
	for _, blocked := range p.BlockList {
		if normalized == strings.ToLower(blocked) {
			return false
		}
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, allowed := range p.AllowList {
		if normalized == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// Allowed applies Mode on top of the list filters. args carries the action
// payload for AskFunc callbacks.
func (p *Policy) Allowed(ctx context.Context, action string, args map[string]interface{}) bool {
	if p == nil {
		return true
	}
	if !p.IsAllowed(action) {
		return false
	}
	switch strings.ToLower(p.Mode) {
	case ModeDeny:
		return false
	case ModeAsk:
		if p.Ask == nil {
			return false
		}
		return p.Ask(ctx, action, args, p)
	}
	return true
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy carried by ctx, or nil.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
