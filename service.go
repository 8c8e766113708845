package runbox

import (
	"context"

	"github.com/runbox/runbox/extension"
	"github.com/runbox/runbox/model/types"
	"github.com/runbox/runbox/policy"
	"github.com/runbox/runbox/service/action/cell"
	"github.com/runbox/runbox/service/action/cmd"
	"github.com/runbox/runbox/service/action/patch"
	"github.com/runbox/runbox/service/action/stats"
	"github.com/runbox/runbox/service/action/storage"
	"github.com/runbox/runbox/service/action/testrun"
	"github.com/runbox/runbox/service/event"
	"github.com/runbox/runbox/service/kernel"
	"github.com/runbox/runbox/service/shell"

	"github.com/viant/x"
)

// Service is the workspace execution backend facade. It owns the interactive
// shell session, the kernel execution client (initialized lazily through the
// plugin registry), the action service registry, the event stream and the
// policy gate. Components never call each other; the runtime is the only
// party that sees both execution paths.
type Service struct {
	config  *Config
	runtime *Runtime

	session *shell.Session
	kernel  *kernel.Client

	actions *extension.Actions
	plugins *extension.Plugins
	events  *event.Service
	policy  *policy.Policy

	extensionTypes    []*x.Type
	extensionServices []types.Service
	shellOptions      []shell.Option
	kernelOptions     []kernel.Option
}

// New builds a service from options; a missing config inherits DefaultConfig.
func New(options ...Option) *Service {
	ret := &Service{runtime: &Runtime{}}
	ret.init(options)
	return ret
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if s.events == nil {
		s.events = event.New()
	}
	s.setup()
}

// setup builds the session, the kernel client and the service registry bound
// to them. Reset calls it again with fresh instances.
func (s *Service) setup() {
	shellOptions := s.shellOptions
	if s.config.Shell.Path != "" {
		shellOptions = append(shellOptions, shell.WithShell(s.config.Shell.Path))
	}
	if s.config.Shell.StartupTimeoutSec > 0 {
		shellOptions = append(shellOptions, shell.WithStartupTimeout(seconds(s.config.Shell.StartupTimeoutSec)))
	}
	if s.config.Shell.DefaultTimeoutSec > 0 {
		shellOptions = append(shellOptions, shell.WithDefaultTimeout(seconds(s.config.Shell.DefaultTimeoutSec)))
	}
	s.session = shell.New(s.config.WorkDir, s.config.Username, shellOptions...)

	kernelOptions := s.kernelOptions
	if s.config.LocalMode {
		kernelOptions = append(kernelOptions, kernel.WithLocalMode(true))
	}
	if s.config.Kernel.StartupTimeoutSec > 0 {
		kernelOptions = append(kernelOptions, kernel.WithStartupTimeout(seconds(s.config.Kernel.StartupTimeoutSec)))
	}
	if s.config.Kernel.DefaultTimeoutSec > 0 {
		kernelOptions = append(kernelOptions, kernel.WithDefaultTimeout(seconds(s.config.Kernel.DefaultTimeoutSec)))
	}
	s.kernel = kernel.New(s.config.WorkDir, s.config.KernelPort, kernelOptions...)

	s.actions = extension.NewActions(s.extensionTypes...)
	cmdService := cmd.New(s.session)
	cellService := cell.New(s.kernel)
	storageService := storage.New(s.session.Cwd)
	patchService := patch.New(s.session.Cwd)
	s.actions.Register(cmdService)
	s.actions.Register(cellService)
	s.actions.Register(storageService)
	s.actions.Register(patchService)
	s.actions.Register(testrun.New(s.config.WorkDir))
	s.actions.Register(stats.New(s.config.WorkDir))
	for _, service := range s.extensionServices {
		s.actions.Register(service)
	}

	s.plugins = extension.NewPlugins()
	s.plugins.Register(&jupyterPlugin{client: s.kernel})
	s.plugins.Register(staticPlugin{name: "agent-skills"})

	s.runtime.bind(s, cmdService, cellService, storageService, patchService)
}

// Initialize starts the shell session. The kernel stays cold until its plugin
// is initialized explicitly.
func (s *Service) Initialize(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	return s.session.Initialize(ctx)
}

// Reset tears down the session and the kernel and rebuilds both, then brings
// the new session up. Plugin state resets to cold.
func (s *Service) Reset(ctx context.Context) error {
	_ = s.session.Close()
	_ = s.kernel.Close()
	s.setup()
	return s.session.Initialize(ctx)
}

// Shutdown releases the session, the kernel and the event stream.
func (s *Service) Shutdown() {
	_ = s.session.Close()
	_ = s.kernel.Close()
	s.events.Shutdown()
}

func (s *Service) Runtime() *Runtime { return s.runtime }

func (s *Service) Config() *Config { return s.config }

func (s *Service) Session() *shell.Session { return s.session }

func (s *Service) Kernel() *kernel.Client { return s.kernel }

func (s *Service) Actions() *extension.Actions { return s.actions }

func (s *Service) Plugins() *extension.Plugins { return s.plugins }

func (s *Service) Events() *event.Service { return s.events }

func (s *Service) RegisterExtensionTypes(types ...*x.Type) {
	for i := range types {
		s.actions.Types().Register(types[i])
	}
}

func (s *Service) RegisterExtensionServices(services ...types.Service) {
	for i := range services {
		s.actions.Register(services[i])
	}
}

// jupyterPlugin adapts the kernel client to the plugin lifecycle so callers
// can defer the gateway launch until code-cell execution is first needed.
type jupyterPlugin struct {
	client *kernel.Client
}

func (p *jupyterPlugin) Name() string { return "jupyter" }

func (p *jupyterPlugin) Initialize(ctx context.Context, username string) error {
	return p.client.Initialize(ctx, username)
}

func (p *jupyterPlugin) Ready() bool { return p.client.Ready() }

// staticPlugin is a capability with no initialization lifecycle.
type staticPlugin struct {
	name string
}

func (p staticPlugin) Name() string { return p.name }

func (p staticPlugin) Initialize(context.Context, string) error { return nil }

func (p staticPlugin) Ready() bool { return true }
