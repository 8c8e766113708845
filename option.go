package runbox

import (
	"time"

	"github.com/runbox/runbox/model/types"
	"github.com/runbox/runbox/policy"
	"github.com/runbox/runbox/service/event"
	"github.com/runbox/runbox/service/kernel"
	"github.com/runbox/runbox/service/shell"
	"github.com/runbox/runbox/tracing"
	"github.com/viant/x"
)

// Option customizes the service.
type Option func(s *Service)

// WithConfig sets the workspace configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithPolicy sets the action policy applied before dispatch.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithEventService sets the event service
func WithEventService(service *event.Service) Option {
	return func(s *Service) { s.events = service }
}

// WithShellOptions passes extra options to the shell session constructor.
func WithShellOptions(options ...shell.Option) Option {
	return func(s *Service) { s.shellOptions = append(s.shellOptions, options...) }
}

// WithKernelOptions passes extra options to the kernel client constructor.
func WithKernelOptions(options ...kernel.Option) Option {
	return func(s *Service) { s.kernelOptions = append(s.kernelOptions, options...) }
}

// WithExtensionTypes sets the extension types
func WithExtensionTypes(types ...*x.Type) Option {
	return func(s *Service) { s.extensionTypes = types }
}

// WithExtensionServices sets the extension services
func WithExtensionServices(services ...types.Service) Option {
	return func(s *Service) { s.extensionServices = services }
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile
// is empty the stdout exporter is used; otherwise traces are written to the
// supplied file path. The first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}
