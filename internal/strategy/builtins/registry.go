package builtins

import "quantworker/internal/strategy"

// Descriptors returns every strategy shipped with the worker.
func Descriptors() []strategy.Descriptor {
	return []strategy.Descriptor{
		SMACrossDescriptor(),
		TurtleDescriptor(),
		GridDescriptor(),
		HiddenDragonDescriptor(),
	}
}

// NewRegistry builds the default registry of builtin strategies.
func NewRegistry() (*strategy.Registry, error) {
	return strategy.NewRegistry(Descriptors()...)
}
