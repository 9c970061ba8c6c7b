package runtime

var defaultRegistry = NewRegistry()

// Default is the process-wide registry the CLI resolves targets
// against. Embedding programs register their handlers here during init.
func Default() *Registry {
	return defaultRegistry
}

// Register binds a handler in the default registry.
func Register(name string, fn HandlerFunc) error {
	return defaultRegistry.Register(name, fn)
}

// MustRegister binds a handler in the default registry and panics on
// error. Intended for init-time registration.
func MustRegister(name string, fn HandlerFunc) {
	defaultRegistry.MustRegister(name, fn)
}
