package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Configurable modules receive their section of the modules: map, if
// the config has one, before Provision.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules apply defaults, open resources and look up or
// register services. A store driver registers itself here; extensions
// find the store, scheduler or renderer.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their configuration after Provision. Validate
// must not change state.
type Validator interface {
	Validate() error
}

// Starter modules begin background work (listeners, scheduled jobs) once
// every module is loaded.
type Starter interface {
	Start() error
}

// Stopper modules release resources. Stop runs in reverse load order,
// including on modules loaded by a failed LoadExtensions.
type Stopper interface {
	Stop(ctx context.Context) error
}
