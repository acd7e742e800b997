// Package null implements the identity.null driver: every caller stays
// anonymous, so operations that need an identity are refused.
package null

import (
	"net/http"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/identity"
	"github.com/flemzord/sdiscuss/pkg/comment"
)

func init() {
	core.RegisterModule(&Driver{})
}

var (
	_ identity.Policy  = (*Driver)(nil)
	_ core.Provisioner = (*Driver)(nil)
)

// Driver never resolves an identity.
type Driver struct{}

// ModuleInfo implements core.Module.
func (*Driver) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:          "identity.null",
		New:         func() core.Module { return &Driver{} },
		Description: "No identities; every caller is anonymous",
	}
}

// Provision implements core.Provisioner.
func (d *Driver) Provision(ctx *core.AppContext) error {
	return ctx.RegisterService(identity.ServiceName, identity.Policy(d))
}

// Identity implements identity.Policy.
func (*Driver) Identity(*http.Request) (*comment.Identity, error) { return nil, nil }

// Remember implements identity.Policy.
func (*Driver) Remember(http.ResponseWriter, *http.Request, int64) error { return nil }

// Forget implements identity.Policy.
func (*Driver) Forget(http.ResponseWriter, *http.Request) error { return nil }
