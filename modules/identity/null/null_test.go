package null

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flemzord/sdiscuss/internal/core"
	"github.com/flemzord/sdiscuss/internal/identity"
)

func TestDriver_AlwaysAnonymous(t *testing.T) {
	t.Parallel()

	ctx := core.NewAppContext(nil, t.TempDir(), nil)
	if err := (&Driver{}).Provision(ctx); err != nil {
		t.Fatal(err)
	}
	policy, err := core.ServiceAs[identity.Policy](ctx, identity.ServiceName)
	if err != nil {
		t.Fatal(err)
	}

	id, err := policy.Identity(httptest.NewRequest(http.MethodPost, "/", nil))
	if id != nil || err != nil {
		t.Errorf("Identity = %+v, %v; want nil, nil", id, err)
	}

	rec := httptest.NewRecorder()
	_ = policy.Forget(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(rec.Result().Cookies()) != 0 {
		t.Error("null driver set a cookie")
	}
}
