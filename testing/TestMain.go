// Package testing puts the portal into test mode for any test binary that
// imports it.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"

	"github.com/memberhub/portal/internal/app"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("PORTAL_TEST_MODE", "1")
		if os.Getenv("SERVICE_URL") == "" {
			_ = os.Setenv("SERVICE_URL", "http://127.0.0.1:0")
		}
		app.RefreshTestMode()
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
