// Package guard switches the process into test mode before any runtime
// package reads it. Import it for side effects from tests that call entry
// points which would otherwise dial Postgres or Redis.
package guard

import (
	"os"
	"sync"
)

// Env is the variable the runtime checks for test mode.
const Env = "SITESTOCK_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(Env) == "" {
			_ = os.Setenv(Env, "1")
		}
	})
}
