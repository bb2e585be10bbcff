package app

import (
	"os"
	"sync"
)

const testModeEnv = "SITESTOCK_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})

// InTestMode reports whether the process runs under SITESTOCK_TEST_MODE=1.
// Test mode skips process startup and drops source locations from log lines.
func InTestMode() bool {
	return testMode()
}
