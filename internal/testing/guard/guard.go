// Package guard forces test mode for packages importing it in tests.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("VANTAGE_TEST_MODE") == "" {
			_ = os.Setenv("VANTAGE_TEST_MODE", "1")
		}
	})
}
