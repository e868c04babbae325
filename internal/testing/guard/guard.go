// Package guard flips the application into test mode as soon as it is
// imported, so tests never start the real runtime.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("FARMWISE_TEST_MODE") == "" {
			_ = os.Setenv("FARMWISE_TEST_MODE", "1")
		}
	})
}
