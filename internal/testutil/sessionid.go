// Package testutil holds helpers shared by tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
)

var sessionCounter atomic.Int64

// SessionID returns a process-unique session id derived from the test name,
// for tests that register sessions in the default registry.
func SessionID(t testing.TB) string {
	return fmt.Sprintf("%s-%d", strings.ReplaceAll(t.Name(), "/", "_"), sessionCounter.Add(1))
}
