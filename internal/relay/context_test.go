package relay

import (
	"context"
	"testing"
)

// testContext stands in for t.Context (Go 1.24+): it is canceled when the test ends.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
