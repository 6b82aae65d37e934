package state

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	siteID = uuid.NewString()
	refSeq uint64
)

func nextRefSeq() uint64 {
	return atomic.AddUint64(&refSeq, 1)
}

// NewRef returns a commit reference unique across clients: this process's
// site ID plus a local counter.
func NewRef() string {
	return fmt.Sprintf("%s-%d", siteID, nextRefSeq())
}
