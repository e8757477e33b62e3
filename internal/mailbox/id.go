package mailbox

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// idGenerator produces ids of the form <from>-<unixnanos>-<writer>-<seq>.
// writer is random per generator, so two processes never share a prefix,
// and seq is zero-padded so ids from one writer with equal timestamps still
// sort in write order.
type idGenerator struct {
	writer string
	seq    atomic.Uint64
}

func newIDGenerator(writer string) *idGenerator {
	if writer == "" {
		writer = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	return &idGenerator{writer: writer}
}

func (g *idGenerator) next(from string, ts time.Time) string {
	return fmt.Sprintf("%s-%d-%s-%08d", from, ts.UnixNano(), g.writer, g.seq.Add(1))
}
