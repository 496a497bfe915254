package segment

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator hands out unique segment IDs.
type Generator struct {
	counter  uint64
	instance string
}

func New() *Generator {
	return &Generator{instance: uuid.NewString()[:8]}
}

// Next returns the next segment ID for sessionId. Without a session the
// generator's random instance prefix is used.
func (g *Generator) Next(sessionId string) string {
	n := atomic.AddUint64(&g.counter, 1)
	if sessionId == "" {
		sessionId = g.instance
	}
	return fmt.Sprintf("%s-seg-%d", sessionId, n)
}
