package sink

import "context"

// Sink is where a step's serialized output records end up once a run
// finishes: a local file, an object store, or a database table.
type Sink interface {
	Name() string
	Write(ctx context.Context, relPath string, data []byte) error
}
