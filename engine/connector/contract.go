package connector

import (
	"context"
	"io"
)

// Fetched is the raw bytes and metadata for one resolved resource.
type Fetched struct {
	SourceURI     string
	ContentType   string
	ContentLength int
	Body          io.ReadCloser
}

// Connector resolves a resource selector (a glob, a URI, a bucket
// prefix) into a list of concrete resources, and fetches any one of
// them on demand.
type Connector interface {
	Name() string
	List(ctx context.Context, selector string) ([]string, error)
	Fetch(ctx context.Context, uri string) (Fetched, error)
}

// Registry resolves a named connector, since one run may pull from more
// than one source kind (local files, an object store, a REST API).
type Registry struct {
	connectors map[string]Connector
}

func NewRegistry(connectors ...Connector) *Registry {
	r := &Registry{connectors: make(map[string]Connector, len(connectors))}
	for _, c := range connectors {
		r.connectors[c.Name()] = c
	}
	return r
}

func (r *Registry) Get(name string) (Connector, bool) {
	c, ok := r.connectors[name]
	return c, ok
}
