package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/fmf/pipeline/engine/connector"
	"github.com/fmf/pipeline/engine/core"
)

// LoadDocument fetches sourceURI through conn and builds the Document
// that iterator splitting consumes, deriving its id from the source URI
// and fetched bytes via core.DocumentID.
func LoadDocument(ctx context.Context, conn connector.Connector, sourceURI string, algo core.HashAlgo) (core.Document, error) {
	fetched, err := conn.Fetch(ctx, sourceURI)
	if err != nil {
		return core.Document{}, err
	}
	defer fetched.Body.Close()

	payload, err := io.ReadAll(fetched.Body)
	if err != nil {
		return core.Document{}, fmt.Errorf("read %s: %w", sourceURI, err)
	}

	id, err := core.DocumentID(algo, sourceURI, payload, nil, fetched.ContentType, fetched.ContentLength)
	if err != nil {
		return core.Document{}, err
	}

	return core.Document{
		ID:            id,
		SourceURI:     sourceURI,
		ContentType:   fetched.ContentType,
		ContentLength: fetched.ContentLength,
		Text:          string(payload),
	}, nil
}
