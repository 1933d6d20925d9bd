package iterator

import (
	"github.com/fmf/pipeline/engine/core"
)

// GroupImages partitions a document's blobs into ImageGroups of at most
// groupSize images each, preserving blob order. A groupSize of 0 or 1
// yields one group per blob.
func GroupImages(doc core.Document, groupSize int) []core.ImageGroup {
	if groupSize <= 0 {
		groupSize = 1
	}
	var groups []core.ImageGroup
	for start := 0; start < len(doc.Blobs); start += groupSize {
		end := start + groupSize
		if end > len(doc.Blobs) {
			end = len(doc.Blobs)
		}
		batch := doc.Blobs[start:end]
		group := core.ImageGroup{DocumentID: doc.ID}
		for _, blob := range batch {
			group.Blobs = append(group.Blobs, blob)
			if blob.SourceURI != "" {
				group.SourceURIs = append(group.SourceURIs, blob.SourceURI)
			}
		}
		groups = append(groups, group)
	}
	return groups
}
