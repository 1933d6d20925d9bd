package retrieval

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

// tokenPattern mirrors the reference tokenizer: lowercase alphanumeric
// runs, discarding punctuation and whitespace entirely.
var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(text string) map[string]int {
	counts := map[string]int{}
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		counts[tok]++
	}
	return counts
}

func cosine(a, b map[string]int) float64 {
	var dot, normA, normB float64
	for tok, count := range a {
		dot += float64(count) * float64(b[tok])
		normA += float64(count) * float64(count)
	}
	for _, count := range b {
		normB += float64(count) * float64(count)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ReferenceDocument is one text passage indexed by the in-process
// reference pipeline.
type ReferenceDocument struct {
	SourceURI string
	Text      string
}

// ReferencePipeline is a dependency-free TF-vector cosine-similarity
// retriever: no embeddings model, no external service, just scored
// term-overlap. It exists so the pipeline is runnable end to end
// without a real vector store configured, and as a baseline to compare
// a production retrieval backend against.
type ReferencePipeline struct {
	docs []ReferenceDocument
	vecs []map[string]int
}

func NewReferencePipeline(docs []ReferenceDocument) *ReferencePipeline {
	p := &ReferencePipeline{docs: docs}
	for _, d := range docs {
		p.vecs = append(p.vecs, tokenize(d.Text))
	}
	return p
}

// Retrieve scores every indexed document against query by term-overlap
// cosine similarity and returns up to topKText of them. It carries no
// images, so topKImages is accepted (to satisfy the Pipeline contract)
// but always yields zero image results.
func (p *ReferencePipeline) Retrieve(_ context.Context, query string, topKText, topKImages int) (Result, error) {
	_ = topKImages
	queryVec := tokenize(query)
	type scored struct {
		idx   int
		score float64
	}
	var ranked []scored
	for i, vec := range p.vecs {
		ranked = append(ranked, scored{idx: i, score: cosine(queryVec, vec)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if topKText <= 0 || topKText > len(ranked) {
		topKText = len(ranked)
	}
	result := Result{Query: query}
	for _, r := range ranked[:topKText] {
		if r.score <= 0 {
			continue
		}
		doc := p.docs[r.idx]
		result.Texts = append(result.Texts, TextResult{
			SourceURI: doc.SourceURI,
			Text:      doc.Text,
			Score:     r.score,
		})
	}
	return result, nil
}
