package iterator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fmf/pipeline/engine/core"
)

// Splitter selects how a document's text is broken into sentence- or
// paragraph-sized units before being packed into token-bounded chunks.
type Splitter string

const (
	SplitBySentence  Splitter = "by_sentence"
	SplitByParagraph Splitter = "by_paragraph"
	SplitFixed       Splitter = "fixed"
)

var (
	sentenceBoundary  = regexp.MustCompile(`(?:[.!?])\s+`)
	paragraphBoundary = regexp.MustCompile(`\n\n+`)
	wordBoundary      = regexp.MustCompile(`\S+`)
)

// EstimateTokens approximates token count from whitespace-delimited word
// count. This intentionally tracks an approximation rather than an
// exact tokenizer: the budget it enforces only needs to be in the right
// ballpark to keep chunks from overflowing a model's context window.
func EstimateTokens(text string) int {
	words := wordBoundary.FindAllString(text, -1)
	if len(words) == 0 {
		return 1
	}
	return len(words)
}

func splitUnits(text string, splitter Splitter) []string {
	switch splitter {
	case SplitByParagraph:
		return filterEmpty(paragraphBoundary.Split(text, -1))
	case SplitFixed:
		return filterEmpty(wordBoundary.FindAllString(text, -1))
	default:
		return filterEmpty(sentenceBoundary.Split(text, -1))
	}
}

func filterEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ChunkOptions configures ChunkText.
type ChunkOptions struct {
	Splitter  Splitter
	MaxTokens int
	Overlap   int
	HashAlgo  core.HashAlgo
}

// unitPos pairs a split unit's text with its byte offset in the
// document's original, unsplit text.
type unitPos struct {
	text   string
	offset int
}

// locateUnits finds each unit's byte offset by searching for it in doc
// text from a monotonically advancing cursor: since units are trimmed
// substrings of the original text, each one is still found verbatim.
func locateUnits(text string, units []string) []unitPos {
	positions := make([]unitPos, len(units))
	cursor := 0
	for i, u := range units {
		offset := cursor
		if idx := strings.Index(text[cursor:], u); idx >= 0 {
			offset = cursor + idx
			cursor = offset + len(u)
		}
		positions[i] = unitPos{text: u, offset: offset}
	}
	return positions
}

// ChunkText splits doc's text into token-bounded chunks, carrying
// enough trailing units to cover roughly Overlap words forward into the
// next chunk so context isn't lost at a boundary. Units from the
// configured splitter are accumulated until adding the next one would
// exceed MaxTokens, at which point the accumulated text is flushed as a
// chunk.
func ChunkText(doc core.Document, opts ChunkOptions) ([]core.Chunk, error) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 800
	}
	units := splitUnits(doc.Text, opts.Splitter)
	if len(units) == 0 {
		return nil, nil
	}
	positions := locateUnits(doc.Text, units)

	var chunks []core.Chunk
	var current []unitPos
	currentTokens := 0
	index := 0

	flush := func() error {
		if len(current) == 0 {
			return nil
		}
		texts := make([]string, len(current))
		for i, p := range current {
			texts[i] = p.text
		}
		text := strings.Join(texts, " ")
		offset := current[0].offset
		id, err := core.ChunkID(opts.HashAlgo, doc.ID, offset, []byte(text))
		if err != nil {
			return fmt.Errorf("derive chunk id: %w", err)
		}
		chunks = append(chunks, core.Chunk{
			ID:             id,
			DocumentID:     doc.ID,
			Index:          index,
			Text:           text,
			SourceURI:      doc.SourceURI,
			Offset:         offset,
			TokensEstimate: EstimateTokens(text),
		})
		index++
		current = overlapTail(current, opts.Overlap)
		currentTokens = 0
		for _, p := range current {
			currentTokens += EstimateTokens(p.text)
		}
		return nil
	}

	for _, p := range positions {
		unitTokens := EstimateTokens(p.text)
		if currentTokens > 0 && currentTokens+unitTokens > opts.MaxTokens {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		current = append(current, p)
		currentTokens += unitTokens
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return chunks, nil
}

// overlapTail returns the trailing whole units whose combined word
// count covers at least `overlap`, preserving their original offsets
// exactly rather than re-slicing words out of a rejoined string.
func overlapTail(units []unitPos, overlap int) []unitPos {
	if overlap <= 0 {
		return nil
	}
	totalWords := 0
	start := len(units)
	for i := len(units) - 1; i >= 0; i-- {
		totalWords += EstimateTokens(units[i].text)
		start = i
		if totalWords >= overlap {
			break
		}
	}
	return append([]unitPos(nil), units[start:]...)
}
