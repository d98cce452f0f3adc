package stages

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/sampoursoltan11/paddock-sub000/internal/index"
	"github.com/sampoursoltan11/paddock-sub000/internal/pipeline"
)

// chunkSize bounds chunk length in bytes. Chunks split on whitespace
// near the bound so indexed spans stay readable.
const chunkSize = 1200

// KnowledgeOutput is the knowledge-indexing stage result.
type KnowledgeOutput struct {
	ChunksIndexed int `json:"chunks_indexed"`
}

// KnowledgeStage returns the knowledge-indexing stage. It chunks
// extracted page text and upserts the chunks into the vector index.
// Chunk ids are deterministic, so re-running the stage for the same
// document replaces prior points instead of duplicating them.
func KnowledgeStage(rt *Runtime) pipeline.Stage {
	return pipeline.NewStage(
		pipeline.StageKnowledgeIndexing,
		func(ctx context.Context, documentID uuid.UUID, prior pipeline.Outputs) (any, error) {
			extracted, err := pipeline.Output[ExtractOutput](prior, pipeline.StageContentExtraction)
			if err != nil {
				return nil, err
			}

			var chunks []index.Chunk
			for _, page := range extracted.Pages {
				for ordinal, text := range splitChunks(page.Text, chunkSize) {
					chunks = append(chunks, index.Chunk{
						DocumentID: documentID,
						PageNumber: page.PageNumber,
						Ordinal:    ordinal,
						Text:       text,
					})
				}
			}

			if len(chunks) > 0 {
				if err := rt.Index.Upsert(ctx, chunks); err != nil {
					return nil, fmt.Errorf("%w: %w", ErrIndexFailed, err)
				}
			}

			rt.Logger.InfoContext(
				ctx, "knowledge indexing complete",
				"document_id", documentID,
				"chunks", len(chunks),
			)
			return KnowledgeOutput{ChunksIndexed: len(chunks)}, nil
		},
	)
}

// splitChunks slices text into spans of at most limit bytes, splitting
// on the last whitespace before the bound when one exists. Empty text
// yields no chunks.
func splitChunks(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	for len(text) > limit {
		cut := limit
		if idx := lastSpace(text[:limit]); idx > 0 {
			cut = idx
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}

	return chunks
}

func lastSpace(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if unicode.IsSpace(rune(s[i])) {
			return i
		}
	}
	return -1
}
