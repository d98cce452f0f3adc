// Package index provides the knowledge-base vector index backed by
// Qdrant. Indexed chunks make previously processed documents searchable
// by later stages and external tooling.
package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/sampoursoltan11/paddock-sub000/pkg/lifecycle"
)

// Chunk is one indexable span of extracted document text.
type Chunk struct {
	DocumentID uuid.UUID `json:"document_id"`
	PageNumber int       `json:"page_number"`
	Ordinal    int       `json:"ordinal"`
	Text       string    `json:"text"`
}

// Match is one search hit from the knowledge base.
type Match struct {
	DocumentID string  `json:"document_id"`
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
}

// System manages the knowledge-base vector collection.
type System interface {
	// Start registers a startup hook that ensures the collection exists.
	Start(lc *lifecycle.Coordinator) error
	// Upsert indexes chunks, replacing any prior points with the same ids.
	Upsert(ctx context.Context, chunks []Chunk) error
	// Search returns the closest indexed chunks for a query string.
	Search(ctx context.Context, query string, limit uint64) ([]Match, error)
}

type system struct {
	client     *qdrant.Client
	collection string
	dim        int
	logger     *slog.Logger
}

// New creates an index system from the given configuration. The Qdrant
// connection is established lazily by the client; collection setup
// happens in Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return &system{
		client:     client,
		collection: cfg.Collection,
		dim:        cfg.Dimensions,
		logger:     logger.With("system", "index"),
	}, nil
}

func (s *system) Start(lc *lifecycle.Coordinator) error {
	s.logger.Info("starting index system")

	lc.OnStartup(func() {
		exists, err := s.client.CollectionExists(lc.Context(), s.collection)
		if err != nil {
			s.logger.Error("collection check failed", "error", err)
			return
		}
		if exists {
			s.logger.Info("index collection ready", "collection", s.collection)
			return
		}

		err = s.client.CreateCollection(lc.Context(), &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dim),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			s.logger.Error("collection creation failed", "error", err)
			return
		}

		s.logger.Info("index collection created", "collection", s.collection)
	})

	return nil
}

func (s *system) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(chunkID(chunk).String()),
			Vectors: qdrant.NewVectors(Embed(chunk.Text, s.dim)...),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id": chunk.DocumentID.String(),
				"page_number": int64(chunk.PageNumber),
				"text":        chunk.Text,
			}),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert %d chunks: %w", len(chunks), err)
	}

	s.logger.Info("chunks indexed", "count", len(chunks))
	return nil
}

func (s *system) Search(ctx context.Context, query string, limit uint64) ([]Match, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(Embed(query, s.dim)...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	matches := make([]Match, 0, len(points))
	for _, point := range points {
		match := Match{Score: point.Score}
		if v, ok := point.Payload["document_id"]; ok {
			match.DocumentID = v.GetStringValue()
		}
		if v, ok := point.Payload["page_number"]; ok {
			match.PageNumber = int(v.GetIntegerValue())
		}
		if v, ok := point.Payload["text"]; ok {
			match.Text = v.GetStringValue()
		}
		matches = append(matches, match)
	}

	return matches, nil
}

// chunkID derives a stable point id from the chunk's position, so
// re-indexing the same document overwrites rather than duplicates.
func chunkID(chunk Chunk) uuid.UUID {
	name := fmt.Sprintf("%s/%d/%d", chunk.DocumentID, chunk.PageNumber, chunk.Ordinal)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
}
