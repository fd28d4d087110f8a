package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Payload keys reserved by QdrantStore; every other payload key is document
// metadata.
const (
	payloadContent = "content"
	payloadDocID   = "doc_id"
)

// pointNamespace seeds the name-based UUIDs used as Qdrant point IDs, so the
// same document ID always maps to the same point.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/54b3r/bookrec-go/points"))

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality used when the collection is created
	// for an empty document set. Non-empty builds take it from the embeddings.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant collection.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore connects to Qdrant for building an index. The collection is
// (re)created by Replace, so it need not exist yet.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	return dialQdrant(cfg)
}

// OpenQdrantStore connects to Qdrant for serving. It returns ErrIndexNotFound
// when the collection has not been built.
func OpenQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	store, err := dialQdrant(cfg)
	if err != nil {
		return nil, err
	}

	exists, err := store.client.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		_ = store.Close()
		return nil, fmt.Errorf("qdrant: collection %q: %w", cfg.Collection, ErrIndexNotFound)
	}

	return store, nil
}

// dialQdrant applies defaults and creates the gRPC client.
func dialQdrant(cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "books"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client, cfg: cfg}, nil
}

// Client exposes the gRPC client for health checks.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}

// Replace drops the collection if present, recreates it with the vector size
// of the supplied embeddings, and upserts every document in one request.
func (s *QdrantStore) Replace(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("qdrant: %d documents but %d embeddings", len(docs), len(embeddings))
	}

	size := s.cfg.VectorSize
	if len(embeddings) > 0 {
		size = uint64(len(embeddings[0]))
	}
	if size == 0 {
		return fmt.Errorf("qdrant: vector size unknown for collection %q", s.cfg.Collection)
	}

	if err := s.recreateCollection(ctx, size); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		if uint64(len(embeddings[i])) != size {
			return fmt.Errorf("qdrant: embedding %d has %d dimensions, want %d", i, len(embeddings[i]), size)
		}

		payload := map[string]any{
			payloadContent: doc.Content,
			payloadDocID:   doc.ID,
		}
		for k, v := range doc.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(doc.ID)),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// recreateCollection deletes the collection when it exists and creates it
// empty with cosine distance.
func (s *QdrantStore) recreateCollection(ctx context.Context, size uint64) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
			return fmt.Errorf("qdrant: failed to drop collection %q: %w", s.cfg.Collection, err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     size,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// Search performs a cosine similarity search and returns the top-k results.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, documentFromPayload(r.GetId().GetUuid(), r.GetScore(), r.GetPayload()))
	}

	return docs, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// pointID maps a document ID to its deterministic point UUID.
func pointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

// documentFromPayload rebuilds a Document from a scored point's payload.
// pointUUID is used as the ID when the payload carries no doc_id.
func documentFromPayload(pointUUID string, score float32, payload map[string]*qdrant.Value) Document {
	doc := Document{
		ID:       pointUUID,
		Score:    score,
		Metadata: make(map[string]any, len(payload)),
	}
	for k, v := range payload {
		switch k {
		case payloadContent:
			doc.Content = v.GetStringValue()
		case payloadDocID:
			if id := v.GetStringValue(); id != "" {
				doc.ID = id
			}
		default:
			if val := valueToAny(v); val != nil {
				doc.Metadata[k] = val
			}
		}
	}
	return doc
}

// valueToAny converts a scalar payload value to its Go equivalent. Lists,
// structs, and nulls yield nil.
func valueToAny(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	default:
		return nil
	}
}
