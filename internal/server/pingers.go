package server

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/bookrec-go/internal/catalog"
)

// QdrantPinger checks a Qdrant instance with its HealthCheck RPC. Qdrant
// only backs the vector path.
type QdrantPinger struct {
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns "qdrant".
func (p *QdrantPinger) Name() string { return "qdrant" }

// VectorDependency reports true.
func (p *QdrantPinger) VectorDependency() bool { return true }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// CatalogPinger reports ready once the catalog holds at least one book.
type CatalogPinger struct {
	books *catalog.Store
}

// NewCatalogPinger constructs a CatalogPinger for the given catalog.
func NewCatalogPinger(books *catalog.Store) *CatalogPinger {
	return &CatalogPinger{books: books}
}

// Name returns "catalog".
func (p *CatalogPinger) Name() string { return "catalog" }

// Ping fails when the catalog is empty.
func (p *CatalogPinger) Ping(_ context.Context) error {
	if p.books.Len() == 0 {
		return fmt.Errorf("catalog is empty")
	}
	return nil
}

// FuncPinger adapts a named check function to the Pinger interface, e.g. an
// embedder's Ping method.
type FuncPinger struct {
	name   string
	fn     func(context.Context) error
	vector bool
}

// NewFuncPinger constructs a FuncPinger whose failure makes the service
// unready.
func NewFuncPinger(name string, fn func(context.Context) error) *FuncPinger {
	return &FuncPinger{name: name, fn: fn}
}

// NewVectorPinger constructs a FuncPinger for a dependency of the vector
// path only, such as the query embedder.
func NewVectorPinger(name string, fn func(context.Context) error) *FuncPinger {
	return &FuncPinger{name: name, fn: fn, vector: true}
}

// Name returns the label given at construction.
func (p *FuncPinger) Name() string { return p.name }

// VectorDependency reports whether p was built with NewVectorPinger.
func (p *FuncPinger) VectorDependency() bool { return p.vector }

// Ping runs the check function.
func (p *FuncPinger) Ping(ctx context.Context) error { return p.fn(ctx) }
