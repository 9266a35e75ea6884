package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"product-catalog/internal/products"
	"product-catalog/internal/products/search"

	"github.com/prometheus/client_golang/prometheus"
)

// Repository is the persistence port. Update and Delete report
// products.ErrNotFound when no record has the given id.
type Repository interface {
	Save(ctx context.Context, p products.Product) (products.Product, error)
	Fetch(ctx context.Context, id int64) (products.Product, bool, error)
	FetchAll(ctx context.Context) ([]products.Product, error)
	Update(ctx context.Context, p products.Product) error
	Delete(ctx context.Context, id int64) error
}

// FilteringRepository is implemented by stores that evaluate search filters
// themselves instead of returning the whole catalog.
type FilteringRepository interface {
	Repository
	FetchMatching(ctx context.Context, f search.Filter) ([]products.Product, error)
}

type Publisher interface {
	Publish(ctx context.Context, event products.ProductEvent) error
}

type Counters struct {
	Created prometheus.Counter
	Updated prometheus.Counter
	Deleted prometheus.Counter
}

type Service struct {
	repo      Repository
	publisher Publisher
	logger    *slog.Logger
	counters  Counters
}

func New(repo Repository, publisher Publisher, logger *slog.Logger, counters Counters) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		counters:  counters,
	}
}

// CreateProduct stores p under a freshly assigned id. Any id already set on p
// is discarded.
func (s *Service) CreateProduct(ctx context.Context, p products.Product) (products.Product, error) {
	p = p.Normalized()
	p.ID = 0
	if err := p.Validate(); err != nil {
		return products.Product{}, err
	}

	product, err := s.repo.Save(ctx, p)
	if err != nil {
		return products.Product{}, fmt.Errorf("repo save: %w", err)
	}

	s.publish(ctx, products.EventCreated, product)
	s.counters.Created.Inc()
	return product, nil
}

func (s *Service) FindProduct(ctx context.Context, id int64) (products.Product, bool, error) {
	product, found, err := s.repo.Fetch(ctx, id)
	if err != nil {
		return products.Product{}, false, fmt.Errorf("repo fetch %d: %w", id, err)
	}
	return product, found, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]products.Product, error) {
	items, err := s.repo.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("repo fetch all: %w", err)
	}
	return items, nil
}

// SearchProducts returns the products matching every predicate in f. An empty
// filter is the same as ListProducts.
func (s *Service) SearchProducts(ctx context.Context, f search.Filter) ([]products.Product, error) {
	if f.Empty() {
		return s.ListProducts(ctx)
	}

	if fr, ok := s.repo.(FilteringRepository); ok {
		items, err := fr.FetchMatching(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("repo fetch matching: %w", err)
		}
		return items, nil
	}

	items, err := s.repo.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("repo fetch all: %w", err)
	}
	return search.Select(items, f), nil
}

// UpdateProduct replaces every mutable field of product id with the values in
// p. A non-zero p.ID must equal id.
func (s *Service) UpdateProduct(ctx context.Context, id int64, p products.Product) (products.Product, error) {
	if id <= 0 {
		return products.Product{}, &products.ValidationError{Field: "id", Message: "is required for update"}
	}
	if p.ID != 0 && p.ID != id {
		return products.Product{}, &products.ValidationError{Field: "id", Message: "does not match the product being updated"}
	}

	p = p.Normalized()
	p.ID = id
	if err := p.Validate(); err != nil {
		return products.Product{}, err
	}

	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, products.ErrNotFound) {
			return products.Product{}, products.ErrNotFound
		}
		return products.Product{}, fmt.Errorf("repo update %d: %w", id, err)
	}

	s.publish(ctx, products.EventUpdated, p)
	s.counters.Updated.Inc()
	return p, nil
}

// DeleteProduct removes product id. Deleting a missing product succeeds
// without side effects.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, products.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("repo delete %d: %w", id, err)
	}

	s.publish(ctx, products.EventDeleted, products.Product{ID: id})
	s.counters.Deleted.Inc()
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, p products.Product) {
	if err := s.publisher.Publish(ctx, products.ProductEvent{
		EventType: eventType,
		ProductID: p.ID,
		Name:      p.Name,
		Category:  p.Category,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		s.logger.Error("publish product event failed",
			"event_type", eventType,
			"product_id", p.ID,
			"error", err,
		)
	}
}
