package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/shop-assistant/internal/inventory/domain"
)

const SearchLimit = 5

var (
	ErrMissingProduct     = errors.New("missing product name")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

type Service struct {
	log     *slog.Logger
	catalog Catalog
}

func NewService(log *slog.Logger, catalog Catalog) *Service {
	return &Service{log: log, catalog: catalog}
}

// Search returns up to SearchLimit products whose name starts with query.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Product, error) {
	prefix := domain.NormalizeName(query)
	if prefix == "" {
		return nil, ErrMissingProduct
	}
	products, err := s.catalog.Search(ctx, prefix, SearchLimit)
	if err != nil {
		s.log.Error("product search failed", "prefix", prefix, "err", err)
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	return products, nil
}

func (s *Service) Lookup(ctx context.Context, name string) (domain.Product, error) {
	name = domain.NormalizeName(name)
	if name == "" {
		return domain.Product{}, ErrMissingProduct
	}
	p, err := s.catalog.GetByName(ctx, name)
	if errors.Is(err, domain.ErrProductNotFound) {
		return domain.Product{}, err
	}
	if err != nil {
		s.log.Error("product lookup failed", "product", name, "err", err)
		return domain.Product{}, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	return p, nil
}
