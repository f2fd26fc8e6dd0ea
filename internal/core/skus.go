package core

import (
	"context"
	"sort"
	"strings"

	"spoolbook/pkg/domain"
)

// SkuInput carries the caller-supplied SKU fields. Blank categorical fields
// fall back to the configured defaults; zero diameter or weight use the
// default nominal values.
type SkuInput struct {
	Brand     string
	Line      string
	Material  string
	Color     string
	Finish    string
	Additives string
	Diameter  float64
	WeightG   float64
	Notes     string
}

// SkuFilter narrows ListSkus. Empty fields do not filter.
type SkuFilter struct {
	Material   string
	Brand      string
	SearchText string
}

var skuScope = []domain.Collection{domain.CollectionFilamentSkus}

// CreateSku persists a new SKU with its derived search string.
func (s *Service) CreateSku(ctx context.Context, in SkuInput) (domain.FilamentSku, error) {
	sku := domain.FilamentSku{
		ID:        s.newID(),
		Brand:     in.Brand,
		Line:      in.Line,
		Material:  in.Material,
		Color:     in.Color,
		Finish:    in.Finish,
		Additives: in.Additives,
		Diameter:  in.Diameter,
		WeightG:   in.WeightG,
		Notes:     in.Notes,
	}
	err := s.run(ctx, "create_sku", skuScope, func(tx domain.Transaction) error {
		normalized, err := s.normalizeSku(sku)
		if err != nil {
			return err
		}
		sku = normalized
		return domain.Put(tx, domain.CollectionFilamentSkus, sku)
	}, "sku", sku.ID)
	if err != nil {
		return domain.FilamentSku{}, err
	}
	return sku, nil
}

// UpdateSku applies mutator to an existing SKU, then re-applies defaults and
// recomputes the search string. The identifier cannot change.
func (s *Service) UpdateSku(ctx context.Context, id string, mutator func(*domain.FilamentSku) error) (domain.FilamentSku, error) {
	var updated domain.FilamentSku
	err := s.run(ctx, "update_sku", skuScope, func(tx domain.Transaction) error {
		current, err := requireSku(tx, id)
		if err != nil {
			return err
		}
		if err := mutator(&current); err != nil {
			return err
		}
		current.ID = id
		if updated, err = s.normalizeSku(current); err != nil {
			return err
		}
		return domain.Put(tx, domain.CollectionFilamentSkus, updated)
	}, "sku", id)
	if err != nil {
		return domain.FilamentSku{}, err
	}
	return updated, nil
}

// GetSku returns the SKU or a not-found error.
func (s *Service) GetSku(ctx context.Context, id string) (domain.FilamentSku, error) {
	var sku domain.FilamentSku
	err := s.view(ctx, "get_sku", skuScope, func(r domain.Reader) error {
		var err error
		sku, err = requireSku(r, id)
		return err
	})
	return sku, err
}

// ListSkus returns the SKUs matching filter ordered by search string, then id.
// Material and brand match case-insensitively; every whitespace separated
// token of SearchText must occur in the search string.
func (s *Service) ListSkus(ctx context.Context, filter SkuFilter) ([]domain.FilamentSku, error) {
	var out []domain.FilamentSku
	tokens := strings.Fields(strings.ToLower(filter.SearchText))
	err := s.view(ctx, "list_skus", skuScope, func(r domain.Reader) error {
		all, err := domain.List[domain.FilamentSku](r, domain.CollectionFilamentSkus)
		if err != nil {
			return err
		}
		for _, sku := range all {
			if !matchesFold(sku.Material, filter.Material) || !matchesFold(sku.Brand, filter.Brand) {
				continue
			}
			if !containsAll(sku.Search, tokens) {
				continue
			}
			out = append(out, sku)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Search != out[j].Search {
			return out[i].Search < out[j].Search
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Service) normalizeSku(sku domain.FilamentSku) (domain.FilamentSku, error) {
	if !isFinite(sku.Diameter) {
		return sku, domain.Invalid("diameter", notFinite)
	}
	if !isFinite(sku.WeightG) {
		return sku, domain.Invalid("weight_g", notFinite)
	}
	if sku.Diameter < 0 {
		return sku, domain.Invalid("diameter", "must not be negative")
	}
	if sku.WeightG < 0 {
		return sku, domain.Invalid("weight_g", "must not be negative")
	}
	d := s.defaults
	sku.Brand = orDefault(sku.Brand, d.Brand)
	sku.Line = orDefault(sku.Line, d.Line)
	sku.Material = orDefault(sku.Material, d.Material)
	sku.Color = orDefault(sku.Color, d.Color)
	sku.Finish = orDefault(sku.Finish, d.Finish)
	sku.Additives = orDefault(sku.Additives, d.Additives)
	sku.Notes = strings.TrimSpace(sku.Notes)
	if sku.Diameter == 0 {
		sku.Diameter = d.DiameterMM
	}
	if sku.WeightG == 0 {
		sku.WeightG = d.WeightG
	}
	sku.Search = domain.BuildSearch(sku)
	return sku, nil
}

func requireSku(r domain.Reader, id string) (domain.FilamentSku, error) {
	if strings.TrimSpace(id) == "" {
		return domain.FilamentSku{}, domain.Invalid("filamentSkuId", "is required")
	}
	sku, ok, err := domain.Get[domain.FilamentSku](r, domain.CollectionFilamentSkus, id)
	if err != nil {
		return domain.FilamentSku{}, err
	}
	if !ok {
		return domain.FilamentSku{}, domain.ErrNotFound{Collection: domain.CollectionFilamentSkus, ID: id}
	}
	return sku, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func matchesFold(value, want string) bool {
	want = strings.TrimSpace(want)
	return want == "" || strings.EqualFold(value, want)
}

func containsAll(haystack string, tokens []string) bool {
	for _, t := range tokens {
		if !strings.Contains(haystack, t) {
			return false
		}
	}
	return true
}
