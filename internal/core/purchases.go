package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"spoolbook/pkg/domain"
)

// PurchaseInput describes an order. A zero Timestamp means now.
type PurchaseInput struct {
	Timestamp time.Time
	Vendor    string
	OrderID   string
	Tax       float64
	Shipping  float64
	Notes     string
}

// RecordPurchase stores a standalone purchase record.
func (s *Service) RecordPurchase(ctx context.Context, in PurchaseInput) (domain.Purchase, error) {
	p := domain.Purchase{
		ID:        s.newID(),
		Timestamp: s.timestamp(in.Timestamp),
		Vendor:    strings.TrimSpace(in.Vendor),
		OrderID:   strings.TrimSpace(in.OrderID),
		Tax:       in.Tax,
		Shipping:  in.Shipping,
		Notes:     strings.TrimSpace(in.Notes),
	}
	err := s.run(ctx, "record_purchase", []domain.Collection{domain.CollectionPurchases}, func(tx domain.Transaction) error {
		if !isFinite(p.Tax) {
			return domain.Invalid("tax", notFinite)
		}
		if !isFinite(p.Shipping) {
			return domain.Invalid("shipping", notFinite)
		}
		if p.Tax < 0 {
			return domain.Invalid("tax", "must not be negative")
		}
		if p.Shipping < 0 {
			return domain.Invalid("shipping", "must not be negative")
		}
		return domain.Put(tx, domain.CollectionPurchases, p)
	}, "purchase", p.ID)
	if err != nil {
		return domain.Purchase{}, err
	}
	return p, nil
}

// ListPurchases returns every purchase, newest first.
func (s *Service) ListPurchases(ctx context.Context) ([]domain.Purchase, error) {
	var out []domain.Purchase
	err := s.view(ctx, "list_purchases", []domain.Collection{domain.CollectionPurchases}, func(r domain.Reader) error {
		var err error
		out, err = domain.List[domain.Purchase](r, domain.CollectionPurchases)
		return err
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, err
}
