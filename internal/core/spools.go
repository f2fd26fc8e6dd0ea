package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"spoolbook/pkg/domain"
)

// PrintJobInput describes one print. At least one of SpoolID and SkuID is
// required; a job on a spool inherits the spool's SKU. An empty Outcome
// means success and a zero Timestamp means now.
type PrintJobInput struct {
	SpoolID   string
	SkuID     string
	GramsUsed float64
	Outcome   domain.PrintOutcome
	ScrapG    float64
	Notes     string
	Timestamp time.Time
}

// CreateSpool registers a sealed spool of the SKU holding startingWeight grams.
func (s *Service) CreateSpool(ctx context.Context, skuID string, startingWeight float64) (domain.Spool, error) {
	spool := domain.Spool{
		ID:                     s.newID(),
		FilamentSkuID:          skuID,
		StartingWeightG:        startingWeight,
		CurrentEstimatedWeight: startingWeight,
		Status:                 domain.SpoolSealed,
		CreatedAt:              s.now().UTC(),
	}
	scope := []domain.Collection{domain.CollectionFilamentSkus, domain.CollectionSpools}
	err := s.run(ctx, "create_spool", scope, func(tx domain.Transaction) error {
		if !isFinite(startingWeight) {
			return domain.Invalid("startingWeight_g", notFinite)
		}
		if startingWeight <= 0 {
			return domain.Invalid("startingWeight_g", "must be greater than zero")
		}
		if _, err := requireSku(tx, skuID); err != nil {
			return err
		}
		return domain.Put(tx, domain.CollectionSpools, spool)
	}, "spool", spool.ID, "sku", skuID)
	if err != nil {
		return domain.Spool{}, err
	}
	return spool, nil
}

// RecordPrintJob stores the job and depletes its spool in one transaction.
func (s *Service) RecordPrintJob(ctx context.Context, in PrintJobInput) (domain.PrintJob, error) {
	job := domain.PrintJob{
		ID:            s.newID(),
		Timestamp:     s.timestamp(in.Timestamp),
		FilamentSkuID: strings.TrimSpace(in.SkuID),
		SpoolID:       strings.TrimSpace(in.SpoolID),
		GramsUsed:     in.GramsUsed,
		Outcome:       in.Outcome,
		ScrapG:        in.ScrapG,
		Notes:         strings.TrimSpace(in.Notes),
	}
	if job.Outcome == "" {
		job.Outcome = domain.OutcomeSuccess
	}
	scope := []domain.Collection{domain.CollectionFilamentSkus, domain.CollectionSpools, domain.CollectionPrintJobs}
	err := s.run(ctx, "record_print_job", scope, func(tx domain.Transaction) error {
		if err := validatePrintJob(job); err != nil {
			return err
		}
		if job.SpoolID != "" {
			spool, err := requireSpool(tx, job.SpoolID)
			if err != nil {
				return err
			}
			switch {
			case job.FilamentSkuID == "":
				job.FilamentSkuID = spool.FilamentSkuID
			case job.FilamentSkuID != spool.FilamentSkuID:
				return domain.Invalid("filamentSkuId", "does not match the spool's SKU")
			}
			spool.CurrentEstimatedWeight, spool.Status = domain.Deplete(spool.CurrentEstimatedWeight, spool.Status, job.GramsUsed, s.defaults.LowThresholdG)
			if err := domain.Put(tx, domain.CollectionSpools, spool); err != nil {
				return err
			}
		}
		if _, err := requireSku(tx, job.FilamentSkuID); err != nil {
			return err
		}
		return domain.Put(tx, domain.CollectionPrintJobs, job)
	}, "job", job.ID, "spool", job.SpoolID)
	if err != nil {
		return domain.PrintJob{}, err
	}
	return job, nil
}

// ListSpools returns spools, optionally restricted to one SKU, oldest first.
func (s *Service) ListSpools(ctx context.Context, skuID string) ([]domain.Spool, error) {
	var out []domain.Spool
	err := s.view(ctx, "list_spools", []domain.Collection{domain.CollectionSpools}, func(r domain.Reader) error {
		var err error
		if skuID == "" {
			out, err = domain.List[domain.Spool](r, domain.CollectionSpools)
		} else {
			out, err = domain.ListBy[domain.Spool](r, domain.CollectionSpools, domain.IndexFilamentSku, skuID)
		}
		return err
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

// ListPrintJobs returns jobs, optionally restricted to one SKU, newest first.
func (s *Service) ListPrintJobs(ctx context.Context, skuID string) ([]domain.PrintJob, error) {
	var out []domain.PrintJob
	err := s.view(ctx, "list_print_jobs", []domain.Collection{domain.CollectionPrintJobs}, func(r domain.Reader) error {
		var err error
		if skuID == "" {
			out, err = domain.List[domain.PrintJob](r, domain.CollectionPrintJobs)
		} else {
			out, err = domain.ListBy[domain.PrintJob](r, domain.CollectionPrintJobs, domain.IndexFilamentSku, skuID)
		}
		return err
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, err
}

func validatePrintJob(job domain.PrintJob) error {
	switch {
	case job.SpoolID == "" && job.FilamentSkuID == "":
		return domain.Invalid("spoolId", "or filamentSkuId is required")
	case !isFinite(job.GramsUsed):
		return domain.Invalid("gramsUsed", notFinite)
	case !isFinite(job.ScrapG):
		return domain.Invalid("scrap_g", notFinite)
	case job.GramsUsed <= 0:
		return domain.Invalid("gramsUsed", "must be greater than zero")
	case job.ScrapG < 0:
		return domain.Invalid("scrap_g", "must not be negative")
	case !job.Outcome.Valid():
		return domain.Invalid("outcome", "must be success, fail or partial")
	}
	return nil
}

func requireSpool(r domain.Reader, id string) (domain.Spool, error) {
	spool, ok, err := domain.Get[domain.Spool](r, domain.CollectionSpools, id)
	if err != nil {
		return domain.Spool{}, err
	}
	if !ok {
		return domain.Spool{}, domain.ErrNotFound{Collection: domain.CollectionSpools, ID: id}
	}
	return spool, nil
}
