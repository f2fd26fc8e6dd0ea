package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"spoolbook/pkg/domain"
)

// ResetToken is the literal a caller must type to confirm a reset. It is
// matched case-insensitively after trimming whitespace.
const ResetToken = "RESET"

// ImportPlan is a validated backup document waiting for confirmation.
// Nothing is written until the plan is confirmed and applied.
type ImportPlan struct {
	Filename  string
	Document  Document
	confirmed bool
}

// Counts reports the records per collection the import will write.
func (p *ImportPlan) Counts() map[domain.Collection]int { return p.Document.Counts() }

// Confirm enables the plan once the caller repeats its filename.
func (p *ImportPlan) Confirm(filename string) error {
	if strings.TrimSpace(filename) != p.Filename {
		return fmt.Errorf("%w: type %q to replace the dataset", domain.ErrConfirmationRequired, p.Filename)
	}
	p.confirmed = true
	return nil
}

// Confirmed reports whether Confirm succeeded.
func (p *ImportPlan) Confirmed() bool { return p.confirmed }

// PrepareImport parses and validates a backup document. Every structural
// problem is reported as a *domain.ImportFormatError before any data is touched.
func PrepareImport(filename string, r io.Reader) (*ImportPlan, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read backup %s: %w", filename, err)
	}
	var envelope struct {
		ExportedAt json.RawMessage            `json:"exportedAt"`
		Version    *int                       `json:"version"`
		Data       map[string]json.RawMessage `json:"data"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&envelope); err != nil {
		return nil, &domain.ImportFormatError{Index: -1, Reason: fmt.Sprintf("not a backup document: %v", err)}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, &domain.ImportFormatError{Index: -1, Reason: "unexpected data after the backup document"}
	}
	if envelope.Data == nil {
		return nil, &domain.ImportFormatError{Index: -1, Reason: "missing data object"}
	}
	doc := Document{Version: DocumentVersion, Data: make(map[domain.Collection][]json.RawMessage, len(envelope.Data))}
	if envelope.Version != nil {
		if *envelope.Version < 1 || *envelope.Version > DocumentVersion {
			return nil, &domain.ImportFormatError{Index: -1, Reason: fmt.Sprintf("unsupported version %d", *envelope.Version)}
		}
		doc.Version = *envelope.Version
	}
	if len(envelope.ExportedAt) > 0 && string(envelope.ExportedAt) != "null" {
		if err := json.Unmarshal(envelope.ExportedAt, &doc.ExportedAt); err != nil {
			return nil, &domain.ImportFormatError{Index: -1, Reason: "exportedAt is not a timestamp"}
		}
	}
	for name, body := range envelope.Data {
		c := domain.Collection(name)
		records, err := validateCollection(c, body)
		if err != nil {
			return nil, err
		}
		doc.Data[c] = records
	}
	return &ImportPlan{Filename: strings.TrimSpace(filename), Document: doc}, nil
}

func validateCollection(c domain.Collection, body json.RawMessage) ([]json.RawMessage, error) {
	schema, ok := domain.SchemaFor(c)
	if !ok {
		return nil, &domain.ImportFormatError{Collection: c, Index: -1, Reason: "unknown collection"}
	}
	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil || records == nil {
		return nil, &domain.ImportFormatError{Collection: c, Index: -1, Reason: "must be an array of records"}
	}
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(rec, &fields); err != nil || fields == nil {
			return nil, &domain.ImportFormatError{Collection: c, Index: i, Reason: "record is not an object"}
		}
		var key string
		if err := json.Unmarshal(fields[schema.KeyField], &key); err != nil || key == "" {
			return nil, &domain.ImportFormatError{Collection: c, Index: i, Reason: fmt.Sprintf("%s must be a non-empty string", schema.KeyField)}
		}
		if _, dup := seen[key]; dup {
			return nil, &domain.ImportFormatError{Collection: c, Index: i, Reason: fmt.Sprintf("duplicate %s %q", schema.KeyField, key)}
		}
		seen[key] = struct{}{}
	}
	return records, nil
}

// Import replaces every collection present in the plan with the plan's
// records in one transaction. Collections absent from the document are left
// alone. Records are written as-is; the invariant rules are not re-run.
func (m *Manager) Import(ctx context.Context, plan *ImportPlan) (map[domain.Collection]int, error) {
	if plan == nil || !plan.confirmed {
		return nil, fmt.Errorf("%w: import must be confirmed", domain.ErrConfirmationRequired)
	}
	var scope []domain.Collection
	for _, c := range domain.Collections {
		if _, ok := plan.Document.Data[c]; ok {
			scope = append(scope, c)
		}
	}
	counts := plan.Counts()
	if len(scope) == 0 {
		m.logger.Warn(ctx, "import contained no collections", "file", plan.Filename)
		return counts, nil
	}
	err := m.store.RunInTransaction(ctx, scope, func(tx domain.Transaction) error {
		for _, c := range scope {
			if err := tx.Clear(c); err != nil {
				return err
			}
			for i, rec := range plan.Document.Data[c] {
				if _, err := tx.Write(c, rec); err != nil {
					return &domain.ImportFormatError{Collection: c, Index: i, Reason: err.Error()}
				}
			}
		}
		return nil
	})
	if err != nil {
		m.logger.Error(ctx, "import failed", "file", plan.Filename, "error", err)
		return nil, err
	}
	m.logger.Warn(ctx, "dataset replaced from backup", "file", plan.Filename, "counts", counts)
	return counts, nil
}

// Reset wipes every collection. The token must match ResetToken.
func (m *Manager) Reset(ctx context.Context, token string) (map[domain.Collection]int, error) {
	if !strings.EqualFold(strings.TrimSpace(token), ResetToken) {
		return nil, fmt.Errorf("%w: type %s to wipe the dataset", domain.ErrConfirmationRequired, ResetToken)
	}
	counts := make(map[domain.Collection]int, len(domain.Collections))
	err := m.store.RunInTransaction(ctx, domain.Collections, func(tx domain.Transaction) error {
		for _, c := range domain.Collections {
			records, err := tx.ReadAll(c)
			if err != nil {
				return err
			}
			counts[c] = len(records)
			if err := tx.Clear(c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		m.logger.Error(ctx, "reset failed", "error", err)
		return nil, err
	}
	m.logger.Warn(ctx, "dataset reset", "counts", counts)
	return counts, nil
}
