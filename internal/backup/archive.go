package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"spoolbook/internal/blob"
)

// ArchivePrefix is the key prefix of every archived backup.
const ArchivePrefix = "backups/"

const archiveStamp = "20060102T150405Z"

// SaveArchive exports the dataset and stores it as a new JSON blob.
func (m *Manager) SaveArchive(ctx context.Context) (blob.Info, error) {
	if m.archive == nil {
		return blob.Info{}, ErrNoArchive
	}
	doc, err := m.Export(ctx)
	if err != nil {
		return blob.Info{}, err
	}
	var buf bytes.Buffer
	if err := WriteDocument(&buf, doc); err != nil {
		return blob.Info{}, err
	}
	base := ArchivePrefix + "spoolbook-" + doc.ExportedAt.Format(archiveStamp)
	info, err := m.putUnique(ctx, base, ".json", buf.Bytes(), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"version": strconv.Itoa(doc.Version)},
	})
	if err != nil {
		return blob.Info{}, err
	}
	m.logger.Info(ctx, "backup archived", "key", info.Key, "size_bytes", info.Size, "driver", m.archive.Driver())
	return info, nil
}

// SaveCSVArchive stores the snapshot and print job tables as CSV blobs.
func (m *Manager) SaveCSVArchive(ctx context.Context) ([]blob.Info, error) {
	if m.archive == nil {
		return nil, ErrNoArchive
	}
	stamp := m.now().UTC().Format(archiveStamp)
	tables := []struct {
		name  string
		build func(context.Context) (Table, error)
	}{
		{"snapshots", m.SnapshotTable},
		{"print-jobs", m.PrintJobTable},
	}
	var out []blob.Info
	for _, t := range tables {
		table, err := t.build(ctx)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := WriteCSV(&buf, table); err != nil {
			return nil, fmt.Errorf("render %s csv: %w", t.name, err)
		}
		info, err := m.putUnique(ctx, ArchivePrefix+t.name+"-"+stamp, ".csv", buf.Bytes(), blob.PutOptions{
			ContentType: "text/csv",
			Metadata:    map[string]string{"rows": strconv.Itoa(len(table.Rows))},
		})
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	m.logger.Info(ctx, "csv exports archived", "files", len(out))
	return out, nil
}

// ListArchives returns the archived JSON backups ordered by key.
func (m *Manager) ListArchives(ctx context.Context) ([]blob.Info, error) {
	if m.archive == nil {
		return nil, ErrNoArchive
	}
	all, err := m.archive.List(ctx, ArchivePrefix)
	if err != nil {
		return nil, err
	}
	out := make([]blob.Info, 0, len(all))
	for _, info := range all {
		if strings.HasSuffix(info.Key, ".json") {
			out = append(out, info)
		}
	}
	return out, nil
}

// PrepareArchiveRestore loads an archived backup into an import plan. The
// plan still has to be confirmed with the archive key before Import.
func (m *Manager) PrepareArchiveRestore(ctx context.Context, key string) (*ImportPlan, error) {
	if m.archive == nil {
		return nil, ErrNoArchive
	}
	_, rc, err := m.archive.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", key, err)
	}
	defer rc.Close()
	return PrepareImport(key, rc)
}

// putUnique stores payload under base+ext, adding a numeric suffix when the
// key is already taken.
func (m *Manager) putUnique(ctx context.Context, base, ext string, payload []byte, opts blob.PutOptions) (blob.Info, error) {
	key := base + ext
	for attempt := 2; ; attempt++ {
		info, err := m.archive.Put(ctx, key, bytes.NewReader(payload), opts)
		if err == nil {
			return info, nil
		}
		if !errors.Is(err, blob.ErrExists) || attempt > 100 {
			return blob.Info{}, fmt.Errorf("store %s: %w", key, err)
		}
		key = fmt.Sprintf("%s-%d%s", base, attempt, ext)
	}
}
