// Package backup exports the local database to a portable file and restores
// it again.
//
// Two formats are supported. JSONL writes one Entry per line and is the
// format to keep backups in. YAML writes a single Snapshot document for
// reading by humans; it can be restored too. The format is chosen from the
// file extension: .yaml or .yml selects YAML, anything else JSONL.
package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/liftlog/repsync/internal/local/db"
)

// Format selects the backup file encoding.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// FormatFor picks a format from a file name.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSONL
	}
}

// EntryKind names what an Entry holds.
type EntryKind string

const (
	KindRecord  EntryKind = "record"
	KindRestDay EntryKind = "rest_day"
	KindBinding EntryKind = "binding"
	KindValue   EntryKind = "value"
)

// Entry is one exported item. Which fields are set depends on Kind.
type Entry struct {
	Kind EntryKind `json:"kind" yaml:"kind"`

	// record
	Collection string          `json:"collection,omitempty" yaml:"collection,omitempty"`
	ID         string          `json:"id,omitempty" yaml:"id,omitempty"`
	Version    int64           `json:"version,omitempty" yaml:"version,omitempty"`
	Data       json.RawMessage `json:"data,omitempty" yaml:"-"`
	Doc        any             `json:"-" yaml:"data,omitempty"`
	CreatedAt  time.Time       `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`

	// rest_day
	LoggedFor string `json:"logged_for,omitempty" yaml:"logged_for,omitempty"`

	// binding
	LocalID       string `json:"local_id,omitempty" yaml:"local_id,omitempty"`
	DatabaseID    string `json:"database_id,omitempty" yaml:"database_id,omitempty"`
	PushedVersion int64  `json:"pushed_version,omitempty" yaml:"pushed_version,omitempty"`

	// value
	Key   string `json:"key,omitempty" yaml:"key,omitempty"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// Snapshot is the YAML document form of a backup.
type Snapshot struct {
	ExportedAt time.Time `yaml:"exported_at"`
	Entries    []*Entry  `yaml:"entries"`
}

// ExportOptions contains configuration for an export.
type ExportOptions struct {
	Path   string // Output file; written atomically
	Format Format // Defaults to FormatFor(Path)
}

// ExportResult contains statistics about an export.
type ExportResult struct {
	Path     string
	Format   Format
	Records  int
	RestDays int
	Bindings int
	Values   int
}

// Collect reads every exportable item from the database: records grouped by
// collection in insertion order, then the rest day log, identity bindings
// with their pushed versions, and scalar values.
func Collect(ctx context.Context, database *db.DB) ([]*Entry, error) {
	var entries []*Entry

	counts, err := database.Collections(ctx)
	if err != nil {
		return nil, err
	}
	collections := make([]string, 0, len(counts))
	for name := range counts {
		collections = append(collections, name)
	}
	sort.Strings(collections)

	for _, name := range collections {
		recs, err := database.ListRecords(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			entries = append(entries, &Entry{
				Kind:       KindRecord,
				Collection: rec.Collection,
				ID:         rec.ID,
				Version:    rec.Version,
				Data:       json.RawMessage(rec.Data),
				CreatedAt:  rec.CreatedAt,
				UpdatedAt:  rec.UpdatedAt,
			})
		}
	}

	rest, err := database.ListRestDays(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range rest {
		entries = append(entries, &Entry{
			Kind:      KindRestDay,
			LoggedFor: e.LoggedFor,
			Data:      json.RawMessage(e.Data),
			CreatedAt: e.CreatedAt,
		})
	}

	bindings, err := database.ListBindings(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range bindings {
		pushed, err := database.GetPushedVersion(ctx, b.LocalID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &Entry{
			Kind:          KindBinding,
			LocalID:       b.LocalID,
			DatabaseID:    b.DatabaseID,
			PushedVersion: pushed,
			CreatedAt:     b.BoundAt,
		})
	}

	values, err := database.Values(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		entries = append(entries, &Entry{Kind: KindValue, Key: k, Value: values[k]})
	}

	return entries, nil
}

// Export writes a backup of database to opts.Path.
func Export(ctx context.Context, database *db.DB, opts ExportOptions) (*ExportResult, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("export path is required")
	}
	if opts.Format == "" {
		opts.Format = FormatFor(opts.Path)
	}

	entries, err := Collect(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("failed to read database: %w", err)
	}

	result := &ExportResult{Path: opts.Path, Format: opts.Format}
	for _, e := range entries {
		switch e.Kind {
		case KindRecord:
			result.Records++
		case KindRestDay:
			result.RestDays++
		case KindBinding:
			result.Bindings++
		case KindValue:
			result.Values++
		}
	}

	var data []byte
	switch opts.Format {
	case FormatJSONL:
		data, err = encodeJSONL(entries)
	case FormatYAML:
		data, err = encodeYAML(entries)
	default:
		return nil, fmt.Errorf("unknown backup format %q", opts.Format)
	}
	if err != nil {
		return nil, err
	}

	if err := writeAtomic(opts.Path, data); err != nil {
		return nil, err
	}
	return result, nil
}

func encodeJSONL(entries []*Entry) ([]byte, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return nil, fmt.Errorf("failed to encode %s entry: %w", e.Kind, err)
		}
	}
	return []byte(sb.String()), nil
}

func encodeYAML(entries []*Entry) ([]byte, error) {
	for _, e := range entries {
		if len(e.Data) == 0 {
			continue
		}
		if err := json.Unmarshal(e.Data, &e.Doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s %s: %w", e.Kind, e.ID, err)
		}
	}
	data, err := yaml.Marshal(&Snapshot{ExportedAt: time.Now().UTC(), Entries: entries})
	if err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	return data, nil
}

// writeAtomic writes data to path via a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// ReadFile parses a backup file in either format.
func ReadFile(path string) ([]*Entry, error) {
	// #nosec G304 - controlled path from CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	defer file.Close()

	if FormatFor(path) == FormatYAML {
		var snap Snapshot
		if err := yaml.NewDecoder(file).Decode(&snap); err != nil {
			return nil, fmt.Errorf("invalid YAML backup: %w", err)
		}
		for _, e := range snap.Entries {
			if e.Doc == nil {
				continue
			}
			raw, err := json.Marshal(e.Doc)
			if err != nil {
				return nil, fmt.Errorf("failed to re-encode %s %s: %w", e.Kind, e.ID, err)
			}
			e.Data = raw
			e.Doc = nil
		}
		return snap.Entries, nil
	}

	var entries []*Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("invalid JSON at line %d: %w", lineNum, err)
		}
		entries = append(entries, &e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	return entries, nil
}
