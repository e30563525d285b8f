// Package migration performs the one-time transfer of records from the
// pre-cloud local store into the shared remote store.
package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"assettrack/api/internal/patrimony"

	"github.com/rs/zerolog"
)

// Fixed names carried over from the legacy client-local storage keys.
const (
	legacyFileName = "patrimonies.json"
	markerFileName = "patrimonies_migrated_to_cloud"
)

// ErrMigrationFailed wraps any failure that should leave the marker unset so
// the next session start retries the migration.
var ErrMigrationFailed = errors.New("migration failed")

// LegacyRecord is the record shape of the local-only store. Identifiers are
// preserved through migration so a retry after a partial run cannot
// duplicate rows.
type LegacyRecord struct {
	ID             string    `json:"id"`
	Number         string    `json:"number"`
	Model          string    `json:"model"`
	RegisteredBy   string    `json:"registeredBy"`
	RegisteredAt   time.Time `json:"registeredAt"`
	Observations   string    `json:"observations"`
	Status         string    `json:"status"`
	Location       string    `json:"location"`
	CustomLocation string    `json:"customLocation,omitempty"`
}

// Importer is the slice of the record repository the runner needs.
type Importer interface {
	ImportPatrimonies(ctx context.Context, items []patrimony.Patrimony) (int, error)
}

// Result reports what a run did.
type Result struct {
	Migrated int
	Skipped  bool
}

type Runner struct {
	stateDir string
	importer Importer
	log      zerolog.Logger
}

func NewRunner(stateDir string, importer Importer, log zerolog.Logger) *Runner {
	return &Runner{stateDir: stateDir, importer: importer, log: log}
}

// RunOnce migrates the legacy store into the remote store, owned by userID.
// It is idempotent: the persisted marker short-circuits later runs, and the
// marker is only written after the bulk insert succeeded (or there was
// nothing to insert). Inserts preserve legacy ids and are skipped on
// conflict, so a crash between insert and marker write is retried safely.
func (r *Runner) RunOnce(ctx context.Context, userID string) (Result, error) {
	if r.markerSet() {
		return Result{Skipped: true}, nil
	}

	raw, err := os.ReadFile(r.legacyPath())
	if errors.Is(err, os.ErrNotExist) {
		if err := r.setMarker(); err != nil {
			return Result{}, err
		}
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: read legacy store: %v", ErrMigrationFailed, err)
	}

	var legacy []LegacyRecord
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return Result{}, fmt.Errorf("%w: parse legacy store: %v", ErrMigrationFailed, err)
	}
	if len(legacy) == 0 {
		if err := r.setMarker(); err != nil {
			return Result{}, err
		}
		return Result{}, nil
	}

	items := make([]patrimony.Patrimony, 0, len(legacy))
	for _, record := range legacy {
		items = append(items, patrimony.Patrimony{
			ID:             record.ID,
			Number:         record.Number,
			Model:          record.Model,
			RegisteredBy:   record.RegisteredBy,
			RegisteredAt:   record.RegisteredAt,
			Observations:   record.Observations,
			Status:         patrimony.Status(record.Status),
			Location:       patrimony.Location(record.Location),
			CustomLocation: record.CustomLocation,
			UserID:         userID,
		})
	}

	migrated, err := r.importer.ImportPatrimonies(ctx, items)
	if err != nil {
		// Marker stays unset so the next session start retries.
		return Result{}, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	if err := r.setMarker(); err != nil {
		return Result{}, err
	}
	r.log.Info().Int("migrated", migrated).Msg("legacy records migrated to cloud")
	return Result{Migrated: migrated}, nil
}

func (r *Runner) legacyPath() string {
	return filepath.Join(r.stateDir, legacyFileName)
}

func (r *Runner) markerPath() string {
	return filepath.Join(r.stateDir, markerFileName)
}

func (r *Runner) markerSet() bool {
	_, err := os.Stat(r.markerPath())
	return err == nil
}

func (r *Runner) setMarker() error {
	if err := os.MkdirAll(r.stateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(r.markerPath(), []byte("true"), 0o644); err != nil {
		return fmt.Errorf("write migration marker: %w", err)
	}
	return nil
}
