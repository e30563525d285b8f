package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"assettrack/api/internal/patrimony"

	"github.com/google/uuid"
)

// ErrRowPolicyDenied is returned when a mutation matched a row but the
// owner-or-admin predicate filtered it out. The predicate, not the client
// gate, is the actual security boundary.
var ErrRowPolicyDenied = errors.New("row policy denied")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const patrimonyColumns = `id, number, model, registered_by, observations, status, location, custom_location, registered_at, user_id`

func scanPatrimony(row interface{ Scan(...any) error }) (patrimony.Patrimony, error) {
	var p patrimony.Patrimony
	var customLocation sql.NullString
	err := row.Scan(&p.ID, &p.Number, &p.Model, &p.RegisteredBy, &p.Observations,
		&p.Status, &p.Location, &customLocation, &p.RegisteredAt, &p.UserID)
	if err != nil {
		return patrimony.Patrimony{}, err
	}
	p.CustomLocation = customLocation.String
	return p, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// ListPatrimonies returns every record, newest registration first.
func (s *PostgresStore) ListPatrimonies(ctx context.Context) ([]patrimony.Patrimony, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+patrimonyColumns+`
		FROM patrimonies
		ORDER BY registered_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list patrimonies: %w", err)
	}
	defer rows.Close()

	items := []patrimony.Patrimony{}
	for rows.Next() {
		item, err := scanPatrimony(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patrimony: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list patrimonies: %w", err)
	}
	return items, nil
}

// InsertPatrimony creates a record owned by userID. The store assigns the id
// and the registration timestamp.
func (s *PostgresStore) InsertPatrimony(ctx context.Context, fields patrimony.Fields, userID string) (patrimony.Patrimony, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO patrimonies (id, number, model, registered_by, observations, status, location, custom_location, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+patrimonyColumns+`
	`, uuid.NewString(), fields.Number, fields.Model, fields.RegisteredBy, fields.Observations,
		string(fields.Status), string(fields.Location), nullable(fields.CustomLocation), userID)

	item, err := scanPatrimony(row)
	if err != nil {
		return patrimony.Patrimony{}, fmt.Errorf("insert patrimony: %w", err)
	}
	return item, nil
}

// ImportPatrimonies bulk-inserts migrated records, preserving their ids and
// registration timestamps. Conflicting ids are skipped so a retried migration
// never duplicates rows. Returns the number of rows actually inserted.
func (s *PostgresStore) ImportPatrimonies(ctx context.Context, items []patrimony.Patrimony) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, item := range items {
		id := item.ID
		if id == "" {
			id = uuid.NewString()
		}
		registeredAt := item.RegisteredAt
		if registeredAt.IsZero() {
			registeredAt = time.Now().UTC()
		}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO patrimonies (id, number, model, registered_by, observations, status, location, custom_location, registered_at, user_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING
		`, id, item.Number, item.Model, item.RegisteredBy, item.Observations,
			string(item.Status), string(item.Location), nullable(item.CustomLocation), registeredAt, item.UserID)
		if err != nil {
			return 0, fmt.Errorf("import patrimony %s: %w", id, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import tx: %w", err)
	}
	return inserted, nil
}

// UpdatePatrimony rewrites the operator-supplied fields of a record. The
// WHERE predicate enforces the owner-or-admin policy: rows owned by someone
// else are invisible to the update, and the miss is reported as
// ErrRowPolicyDenied. registered_at and user_id are immutable.
func (s *PostgresStore) UpdatePatrimony(ctx context.Context, id string, fields patrimony.Fields, principalID string, elevated bool) (patrimony.Patrimony, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE patrimonies
		SET number=$1, model=$2, registered_by=$3, observations=$4, status=$5, location=$6, custom_location=$7
		WHERE id=$8 AND (user_id=$9 OR $10)
		RETURNING `+patrimonyColumns+`
	`, fields.Number, fields.Model, fields.RegisteredBy, fields.Observations,
		string(fields.Status), string(fields.Location), nullable(fields.CustomLocation),
		id, principalID, elevated)

	item, err := scanPatrimony(row)
	if errors.Is(err, sql.ErrNoRows) {
		return patrimony.Patrimony{}, s.classifyMiss(ctx, id)
	}
	if err != nil {
		return patrimony.Patrimony{}, fmt.Errorf("update patrimony: %w", err)
	}
	return item, nil
}

// DeletePatrimony removes a record under the same owner-or-admin predicate.
func (s *PostgresStore) DeletePatrimony(ctx context.Context, id, principalID string, elevated bool) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM patrimonies WHERE id=$1 AND (user_id=$2 OR $3)
	`, id, principalID, elevated)
	if err != nil {
		return fmt.Errorf("delete patrimony: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return s.classifyMiss(ctx, id)
	}
	return nil
}

// DeletePatrimonies removes every selected record the predicate allows and
// returns how many rows were removed.
func (s *PostgresStore) DeletePatrimonies(ctx context.Context, ids []string, principalID string, elevated bool) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+2)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	args = append(args, principalID, elevated)

	query := fmt.Sprintf(`DELETE FROM patrimonies WHERE id IN (%s) AND (user_id=$%d OR $%d)`,
		strings.Join(placeholders, ","), len(ids)+1, len(ids)+2)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete patrimonies: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// PatrimonyOwners maps each requested id to its owning user.
func (s *PostgresStore) PatrimonyOwners(ctx context.Context, ids []string) (map[string]string, error) {
	owners := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return owners, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, user_id FROM patrimonies WHERE id IN (%s)`, strings.Join(placeholders, ",")),
		args...)
	if err != nil {
		return nil, fmt.Errorf("patrimony owners: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, owner string
		if err := rows.Scan(&id, &owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners[id] = owner
	}
	return owners, rows.Err()
}

// classifyMiss distinguishes a vanished row from one the policy hid.
func (s *PostgresStore) classifyMiss(ctx context.Context, id string) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM patrimonies WHERE id=$1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check patrimony: %w", err)
	}
	if exists {
		return ErrRowPolicyDenied
	}
	return sql.ErrNoRows
}
