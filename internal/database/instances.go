package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/relayarr/relayarr/internal/arr"
)

const instanceColumns = "id, name, base_url, api_key, service, is_default, synced_instances, quality_profile, root_folder"

func scanInstance(row interface{ Scan(dest ...any) error }) (arr.Instance, error) {
	var (
		inst   arr.Instance
		synced string
	)
	err := row.Scan(&inst.ID, &inst.Name, &inst.BaseURL, &inst.APIKey, &inst.Service,
		&inst.IsDefault, &synced, &inst.QualityProfile, &inst.RootFolder)
	if err != nil {
		return arr.Instance{}, err
	}
	inst.SyncedInstances = decodeInt64s(synced)
	return inst, nil
}

// AllInstances returns every configured instance of a service type,
// ordered by id so creation order is stable in API listings.
func (s *Store) AllInstances(ctx context.Context, service arr.ServiceType) ([]arr.Instance, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+instanceColumns+" FROM arr_instances WHERE service = ? ORDER BY id", service)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s instances: %w", service, err)
	}
	defer rows.Close()

	var out []arr.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// GetInstance returns one instance by id, scoped to a service type.
func (s *Store) GetInstance(ctx context.Context, service arr.ServiceType, id int64) (*arr.Instance, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+instanceColumns+" FROM arr_instances WHERE service = ? AND id = ?", service, id)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s instance %d", arr.ErrInstanceNotFound, service, id)
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// DefaultInstance returns the default instance for a service type, or
// nil when none is flagged. The single-default invariant is enforced on
// write, so at most one row can match.
func (s *Store) DefaultInstance(ctx context.Context, service arr.ServiceType) (*arr.Instance, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+instanceColumns+" FROM arr_instances WHERE service = ? AND is_default = 1", service)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// CreateInstance inserts an instance. When the new row is flagged
// default, sibling defaults of the same service are cleared in the same
// transaction.
func (s *Store) CreateInstance(ctx context.Context, inst arr.Instance) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if inst.IsDefault {
		if _, err := tx.ExecContext(ctx,
			"UPDATE arr_instances SET is_default = 0 WHERE service = ?", inst.Service); err != nil {
			return 0, fmt.Errorf("failed to clear sibling defaults: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO arr_instances (name, base_url, api_key, service, is_default, synced_instances, quality_profile, root_folder)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.Name, inst.BaseURL, inst.APIKey, inst.Service, inst.IsDefault,
		encodeJSON(inst.SyncedInstances), inst.QualityProfile, inst.RootFolder)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s instance: %w", inst.Service, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// UpdateInstance persists all mutable fields of an instance. Promoting
// an instance to default demotes its siblings transactionally.
func (s *Store) UpdateInstance(ctx context.Context, inst arr.Instance) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if inst.IsDefault {
		if _, err := tx.ExecContext(ctx,
			"UPDATE arr_instances SET is_default = 0 WHERE service = ? AND id != ?",
			inst.Service, inst.ID); err != nil {
			return fmt.Errorf("failed to clear sibling defaults: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE arr_instances
		SET name = ?, base_url = ?, api_key = ?, is_default = ?, synced_instances = ?,
		    quality_profile = ?, root_folder = ?, updated_at = CURRENT_TIMESTAMP
		WHERE service = ? AND id = ?`,
		inst.Name, inst.BaseURL, inst.APIKey, inst.IsDefault, encodeJSON(inst.SyncedInstances),
		inst.QualityProfile, inst.RootFolder, inst.Service, inst.ID)
	if err != nil {
		return fmt.Errorf("failed to update %s instance %d: %w", inst.Service, inst.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s instance %d", arr.ErrInstanceNotFound, inst.Service, inst.ID)
	}
	return tx.Commit()
}

// DeleteInstance removes an instance and its junction rows. References
// from watchlist rows and synced-instance lists are cleaned up so
// nothing dangles at the next sync pass.
func (s *Store) DeleteInstance(ctx context.Context, service arr.ServiceType, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM arr_instances WHERE service = ? AND id = ?", service, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s instance %d: %w", service, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s instance %d", arr.ErrInstanceNotFound, service, id)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM watchlist_instance_junctions WHERE instance_id = ? AND service = ?", id, service); err != nil {
		return err
	}

	column := "radarr_instance_id"
	if service == arr.ServiceSonarr {
		column = "sonarr_instance_id"
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE watchlist_items SET "+column+" = NULL WHERE "+column+" = ?", id); err != nil {
		return err
	}

	// Strip the deleted id from every sibling's synced-instance list.
	siblings, err := tx.QueryContext(ctx,
		"SELECT id, synced_instances FROM arr_instances WHERE service = ?", service)
	if err != nil {
		return err
	}
	type patch struct {
		id     int64
		synced []int64
	}
	var patches []patch
	for siblings.Next() {
		var (
			sibID int64
			raw   string
		)
		if err := siblings.Scan(&sibID, &raw); err != nil {
			siblings.Close()
			return err
		}
		synced := decodeInt64s(raw)
		kept := synced[:0]
		for _, sid := range synced {
			if sid != id {
				kept = append(kept, sid)
			}
		}
		if len(kept) != len(synced) {
			patches = append(patches, patch{id: sibID, synced: kept})
		}
	}
	if err := siblings.Err(); err != nil {
		siblings.Close()
		return err
	}
	siblings.Close()

	for _, p := range patches {
		if _, err := tx.ExecContext(ctx,
			"UPDATE arr_instances SET synced_instances = ? WHERE id = ?", encodeJSON(p.synced), p.id); err != nil {
			return err
		}
	}

	return tx.Commit()
}
