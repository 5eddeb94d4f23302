package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/hotel-operations/internal/model"
)

// TableRepo provides access to the dining_tables table.
type TableRepo struct {
    db *sql.DB
}

// NewTableRepo constructs a TableRepo given a DB handle.
func NewTableRepo(db *sql.DB) *TableRepo { return &TableRepo{db: db} }

// GetByID loads a table.  ErrNotFound is returned for unknown IDs.
func (r *TableRepo) GetByID(ctx context.Context, id uint64) (*model.DiningTable, error) {
    const q = `SELECT id, table_number, status, created_at, updated_at FROM dining_tables WHERE id = ?`
    var t model.DiningTable
    err := r.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.TableNumber, &t.Status, &t.CreatedAt, &t.UpdatedAt)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    return &t, nil
}

// UpdateStatus writes a table's status and returns the fresh row.
func (r *TableRepo) UpdateStatus(ctx context.Context, id uint64, status string) (*model.DiningTable, error) {
    res, err := r.db.ExecContext(ctx, `UPDATE dining_tables SET status = ? WHERE id = ?`, status, id)
    if err != nil {
        return nil, err
    }
    if n, err := res.RowsAffected(); err == nil && n == 0 {
        if _, err := r.GetByID(ctx, id); err != nil {
            return nil, err
        }
    }
    return r.GetByID(ctx, id)
}
