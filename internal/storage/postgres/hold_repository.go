package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jvaldes/stockhold/internal/domain"
)

// HoldRepository backs the expiry sweep: the keyset-paginated candidate scan
// and the per-hold locked reclamation.
type HoldRepository struct {
	pool *pgxpool.Pool
}

func NewHoldRepository(pool *pgxpool.Pool) *HoldRepository {
	return &HoldRepository{pool: pool}
}

func (r *HoldRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// ListExpiredHolds pages through unreclaimed expired holds ordered by id.
// afterID is the keyset cursor; empty means start from the beginning.
func (r *HoldRepository) ListExpiredHolds(ctx context.Context, now time.Time, afterID string, limit int) ([]domain.Hold, error) {
	baseQuery := `SELECT ` + holdColumns + ` FROM holds WHERE expires_at <= $1 AND is_used = FALSE`

	var (
		rows pgx.Rows
		err  error
	)
	if afterID == "" {
		rows, err = query(ctx, r.pool, baseQuery+` ORDER BY id LIMIT $2`, now, limit)
	} else {
		rows, err = query(ctx, r.pool, baseQuery+` AND id > $2 ORDER BY id LIMIT $3`, now, afterID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}
	defer rows.Close()

	var holds []domain.Hold
	for rows.Next() {
		hold, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hold: %w", err)
		}
		holds = append(holds, hold)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}
	return holds, nil
}

func (r *HoldRepository) GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error) {
	q := `SELECT ` + holdColumns + ` FROM holds WHERE id = $1 FOR UPDATE`
	hold, err := scanHold(queryRow(ctx, r.pool, q, holdID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Hold{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Hold{}, domain.ErrHoldNotFound
		}
		return domain.Hold{}, fmt.Errorf("get hold for update: %w", err)
	}
	return hold, nil
}

func (r *HoldRepository) MarkHoldUsed(ctx context.Context, holdID string) error {
	const stmt = `UPDATE holds SET is_used = TRUE WHERE id = $1`

	tag, err := exec(ctx, r.pool, stmt, holdID)
	if err != nil {
		return fmt.Errorf("mark hold used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrHoldNotFound
	}
	return nil
}
