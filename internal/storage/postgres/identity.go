package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carekitchen/mealorder/internal/domain/identity"
)

const getIdentityByKeyHashSQL = `SELECT id, name, key_hash, role, ward, bed
	FROM identities WHERE key_hash = $1 AND active`

var _ identity.Repository = (*IdentityRepository)(nil)

// IdentityRepository provides identity lookups backed by PostgreSQL.
type IdentityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository returns an IdentityRepository that uses the given pool.
func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// FindByKeyHash looks up an active identity by its HMAC-SHA256 API key hash.
// Returns identity.ErrNotFound when no matching active identity exists.
func (r *IdentityRepository) FindByKeyHash(ctx context.Context, hash string) (*identity.Identity, error) {
	rows, err := r.pool.Query(ctx, getIdentityByKeyHashSQL, hash)
	if err != nil {
		return nil, fmt.Errorf("finding identity by key hash: %w", err)
	}

	id, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (identity.Identity, error) {
		var (
			i    identity.Identity
			role string
		)
		err := row.Scan(&i.ID, &i.Name, &i.KeyHash, &role, &i.Ward, &i.Bed)
		i.Role = identity.Role(role)
		return i, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrNotFound
		}
		return nil, fmt.Errorf("finding identity by key hash: %w", err)
	}
	return &id, nil
}
