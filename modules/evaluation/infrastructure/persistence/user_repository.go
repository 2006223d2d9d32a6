package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/user"
	"github.com/evapdev/evap/pkg/composables"
)

const (
	userColumns = `id, email, title, first_name_given, first_name_chosen, last_name, is_active, is_manager`

	userSelectByEmailQuery = `
SELECT ` + userColumns + `
FROM users
WHERE lower(email) = lower($1)`

	userSelectByNameQuery = `
SELECT ` + userColumns + `
FROM users
WHERE first_name_given = $1 AND last_name = $2`

	userSelectManagersQuery = `
SELECT ` + userColumns + `
FROM users
WHERE is_manager = true
ORDER BY email`

	userInsertQuery = `
INSERT INTO users (id, email, title, first_name_given, first_name_chosen, last_name, is_active, is_manager)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	userUpdateQuery = `
UPDATE users
SET email = $2,
    title = $3,
    first_name_given = $4,
    first_name_chosen = $5,
    last_name = $6,
    is_active = $7,
    is_manager = $8
WHERE id = $1`

	userCountQuery = `SELECT COUNT(*) FROM users`
)

type PgUserRepository struct{}

func NewPgUserRepository() *PgUserRepository {
	return &PgUserRepository{}
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(tx.QueryRow(ctx, userSelectByEmailQuery, user.NormalizeEmail(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, user.ErrUserNotFound
	}
	return u, err
}

func (r *PgUserRepository) FindByName(ctx context.Context, firstNameGiven, lastName string) ([]*user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, userSelectByNameQuery, firstNameGiven, lastName)
	if err != nil {
		return nil, errors.Wrap(err, "query users by name")
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *PgUserRepository) Managers(ctx context.Context) ([]*user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, userSelectManagersQuery)
	if err != nil {
		return nil, errors.Wrap(err, "query managers")
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *PgUserRepository) Create(ctx context.Context, u *user.User) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, userInsertQuery,
		u.ID(), u.Email(), u.Title(), u.FirstNameGiven(), u.FirstNameChosen(), u.LastName(), u.IsActive(), u.IsManager(),
	)
	return errors.Wrap(err, "insert user")
}

func (r *PgUserRepository) Update(ctx context.Context, u *user.User) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, userUpdateQuery,
		u.ID(), u.Email(), u.Title(), u.FirstNameGiven(), u.FirstNameChosen(), u.LastName(), u.IsActive(), u.IsManager(),
	)
	return errors.Wrap(err, "update user")
}

func (r *PgUserRepository) Count(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, userCountQuery).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "count users")
	}
	return count, nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var (
		id                  uuid.UUID
		email, title        string
		firstGiven          string
		firstChosen         string
		lastName            string
		isActive, isManager bool
	)
	if err := row.Scan(&id, &email, &title, &firstGiven, &firstChosen, &lastName, &isActive, &isManager); err != nil {
		return nil, err
	}
	return user.Hydrate(id, email, title, firstGiven, firstChosen, lastName, isActive, isManager), nil
}

func collectUsers(rows pgx.Rows) ([]*user.User, error) {
	var out []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
