package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/evapdev/evap/modules/evaluation/domain/entities/semester"
	"github.com/evapdev/evap/pkg/composables"
)

const (
	semesterSelectByIDQuery = `
SELECT id, name_de, name_en, default_course_end_date, is_active
FROM semesters
WHERE id = $1`

	semesterSelectActiveQuery = `
SELECT id, name_de, name_en, default_course_end_date, is_active
FROM semesters
WHERE is_active = true
LIMIT 1`

	semesterInsertQuery = `
INSERT INTO semesters (id, name_de, name_en, default_course_end_date, is_active)
VALUES ($1, $2, $3, $4, $5)`
)

type PgSemesterRepository struct{}

func NewPgSemesterRepository() *PgSemesterRepository {
	return &PgSemesterRepository{}
}

func (r *PgSemesterRepository) GetByID(ctx context.Context, id uuid.UUID) (*semester.Semester, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	s, err := scanSemester(tx.QueryRow(ctx, semesterSelectByIDQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, semester.ErrSemesterNotFound
	}
	return s, err
}

func (r *PgSemesterRepository) Active(ctx context.Context) (*semester.Semester, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	s, err := scanSemester(tx.QueryRow(ctx, semesterSelectActiveQuery))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, semester.ErrNoActiveSemester
	}
	return s, err
}

func (r *PgSemesterRepository) Create(ctx context.Context, s *semester.Semester) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, semesterInsertQuery,
		s.ID(), s.NameDE(), s.NameEN(), s.DefaultCourseEndDate(), s.IsActive(),
	)
	return errors.Wrap(err, "insert semester")
}

func scanSemester(row pgx.Row) (*semester.Semester, error) {
	var (
		id             uuid.UUID
		nameDE, nameEN string
		courseEnd      time.Time
		isActive       bool
	)
	if err := row.Scan(&id, &nameDE, &nameEN, &courseEnd, &isActive); err != nil {
		return nil, err
	}
	return semester.Hydrate(id, nameDE, nameEN, courseEnd, isActive), nil
}
