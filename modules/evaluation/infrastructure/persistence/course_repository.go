package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/course"
	"github.com/evapdev/evap/pkg/composables"
)

const (
	courseColumns = `id, semester_id, name_de, name_en, course_type_id, is_graded, program_ids, responsible_ids, cms_id`

	courseSelectByIDQuery = `
SELECT ` + courseColumns + `
FROM courses
WHERE id = $1`

	courseSelectByNameDEQuery = `
SELECT ` + courseColumns + `
FROM courses
WHERE semester_id = $1 AND name_de = $2`

	courseSelectByNameENQuery = `
SELECT ` + courseColumns + `
FROM courses
WHERE semester_id = $1 AND name_en = $2`

	courseSelectByCMSIDQuery = `
SELECT ` + courseColumns + `
FROM courses
WHERE semester_id = $1 AND cms_id = $2`

	courseSelectBySemesterQuery = `
SELECT ` + courseColumns + `
FROM courses
WHERE semester_id = $1
ORDER BY name_en`

	courseInsertQuery = `
INSERT INTO courses (id, semester_id, name_de, name_en, course_type_id, is_graded, program_ids, responsible_ids, cms_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	courseUpdateQuery = `
UPDATE courses
SET name_de = $2,
    name_en = $3,
    course_type_id = $4,
    is_graded = $5,
    program_ids = $6,
    responsible_ids = $7,
    cms_id = $8
WHERE id = $1`

	courseCountQuery = `SELECT COUNT(*) FROM courses`
)

type PgCourseRepository struct{}

func NewPgCourseRepository() *PgCourseRepository {
	return &PgCourseRepository{}
}

func (r *PgCourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*course.Course, error) {
	return r.getOne(ctx, courseSelectByIDQuery, id)
}

func (r *PgCourseRepository) GetByNameDE(ctx context.Context, semesterID uuid.UUID, nameDE string) (*course.Course, error) {
	return r.getOne(ctx, courseSelectByNameDEQuery, semesterID, nameDE)
}

func (r *PgCourseRepository) GetByNameEN(ctx context.Context, semesterID uuid.UUID, nameEN string) (*course.Course, error) {
	return r.getOne(ctx, courseSelectByNameENQuery, semesterID, nameEN)
}

func (r *PgCourseRepository) GetByCMSID(ctx context.Context, semesterID uuid.UUID, cmsID string) (*course.Course, error) {
	return r.getOne(ctx, courseSelectByCMSIDQuery, semesterID, cmsID)
}

func (r *PgCourseRepository) getOne(ctx context.Context, query string, args ...any) (*course.Course, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	c, err := scanCourse(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, course.ErrCourseNotFound
	}
	return c, err
}

func (r *PgCourseRepository) ListBySemester(ctx context.Context, semesterID uuid.UUID) ([]*course.Course, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, courseSelectBySemesterQuery, semesterID)
	if err != nil {
		return nil, errors.Wrap(err, "query semester courses")
	}
	defer rows.Close()

	var out []*course.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan course")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PgCourseRepository) Create(ctx context.Context, c *course.Course) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, courseInsertQuery,
		c.ID(), c.SemesterID(), c.NameDE(), c.NameEN(), c.CourseTypeID(), c.IsGraded(),
		c.ProgramIDs(), c.ResponsibleIDs(), nullableText(c.CMSID()),
	)
	return errors.Wrap(err, "insert course")
}

func (r *PgCourseRepository) Update(ctx context.Context, c *course.Course) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, courseUpdateQuery,
		c.ID(), c.NameDE(), c.NameEN(), c.CourseTypeID(), c.IsGraded(),
		c.ProgramIDs(), c.ResponsibleIDs(), nullableText(c.CMSID()),
	)
	return errors.Wrap(err, "update course")
}

func (r *PgCourseRepository) Count(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, courseCountQuery).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "count courses")
	}
	return count, nil
}

func scanCourse(row pgx.Row) (*course.Course, error) {
	var (
		id, semesterID uuid.UUID
		nameDE, nameEN string
		courseTypeID   uuid.UUID
		isGraded       bool
		programIDs     []uuid.UUID
		responsibleIDs []uuid.UUID
		cmsID          *string
	)
	if err := row.Scan(&id, &semesterID, &nameDE, &nameEN, &courseTypeID, &isGraded, &programIDs, &responsibleIDs, &cmsID); err != nil {
		return nil, err
	}
	return course.Hydrate(id, semesterID, nameDE, nameEN, courseTypeID, isGraded, programIDs, responsibleIDs, textOrEmpty(cmsID)), nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func textOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
