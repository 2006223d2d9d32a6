package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/evapdev/evap/modules/evaluation/domain/entities/taxonomy"
	"github.com/evapdev/evap/pkg/composables"
)

const (
	programSelectQuery = `
SELECT id, name_de, name_en, import_names
FROM programs
ORDER BY name_en`

	programInsertQuery = `
INSERT INTO programs (id, name_de, name_en, import_names)
VALUES ($1, $2, $3, $4)`

	programUpdateQuery = `
UPDATE programs
SET name_de = $2, name_en = $3, import_names = $4
WHERE id = $1`

	courseTypeSelectQuery = `
SELECT id, name_de, name_en, import_names, skip_on_automated_import
FROM course_types
ORDER BY name_en`

	courseTypeInsertQuery = `
INSERT INTO course_types (id, name_de, name_en, import_names, skip_on_automated_import)
VALUES ($1, $2, $3, $4, $5)`

	courseTypeUpdateQuery = `
UPDATE course_types
SET name_de = $2, name_en = $3, import_names = $4, skip_on_automated_import = $5
WHERE id = $1`

	examTypeSelectQuery = `
SELECT id, name_de, name_en, import_names, skip_on_automated_import
FROM exam_types
ORDER BY name_en`

	examTypeInsertQuery = `
INSERT INTO exam_types (id, name_de, name_en, import_names, skip_on_automated_import)
VALUES ($1, $2, $3, $4, $5)`

	examTypeUpdateQuery = `
UPDATE exam_types
SET name_de = $2, name_en = $3, import_names = $4, skip_on_automated_import = $5
WHERE id = $1`
)

type PgTaxonomyRepository struct{}

func NewPgTaxonomyRepository() *PgTaxonomyRepository {
	return &PgTaxonomyRepository{}
}

func (r *PgTaxonomyRepository) Programs(ctx context.Context) ([]*taxonomy.Program, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, programSelectQuery)
	if err != nil {
		return nil, errors.Wrap(err, "query programs")
	}
	defer rows.Close()

	var out []*taxonomy.Program
	for rows.Next() {
		var (
			id             uuid.UUID
			nameDE, nameEN string
			importNames    []string
		)
		if err := rows.Scan(&id, &nameDE, &nameEN, &importNames); err != nil {
			return nil, errors.Wrap(err, "scan program")
		}
		out = append(out, taxonomy.HydrateProgram(id, nameDE, nameEN, importNames))
	}
	return out, rows.Err()
}

func (r *PgTaxonomyRepository) CourseTypes(ctx context.Context) ([]*taxonomy.CourseType, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, courseTypeSelectQuery)
	if err != nil {
		return nil, errors.Wrap(err, "query course types")
	}
	defer rows.Close()

	var out []*taxonomy.CourseType
	for rows.Next() {
		id, nameDE, nameEN, importNames, skip, err := scanTypedTaxonomy(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan course type")
		}
		out = append(out, taxonomy.HydrateCourseType(id, nameDE, nameEN, importNames, skip))
	}
	return out, rows.Err()
}

func (r *PgTaxonomyRepository) ExamTypes(ctx context.Context) ([]*taxonomy.ExamType, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, examTypeSelectQuery)
	if err != nil {
		return nil, errors.Wrap(err, "query exam types")
	}
	defer rows.Close()

	var out []*taxonomy.ExamType
	for rows.Next() {
		id, nameDE, nameEN, importNames, skip, err := scanTypedTaxonomy(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan exam type")
		}
		out = append(out, taxonomy.HydrateExamType(id, nameDE, nameEN, importNames, skip))
	}
	return out, rows.Err()
}

func (r *PgTaxonomyRepository) CreateProgram(ctx context.Context, p *taxonomy.Program) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, programInsertQuery, p.ID(), p.NameDE(), p.NameEN(), p.ImportNames())
	return errors.Wrap(err, "insert program")
}

func (r *PgTaxonomyRepository) CreateCourseType(ctx context.Context, t *taxonomy.CourseType) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, courseTypeInsertQuery, t.ID(), t.NameDE(), t.NameEN(), t.ImportNames(), t.SkipOnAutomatedImport())
	return errors.Wrap(err, "insert course type")
}

func (r *PgTaxonomyRepository) CreateExamType(ctx context.Context, t *taxonomy.ExamType) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, examTypeInsertQuery, t.ID(), t.NameDE(), t.NameEN(), t.ImportNames(), t.SkipOnAutomatedImport())
	return errors.Wrap(err, "insert exam type")
}

func (r *PgTaxonomyRepository) UpdateProgram(ctx context.Context, p *taxonomy.Program) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, programUpdateQuery, p.ID(), p.NameDE(), p.NameEN(), p.ImportNames())
	return errors.Wrap(err, "update program")
}

func (r *PgTaxonomyRepository) UpdateCourseType(ctx context.Context, t *taxonomy.CourseType) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, courseTypeUpdateQuery, t.ID(), t.NameDE(), t.NameEN(), t.ImportNames(), t.SkipOnAutomatedImport())
	return errors.Wrap(err, "update course type")
}

func (r *PgTaxonomyRepository) UpdateExamType(ctx context.Context, t *taxonomy.ExamType) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, examTypeUpdateQuery, t.ID(), t.NameDE(), t.NameEN(), t.ImportNames(), t.SkipOnAutomatedImport())
	return errors.Wrap(err, "update exam type")
}

func scanTypedTaxonomy(row pgx.Row) (uuid.UUID, string, string, []string, bool, error) {
	var (
		id             uuid.UUID
		nameDE, nameEN string
		importNames    []string
		skip           bool
	)
	err := row.Scan(&id, &nameDE, &nameEN, &importNames, &skip)
	return id, nameDE, nameEN, importNames, skip, err
}
