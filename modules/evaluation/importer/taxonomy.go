package importer

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/evapdev/evap/modules/evaluation/domain/entities/taxonomy"
)

// TaxonomyResolver answers name lookups against the stored taxonomies.
// All three lists are loaded once; lookups are case-insensitive over the
// import name aliases. Spreadsheet ingestion only looks names up, the CMS
// importer additionally creates missing entries on demand.
type TaxonomyResolver struct {
	programs    []*taxonomy.Program
	courseTypes []*taxonomy.CourseType
	examTypes   []*taxonomy.ExamType

	createdPrograms    []*taxonomy.Program
	createdCourseTypes []*taxonomy.CourseType
	createdExamTypes   []*taxonomy.ExamType
}

func NewTaxonomyResolver(ctx context.Context, repo taxonomy.Repository) (*TaxonomyResolver, error) {
	programs, err := repo.Programs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load programs")
	}
	courseTypes, err := repo.CourseTypes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load course types")
	}
	examTypes, err := repo.ExamTypes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load exam types")
	}
	return &TaxonomyResolver{
		programs:    programs,
		courseTypes: courseTypes,
		examTypes:   examTypes,
	}, nil
}

func (r *TaxonomyResolver) Program(name string) (*taxonomy.Program, bool) {
	for _, p := range r.programs {
		if p.MatchesImportName(name) {
			return p, true
		}
	}
	return nil, false
}

func (r *TaxonomyResolver) CourseType(name string) (*taxonomy.CourseType, bool) {
	for _, t := range r.courseTypes {
		if t.MatchesImportName(name) {
			return t, true
		}
	}
	return nil, false
}

func (r *TaxonomyResolver) ExamType(name string) (*taxonomy.ExamType, bool) {
	for _, t := range r.examTypes {
		if t.MatchesImportName(name) {
			return t, true
		}
	}
	return nil, false
}

// EnsureProgram returns the program matching the import name, creating a new
// one named after the import spelling when none exists. The second return
// reports whether a program was created.
func (r *TaxonomyResolver) EnsureProgram(name string) (*taxonomy.Program, bool) {
	if p, ok := r.Program(name); ok {
		return p, false
	}
	p := taxonomy.NewProgram(name, name, []string{name})
	r.programs = append(r.programs, p)
	r.createdPrograms = append(r.createdPrograms, p)
	return p, true
}

func (r *TaxonomyResolver) EnsureCourseType(name string) (*taxonomy.CourseType, bool) {
	if t, ok := r.CourseType(name); ok {
		return t, false
	}
	t := taxonomy.NewCourseType(name, name, []string{name})
	r.courseTypes = append(r.courseTypes, t)
	r.createdCourseTypes = append(r.createdCourseTypes, t)
	return t, true
}

func (r *TaxonomyResolver) EnsureExamType(name string) (*taxonomy.ExamType, bool) {
	if t, ok := r.ExamType(name); ok {
		return t, false
	}
	t := taxonomy.NewExamType(name, name, []string{name})
	r.examTypes = append(r.examTypes, t)
	r.createdExamTypes = append(r.createdExamTypes, t)
	return t, true
}

// Created* expose the entries minted during this run so the commit plan can
// persist them before any course references them.
func (r *TaxonomyResolver) CreatedPrograms() []*taxonomy.Program       { return r.createdPrograms }
func (r *TaxonomyResolver) CreatedCourseTypes() []*taxonomy.CourseType { return r.createdCourseTypes }
func (r *TaxonomyResolver) CreatedExamTypes() []*taxonomy.ExamType     { return r.createdExamTypes }
