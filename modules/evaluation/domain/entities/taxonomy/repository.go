package taxonomy

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	ErrProgramNotFound    = errors.New("program not found")
	ErrCourseTypeNotFound = errors.New("course type not found")
	ErrExamTypeNotFound   = errors.New("exam type not found")
)

type Repository interface {
	Programs(ctx context.Context) ([]*Program, error)
	CourseTypes(ctx context.Context) ([]*CourseType, error)
	ExamTypes(ctx context.Context) ([]*ExamType, error)

	CreateProgram(ctx context.Context, p *Program) error
	CreateCourseType(ctx context.Context, t *CourseType) error
	CreateExamType(ctx context.Context, t *ExamType) error

	UpdateProgram(ctx context.Context, p *Program) error
	UpdateCourseType(ctx context.Context, t *CourseType) error
	UpdateExamType(ctx context.Context, t *ExamType) error
}
