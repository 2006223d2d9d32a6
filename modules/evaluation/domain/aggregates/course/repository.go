package course

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrCourseNotFound = errors.New("course not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Course, error)
	GetByNameDE(ctx context.Context, semesterID uuid.UUID, nameDE string) (*Course, error)
	GetByNameEN(ctx context.Context, semesterID uuid.UUID, nameEN string) (*Course, error)
	GetByCMSID(ctx context.Context, semesterID uuid.UUID, cmsID string) (*Course, error)
	ListBySemester(ctx context.Context, semesterID uuid.UUID) ([]*Course, error)
	Create(ctx context.Context, c *Course) error
	Update(ctx context.Context, c *Course) error
	Count(ctx context.Context) (int64, error)
}
