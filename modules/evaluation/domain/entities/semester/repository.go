package semester

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var (
	ErrSemesterNotFound = errors.New("semester not found")
	ErrNoActiveSemester = errors.New("no active semester")
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Semester, error)
	// Active returns the single active semester or ErrNoActiveSemester.
	Active(ctx context.Context) (*Semester, error)
	Create(ctx context.Context, s *Semester) error
}
