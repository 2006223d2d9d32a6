package evaluation

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrEvaluationNotFound = errors.New("evaluation not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Evaluation, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*Evaluation, error)
	GetByCMSID(ctx context.Context, cmsID string) (*Evaluation, error)
	// Create and Update persist the participant and voter sets as well.
	Create(ctx context.Context, e *Evaluation) error
	Update(ctx context.Context, e *Evaluation) error
	Count(ctx context.Context) (int64, error)

	SaveContribution(ctx context.Context, c *Contribution) error
	ContributionsByEvaluation(ctx context.Context, evaluationID uuid.UUID) ([]*Contribution, error)
}
