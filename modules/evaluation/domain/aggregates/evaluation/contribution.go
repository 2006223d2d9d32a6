package evaluation

import (
	"github.com/google/uuid"
)

type Role int

const (
	RoleContributor Role = iota
	RoleEditor
)

// Contribution associates a contributor with an evaluation. The single
// general contribution of an evaluation has a nil contributor.
type Contribution struct {
	id               uuid.UUID
	evaluationID     uuid.UUID
	contributorID    *uuid.UUID
	role             Role
	questionnaireIDs []uuid.UUID
}

func NewGeneralContribution(evaluationID uuid.UUID) *Contribution {
	return &Contribution{
		id:           uuid.New(),
		evaluationID: evaluationID,
		role:         RoleContributor,
	}
}

func NewContribution(evaluationID uuid.UUID, contributorID uuid.UUID, role Role) *Contribution {
	return &Contribution{
		id:            uuid.New(),
		evaluationID:  evaluationID,
		contributorID: &contributorID,
		role:          role,
	}
}

func HydrateContribution(
	id uuid.UUID,
	evaluationID uuid.UUID,
	contributorID *uuid.UUID,
	role Role,
	questionnaireIDs []uuid.UUID,
) *Contribution {
	return &Contribution{
		id:               id,
		evaluationID:     evaluationID,
		contributorID:    contributorID,
		role:             role,
		questionnaireIDs: questionnaireIDs,
	}
}

func (c *Contribution) ID() uuid.UUID                 { return c.id }
func (c *Contribution) EvaluationID() uuid.UUID       { return c.evaluationID }
func (c *Contribution) ContributorID() *uuid.UUID     { return c.contributorID }
func (c *Contribution) Role() Role                    { return c.role }
func (c *Contribution) QuestionnaireIDs() []uuid.UUID { return c.questionnaireIDs }

func (c *Contribution) IsGeneral() bool { return c.contributorID == nil }

func (c *Contribution) SetQuestionnaires(ids []uuid.UUID) { c.questionnaireIDs = ids }
