package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/evaluation"
	"github.com/evapdev/evap/pkg/composables"
)

const (
	evaluationColumns = `id, course_id, name_de, name_en, state, vote_start_datetime, vote_end_date,
weight, is_rewarded, wait_for_grade_upload, exam_type_id, main_language, cms_id, participant_ids, voter_ids`

	evaluationSelectByIDQuery = `
SELECT ` + evaluationColumns + `
FROM evaluations
WHERE id = $1`

	evaluationSelectByCourseQuery = `
SELECT ` + evaluationColumns + `
FROM evaluations
WHERE course_id = $1
ORDER BY vote_start_datetime`

	evaluationSelectByCMSIDQuery = `
SELECT ` + evaluationColumns + `
FROM evaluations
WHERE cms_id = $1`

	evaluationInsertQuery = `
INSERT INTO evaluations (
	id, course_id, name_de, name_en, state, vote_start_datetime, vote_end_date,
	weight, is_rewarded, wait_for_grade_upload, exam_type_id, main_language, cms_id,
	participant_ids, voter_ids
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	evaluationUpdateQuery = `
UPDATE evaluations
SET name_de = $2,
    name_en = $3,
    state = $4,
    vote_start_datetime = $5,
    vote_end_date = $6,
    weight = $7,
    is_rewarded = $8,
    wait_for_grade_upload = $9,
    exam_type_id = $10,
    main_language = $11,
    cms_id = $12,
    participant_ids = $13,
    voter_ids = $14
WHERE id = $1`

	evaluationCountQuery = `SELECT COUNT(*) FROM evaluations`

	contributionUpsertQuery = `
INSERT INTO contributions (id, evaluation_id, contributor_id, role, questionnaire_ids)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET role = EXCLUDED.role, questionnaire_ids = EXCLUDED.questionnaire_ids`

	contributionSelectByEvaluationQuery = `
SELECT id, evaluation_id, contributor_id, role, questionnaire_ids
FROM contributions
WHERE evaluation_id = $1
ORDER BY contributor_id NULLS FIRST`
)

type PgEvaluationRepository struct{}

func NewPgEvaluationRepository() *PgEvaluationRepository {
	return &PgEvaluationRepository{}
}

func (r *PgEvaluationRepository) GetByID(ctx context.Context, id uuid.UUID) (*evaluation.Evaluation, error) {
	return r.getOne(ctx, evaluationSelectByIDQuery, id)
}

func (r *PgEvaluationRepository) GetByCMSID(ctx context.Context, cmsID string) (*evaluation.Evaluation, error) {
	return r.getOne(ctx, evaluationSelectByCMSIDQuery, cmsID)
}

func (r *PgEvaluationRepository) getOne(ctx context.Context, query string, args ...any) (*evaluation.Evaluation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	e, err := scanEvaluation(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, evaluation.ErrEvaluationNotFound
	}
	return e, err
}

func (r *PgEvaluationRepository) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]*evaluation.Evaluation, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, evaluationSelectByCourseQuery, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "query course evaluations")
	}
	defer rows.Close()

	var out []*evaluation.Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan evaluation")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PgEvaluationRepository) Create(ctx context.Context, e *evaluation.Evaluation) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, evaluationInsertQuery,
		e.ID(), e.CourseID(), e.NameDE(), e.NameEN(), int(e.State()),
		e.VoteStartDatetime(), e.VoteEndDate(), e.Weight(), e.IsRewarded(), e.WaitForGradeUpload(),
		e.ExamTypeID(), string(e.MainLanguage()), nullableText(e.CMSID()),
		e.ParticipantIDs(), e.VoterIDs(),
	)
	return errors.Wrap(err, "insert evaluation")
}

func (r *PgEvaluationRepository) Update(ctx context.Context, e *evaluation.Evaluation) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, evaluationUpdateQuery,
		e.ID(), e.NameDE(), e.NameEN(), int(e.State()),
		e.VoteStartDatetime(), e.VoteEndDate(), e.Weight(), e.IsRewarded(), e.WaitForGradeUpload(),
		e.ExamTypeID(), string(e.MainLanguage()), nullableText(e.CMSID()),
		e.ParticipantIDs(), e.VoterIDs(),
	)
	return errors.Wrap(err, "update evaluation")
}

func (r *PgEvaluationRepository) Count(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, evaluationCountQuery).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "count evaluations")
	}
	return count, nil
}

func (r *PgEvaluationRepository) SaveContribution(ctx context.Context, c *evaluation.Contribution) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, contributionUpsertQuery,
		c.ID(), c.EvaluationID(), c.ContributorID(), int(c.Role()), c.QuestionnaireIDs(),
	)
	return errors.Wrap(err, "save contribution")
}

func (r *PgEvaluationRepository) ContributionsByEvaluation(ctx context.Context, evaluationID uuid.UUID) ([]*evaluation.Contribution, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, contributionSelectByEvaluationQuery, evaluationID)
	if err != nil {
		return nil, errors.Wrap(err, "query contributions")
	}
	defer rows.Close()

	var out []*evaluation.Contribution
	for rows.Next() {
		var (
			id, evalID       uuid.UUID
			contributorID    *uuid.UUID
			role             int
			questionnaireIDs []uuid.UUID
		)
		if err := rows.Scan(&id, &evalID, &contributorID, &role, &questionnaireIDs); err != nil {
			return nil, errors.Wrap(err, "scan contribution")
		}
		out = append(out, evaluation.HydrateContribution(id, evalID, contributorID, evaluation.Role(role), questionnaireIDs))
	}
	return out, rows.Err()
}

func scanEvaluation(row pgx.Row) (*evaluation.Evaluation, error) {
	var (
		id, courseID       uuid.UUID
		nameDE, nameEN     string
		state              int
		voteStart          time.Time
		voteEnd            time.Time
		weight             int
		isRewarded         bool
		waitForGradeUpload bool
		examTypeID         *uuid.UUID
		mainLanguage       string
		cmsID              *string
		participantIDs     []uuid.UUID
		voterIDs           []uuid.UUID
	)
	if err := row.Scan(
		&id, &courseID, &nameDE, &nameEN, &state, &voteStart, &voteEnd,
		&weight, &isRewarded, &waitForGradeUpload, &examTypeID, &mainLanguage, &cmsID,
		&participantIDs, &voterIDs,
	); err != nil {
		return nil, err
	}
	return evaluation.Hydrate(
		id, courseID, nameDE, nameEN, evaluation.State(state), voteStart, voteEnd,
		weight, isRewarded, waitForGradeUpload, examTypeID, evaluation.Language(mainLanguage), textOrEmpty(cmsID),
		participantIDs, voterIDs,
	), nil
}
