package evaluation

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// State is the review lifecycle of an evaluation. The order is strict:
// once a state is at least Approved the importer must not touch the record.
type State int

const (
	StateNew State = iota
	StatePrepared
	StateEditorApproved
	StateApproved
	StateInEvaluation
	StateEvaluated
	StateReviewed
	StatePublished
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StatePrepared:
		return "prepared"
	case StateEditorApproved:
		return "editor_approved"
	case StateApproved:
		return "approved"
	case StateInEvaluation:
		return "in_evaluation"
	case StateEvaluated:
		return "evaluated"
	case StateReviewed:
		return "reviewed"
	case StatePublished:
		return "published"
	}
	return "unknown"
}

type Language string

const (
	LanguageDE        Language = "de"
	LanguageEN        Language = "en"
	LanguageUndecided Language = "undecided"
)

var (
	ErrVoterRemoval    = errors.New("voters cannot be removed from the participants of an evaluation")
	ErrInvalidWeight   = errors.New("evaluation weight must be non-negative")
	ErrInvalidVoteDate = errors.New("evaluation must start before it ends")
)

type Evaluation struct {
	id                 uuid.UUID
	courseID           uuid.UUID
	nameDE             string
	nameEN             string
	state              State
	voteStartDatetime  time.Time
	voteEndDate        time.Time // date-only, inclusive
	weight             int
	isRewarded         bool
	waitForGradeUpload bool
	examTypeID         *uuid.UUID
	mainLanguage       Language
	cmsID              string
	participantIDs     []uuid.UUID
	voterIDs           []uuid.UUID
}

type Option func(e *Evaluation)

func WithNames(nameDE, nameEN string) Option {
	return func(e *Evaluation) {
		e.nameDE = strings.TrimSpace(nameDE)
		e.nameEN = strings.TrimSpace(nameEN)
	}
}

func WithWeight(weight int) Option {
	return func(e *Evaluation) { e.weight = weight }
}

func WithRewarded(rewarded bool) Option {
	return func(e *Evaluation) { e.isRewarded = rewarded }
}

func WithWaitForGradeUpload(wait bool) Option {
	return func(e *Evaluation) { e.waitForGradeUpload = wait }
}

func WithExamType(id uuid.UUID) Option {
	return func(e *Evaluation) { e.examTypeID = &id }
}

func WithMainLanguage(lang Language) Option {
	return func(e *Evaluation) { e.mainLanguage = lang }
}

func WithCMSID(cmsID string) Option {
	return func(e *Evaluation) { e.cmsID = cmsID }
}

func New(courseID uuid.UUID, voteStart time.Time, voteEnd time.Time, opts ...Option) (*Evaluation, error) {
	e := &Evaluation{
		id:                uuid.New(),
		courseID:          courseID,
		state:             StateNew,
		voteStartDatetime: voteStart,
		voteEndDate:       dateOnly(voteEnd),
		weight:            1,
		isRewarded:        true,
		mainLanguage:      LanguageUndecided,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.weight < 0 {
		return nil, ErrInvalidWeight
	}
	if dateOnly(e.voteStartDatetime).After(e.voteEndDate) {
		return nil, ErrInvalidVoteDate
	}
	return e, nil
}

func Hydrate(
	id uuid.UUID,
	courseID uuid.UUID,
	nameDE, nameEN string,
	state State,
	voteStart time.Time,
	voteEnd time.Time,
	weight int,
	isRewarded bool,
	waitForGradeUpload bool,
	examTypeID *uuid.UUID,
	mainLanguage Language,
	cmsID string,
	participantIDs []uuid.UUID,
	voterIDs []uuid.UUID,
) *Evaluation {
	return &Evaluation{
		id:                 id,
		courseID:           courseID,
		nameDE:             nameDE,
		nameEN:             nameEN,
		state:              state,
		voteStartDatetime:  voteStart,
		voteEndDate:        dateOnly(voteEnd),
		weight:             weight,
		isRewarded:         isRewarded,
		waitForGradeUpload: waitForGradeUpload,
		examTypeID:         examTypeID,
		mainLanguage:       mainLanguage,
		cmsID:              cmsID,
		participantIDs:     participantIDs,
		voterIDs:           voterIDs,
	}
}

func (e *Evaluation) ID() uuid.UUID                { return e.id }
func (e *Evaluation) CourseID() uuid.UUID          { return e.courseID }
func (e *Evaluation) NameDE() string               { return e.nameDE }
func (e *Evaluation) NameEN() string               { return e.nameEN }
func (e *Evaluation) State() State                 { return e.state }
func (e *Evaluation) VoteStartDatetime() time.Time { return e.voteStartDatetime }
func (e *Evaluation) VoteEndDate() time.Time       { return e.voteEndDate }
func (e *Evaluation) Weight() int                  { return e.weight }
func (e *Evaluation) IsRewarded() bool             { return e.isRewarded }
func (e *Evaluation) WaitForGradeUpload() bool     { return e.waitForGradeUpload }
func (e *Evaluation) ExamTypeID() *uuid.UUID       { return e.examTypeID }
func (e *Evaluation) MainLanguage() Language       { return e.mainLanguage }
func (e *Evaluation) CMSID() string                { return e.cmsID }
func (e *Evaluation) ParticipantIDs() []uuid.UUID  { return e.participantIDs }
func (e *Evaluation) VoterIDs() []uuid.UUID        { return e.voterIDs }

// CanBeEditedByManager reports whether staff-side tooling (including the
// importer) may still mutate the record.
func (e *Evaluation) CanBeEditedByManager() bool { return e.state < StateApproved }

func (e *Evaluation) SetState(s State) { e.state = s }

func (e *Evaluation) SetNames(nameDE, nameEN string) {
	e.nameDE = strings.TrimSpace(nameDE)
	e.nameEN = strings.TrimSpace(nameEN)
}

func (e *Evaluation) SetVotePeriod(start time.Time, end time.Time) error {
	end = dateOnly(end)
	if dateOnly(start).After(end) {
		return ErrInvalidVoteDate
	}
	e.voteStartDatetime = start
	e.voteEndDate = end
	return nil
}

func (e *Evaluation) SetVoteEndDate(end time.Time) error {
	return e.SetVotePeriod(e.voteStartDatetime, end)
}

func (e *Evaluation) SetMainLanguage(lang Language)   { e.mainLanguage = lang }
func (e *Evaluation) SetWaitForGradeUpload(wait bool) { e.waitForGradeUpload = wait }

func (e *Evaluation) HasParticipant(id uuid.UUID) bool {
	for _, p := range e.participantIDs {
		if p == id {
			return true
		}
	}
	return false
}

func (e *Evaluation) IsVoter(id uuid.UUID) bool {
	for _, v := range e.voterIDs {
		if v == id {
			return true
		}
	}
	return false
}

// AddParticipant reports whether the participant set changed.
func (e *Evaluation) AddParticipant(id uuid.UUID) bool {
	if e.HasParticipant(id) {
		return false
	}
	e.participantIDs = append(e.participantIDs, id)
	return true
}

func (e *Evaluation) RemoveParticipant(id uuid.UUID) error {
	if e.IsVoter(id) {
		return ErrVoterRemoval
	}
	for i, p := range e.participantIDs {
		if p == id {
			e.participantIDs = append(e.participantIDs[:i], e.participantIDs[i+1:]...)
			return nil
		}
	}
	return nil
}

// MarkVoted records a vote. Voters are always participants.
func (e *Evaluation) MarkVoted(id uuid.UUID) {
	e.AddParticipant(id)
	if !e.IsVoter(id) {
		e.voterIDs = append(e.voterIDs, id)
	}
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
