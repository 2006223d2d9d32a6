package course

import (
	"strings"

	"github.com/google/uuid"
)

// Course is an offering in a semester. Both names are unique within the
// semester. CMSID carries the CMS event identifier when the course was
// created by the feed importer and makes repeated imports idempotent.
type Course struct {
	id             uuid.UUID
	semesterID     uuid.UUID
	nameDE         string
	nameEN         string
	courseTypeID   uuid.UUID
	isGraded       bool
	programIDs     []uuid.UUID
	responsibleIDs []uuid.UUID
	cmsID          string
}

type Option func(c *Course)

func WithCMSID(cmsID string) Option {
	return func(c *Course) { c.cmsID = cmsID }
}

func WithGraded(graded bool) Option {
	return func(c *Course) { c.isGraded = graded }
}

func WithPrograms(ids ...uuid.UUID) Option {
	return func(c *Course) {
		for _, id := range ids {
			c.AddProgram(id)
		}
	}
}

func WithResponsibles(ids ...uuid.UUID) Option {
	return func(c *Course) { c.SetResponsibles(ids) }
}

func New(semesterID uuid.UUID, nameDE, nameEN string, courseTypeID uuid.UUID, opts ...Option) *Course {
	c := &Course{
		id:           uuid.New(),
		semesterID:   semesterID,
		nameDE:       strings.TrimSpace(nameDE),
		nameEN:       strings.TrimSpace(nameEN),
		courseTypeID: courseTypeID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func Hydrate(
	id uuid.UUID,
	semesterID uuid.UUID,
	nameDE, nameEN string,
	courseTypeID uuid.UUID,
	isGraded bool,
	programIDs []uuid.UUID,
	responsibleIDs []uuid.UUID,
	cmsID string,
) *Course {
	return &Course{
		id:             id,
		semesterID:     semesterID,
		nameDE:         nameDE,
		nameEN:         nameEN,
		courseTypeID:   courseTypeID,
		isGraded:       isGraded,
		programIDs:     programIDs,
		responsibleIDs: responsibleIDs,
		cmsID:          cmsID,
	}
}

func (c *Course) ID() uuid.UUID               { return c.id }
func (c *Course) SemesterID() uuid.UUID       { return c.semesterID }
func (c *Course) NameDE() string              { return c.nameDE }
func (c *Course) NameEN() string              { return c.nameEN }
func (c *Course) CourseTypeID() uuid.UUID     { return c.courseTypeID }
func (c *Course) IsGraded() bool              { return c.isGraded }
func (c *Course) ProgramIDs() []uuid.UUID     { return c.programIDs }
func (c *Course) ResponsibleIDs() []uuid.UUID { return c.responsibleIDs }
func (c *Course) CMSID() string               { return c.cmsID }

func (c *Course) SetNames(nameDE, nameEN string) {
	c.nameDE = strings.TrimSpace(nameDE)
	c.nameEN = strings.TrimSpace(nameEN)
}

func (c *Course) SetCourseType(id uuid.UUID) { c.courseTypeID = id }
func (c *Course) SetGraded(graded bool)      { c.isGraded = graded }

func (c *Course) HasProgram(id uuid.UUID) bool {
	for _, p := range c.programIDs {
		if p == id {
			return true
		}
	}
	return false
}

// AddProgram reports whether the program set changed.
func (c *Course) AddProgram(id uuid.UUID) bool {
	if c.HasProgram(id) {
		return false
	}
	c.programIDs = append(c.programIDs, id)
	return true
}

func (c *Course) SetResponsibles(ids []uuid.UUID) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	c.responsibleIDs = out
}
