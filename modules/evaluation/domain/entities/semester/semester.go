package semester

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Semester struct {
	id                   uuid.UUID
	nameDE               string
	nameEN               string
	defaultCourseEndDate time.Time
	isActive             bool
}

func New(nameDE, nameEN string, defaultCourseEndDate time.Time) *Semester {
	return &Semester{
		id:                   uuid.New(),
		nameDE:               strings.TrimSpace(nameDE),
		nameEN:               strings.TrimSpace(nameEN),
		defaultCourseEndDate: defaultCourseEndDate,
	}
}

func Hydrate(
	id uuid.UUID,
	nameDE, nameEN string,
	defaultCourseEndDate time.Time,
	isActive bool,
) *Semester {
	return &Semester{
		id:                   id,
		nameDE:               nameDE,
		nameEN:               nameEN,
		defaultCourseEndDate: defaultCourseEndDate,
		isActive:             isActive,
	}
}

func (s *Semester) ID() uuid.UUID                   { return s.id }
func (s *Semester) NameDE() string                  { return s.nameDE }
func (s *Semester) NameEN() string                  { return s.nameEN }
func (s *Semester) DefaultCourseEndDate() time.Time { return s.defaultCourseEndDate }
func (s *Semester) IsActive() bool                  { return s.isActive }

func (s *Semester) Activate() { s.isActive = true }
