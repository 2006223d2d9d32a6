package services

import (
	"github.com/google/uuid"

	"github.com/evapdev/evap/modules/evaluation/importer"
)

// EnrollmentsImportedEvent is published after a real enrollment import run
// committed successfully.
type EnrollmentsImportedEvent struct {
	SemesterID        uuid.UUID
	CoursesCreated    int
	UsersCreated      int
	ParticipantsAdded int
}

// UsersImportedEvent is published after a real user import run committed
// successfully.
type UsersImportedEvent struct {
	UsersCreated int
	UsersUpdated int
}

// CMSImportedEvent is published after a real CMS feed run committed
// successfully. The statistics feed the manager notification mail.
type CMSImportedEvent struct {
	SemesterID uuid.UUID
	Statistics *importer.CMSStatistics
}
