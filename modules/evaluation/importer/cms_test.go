package importer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/evaluation"
	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/user"
	"github.com/evapdev/evap/modules/evaluation/domain/entities/taxonomy"
	"github.com/evapdev/evap/modules/evaluation/infrastructure/persistence"
	"github.com/google/uuid"
)

// The last appointment ends Wednesday 15.07.2026, so the main evaluation
// runs Monday 06.07. 08:00 until Sunday 19.07. The exam on 16.07. shortens
// it to 15.07.
const cmsLectureFeed = `{
	"students": [
		{"gguid": "0xS1", "email": "s1@example.com", "christianname": "Ana", "name": "One"},
		{"gguid": "0xS2", "email": "s2@example.com", "christianname": "Ben", "name": "Two"}
	],
	"lecturers": [
		{"gguid": "0xL1", "email": "prof@example.com", "titlefront": "Prof. Dr.", "christianname": "Christoph", "name": "Prorsus"}
	],
	"events": [
		{
			"gguid": "0x1",
			"title": "Datenbanken",
			"title_en": "Databases",
			"type": "Vorlesung",
			"language": "Deutsch",
			"isexam": false,
			"courses": [{"cprid": "Bachelor Informatik", "scale": "GRADE_PARTICIPATION"}],
			"appointments": [
				{"begin": "15.04.2026 10:00:00", "end": "15.04.2026 12:00:00"},
				{"begin": "15.07.2026 08:00:00", "end": "15.07.2026 10:00:00"}
			],
			"lecturers": [{"gguid": "0xL1"}],
			"students": [{"gguid": "0xS1"}, {"gguid": "0xS2"}]
		},
		{
			"gguid": "0xE1",
			"title": "Datenbanken - Klausur",
			"title_en": "Databases - Exam",
			"type": "Klausur",
			"isexam": true,
			"relatedevents": [{"gguid": "0x1"}],
			"courses": [{"cprid": "Bachelor Informatik", "scale": "GRADE"}],
			"appointments": [{"begin": "16.07.2026 09:00:00", "end": "16.07.2026 11:00:00"}],
			"students": [{"gguid": "0xS1"}, {"gguid": "0xS2"}]
		}
	]
}`

type cmsFixture struct {
	semesterID  uuid.UUID
	users       *persistence.InmemUserRepository
	taxonomies  *persistence.InmemTaxonomyRepository
	courses     *persistence.InmemCourseRepository
	evaluations *persistence.InmemEvaluationRepository
	importer    *CMSImporter
}

func newCMSFixture(t *testing.T, opts CMSOptions) *cmsFixture {
	t.Helper()
	if opts.MainEvaluationWeight == 0 {
		opts.MainEvaluationWeight = 8
	}
	if opts.ExamEvaluationWeight == 0 {
		opts.ExamEvaluationWeight = 1
	}
	if opts.ExamEvaluationDuration == 0 {
		opts.ExamEvaluationDuration = 3 * 24 * time.Hour
	}

	taxonomies := persistence.NewInmemTaxonomyRepository()
	require.NoError(t, taxonomies.CreateCourseType(context.Background(),
		taxonomy.NewCourseType("Vorlesung", "Lecture", []string{"Vorlesung"})))

	users := persistence.NewInmemUserRepository()
	courses := persistence.NewInmemCourseRepository()
	evaluations := persistence.NewInmemEvaluationRepository()
	clock := FixedClock(time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))
	return &cmsFixture{
		semesterID:  uuid.New(),
		users:       users,
		taxonomies:  taxonomies,
		courses:     courses,
		evaluations: evaluations,
		importer:    NewCMSImporter(users, courses, evaluations, opts, clock),
	}
}

func (f *cmsFixture) runImport(t *testing.T, feed string) (*Report, *Plan, *CMSStatistics) {
	t.Helper()
	ctx := context.Background()
	resolver, err := NewTaxonomyResolver(ctx, f.taxonomies)
	require.NoError(t, err)

	rep := NewReport(false)
	plan, stats, err := f.importer.Import(ctx, rep, f.semesterID, resolver, []byte(feed))
	require.NoError(t, err)
	return rep, plan, stats
}

func (f *cmsFixture) apply(t *testing.T, plan *Plan) {
	t.Helper()
	engine := NewCommitEngine(f.users, f.taxonomies, f.courses, f.evaluations)
	require.NoError(t, engine.Apply(context.Background(), plan))
}

func TestCMSImportCreatesCourseAndEvaluations(t *testing.T) {
	f := newCMSFixture(t, CMSOptions{})
	rep, plan, stats := f.runImport(t, cmsLectureFeed)

	require.False(t, rep.HasErrors())
	require.Len(t, plan.CoursesToCreate, 1)
	c := plan.CoursesToCreate[0]
	assert.Equal(t, "Datenbanken", c.NameDE())
	assert.Equal(t, "Databases", c.NameEN())
	assert.Equal(t, "0x1", c.CMSID())
	assert.True(t, c.IsGraded())
	require.Len(t, c.ResponsibleIDs(), 1)
	require.Len(t, c.ProgramIDs(), 1)

	require.Len(t, plan.UsersToCreate, 3)
	require.Len(t, plan.ProgramsToCreate, 1)
	assert.Equal(t, "Bachelor Informatik", plan.ProgramsToCreate[0].NameEN())
	assert.Empty(t, plan.CourseTypesToCreate)
	require.Len(t, plan.ExamTypesToCreate, 1)

	require.Len(t, plan.EvaluationsToCreate, 2)
	main, exam := plan.EvaluationsToCreate[0], plan.EvaluationsToCreate[1]

	assert.Equal(t, c.ID(), main.CourseID())
	assert.Equal(t, "0x1", main.CMSID())
	assert.Equal(t, 8, main.Weight())
	assert.True(t, main.IsRewarded())
	assert.True(t, main.WaitForGradeUpload())
	assert.Equal(t, evaluation.LanguageDE, main.MainLanguage())
	assert.Equal(t, time.Date(2026, 7, 6, 8, 0, 0, 0, time.UTC), main.VoteStartDatetime())
	assert.Equal(t, time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC), main.VoteEndDate())
	assert.Len(t, main.ParticipantIDs(), 2)

	assert.Equal(t, "0xE1", exam.CMSID())
	assert.Equal(t, "Klausur", exam.NameDE())
	assert.Equal(t, "Exam", exam.NameEN())
	assert.Equal(t, 1, exam.Weight())
	assert.False(t, exam.IsRewarded())
	assert.True(t, exam.WaitForGradeUpload())
	require.NotNil(t, exam.ExamTypeID())
	assert.Equal(t, time.Date(2026, 7, 17, 8, 0, 0, 0, time.UTC), exam.VoteStartDatetime())
	assert.Equal(t, time.Date(2026, 7, 19, 0, 0, 0, 0, time.UTC), exam.VoteEndDate())
	assert.Len(t, exam.ParticipantIDs(), 2)

	// general + editor for the main evaluation, general for the exam
	require.Len(t, plan.Contributions, 3)
	assert.True(t, plan.Contributions[0].IsGeneral())
	assert.Equal(t, evaluation.RoleEditor, plan.Contributions[1].Role())
	assert.True(t, plan.Contributions[2].IsGeneral())

	assert.Equal(t, []string{"Databases"}, stats.NewCourses)
	assert.Equal(t, []string{"Databases", "Exam"}, stats.NewEvaluations)
	assert.Equal(t, 4, plan.ParticipantsAdded)
}

func TestCMSImportIsIdempotent(t *testing.T) {
	f := newCMSFixture(t, CMSOptions{})
	_, plan, _ := f.runImport(t, cmsLectureFeed)
	f.apply(t, plan)

	rep, again, stats := f.runImport(t, cmsLectureFeed)
	require.False(t, rep.HasErrors())
	assert.True(t, again.IsEmpty())
	assert.Empty(t, stats.NewCourses)
	assert.Empty(t, stats.UpdatedCourses)
	assert.Empty(t, stats.NameChanges)
}

func TestCMSImportDerivesMainLanguage(t *testing.T) {
	f := newCMSFixture(t, CMSOptions{})
	feed := `{
		"events": [
			{"gguid": "0x1", "title": "Datenbanken", "title_en": "Databases", "type": "Vorlesung", "language": "Deutsch",
			 "appointments": [{"begin": "15.07.2026 08:00:00", "end": "15.07.2026 10:00:00"}]},
			{"gguid": "0x2", "title": "Algorithmen", "title_en": "Algorithms", "type": "Vorlesung", "language": "Englisch",
			 "appointments": [{"begin": "15.07.2026 10:00:00", "end": "15.07.2026 12:00:00"}]},
			{"gguid": "0x3", "title": "Logik", "title_en": "Logic", "type": "Vorlesung", "language": "Klingonisch",
			 "appointments": [{"begin": "15.07.2026 14:00:00", "end": "15.07.2026 16:00:00"}]}
		]
	}`

	rep, plan, _ := f.runImport(t, feed)
	require.False(t, rep.HasErrors())
	require.Len(t, plan.EvaluationsToCreate, 3)
	assert.Equal(t, evaluation.LanguageDE, plan.EvaluationsToCreate[0].MainLanguage())
	assert.Equal(t, evaluation.LanguageEN, plan.EvaluationsToCreate[1].MainLanguage())
	assert.Equal(t, evaluation.LanguageUndecided, plan.EvaluationsToCreate[2].MainLanguage())
	assert.Contains(t, rep.Warnings(),
		"The event 'Logik' has the unknown language 'Klingonisch'; the evaluation language stays undecided.")
}

func TestCMSImportRestrictsResponsiblesToLongestTitle(t *testing.T) {
	f := newCMSFixture(t, CMSOptions{})
	feed := `{
		"lecturers": [
			{"gguid": "0xL1", "email": "prof@example.com", "titlefront": "Prof. Dr.", "christianname": "Christoph", "name": "Prorsus"},
			{"gguid": "0xL2", "email": "assistant@example.com", "christianname": "Ada", "name": "Assistentin"}
		],
		"events": [
			{"gguid": "0x1", "title": "Datenbanken", "title_en": "Databases", "type": "Vorlesung", "language": "Deutsch",
			 "appointments": [{"begin": "15.07.2026 08:00:00", "end": "15.07.2026 10:00:00"}],
			 "lecturers": [{"gguid": "0xL1"}, {"gguid": "0xL2"}]}
		]
	}`

	rep, plan, _ := f.runImport(t, feed)
	require.False(t, rep.HasErrors())
	require.Len(t, plan.CoursesToCreate, 1)
	require.Len(t, plan.CoursesToCreate[0].ResponsibleIDs(), 1)

	// both lecturers contribute, only the titled one as editor
	require.Len(t, plan.Contributions, 3)
	assert.True(t, plan.Contributions[0].IsGeneral())
	assert.Equal(t, evaluation.RoleEditor, plan.Contributions[1].Role())
	assert.Equal(t, evaluation.RoleContributor, plan.Contributions[2].Role())
}

func TestCMSImportRecordsAttemptedChangesOnApprovedEvaluations(t *testing.T) {
	f := newCMSFixture(t, CMSOptions{})
	_, plan, _ := f.runImport(t, cmsLectureFeed)
	f.apply(t, plan)

	stored, err := f.evaluations.GetByCMSID(context.Background(), "0x1")
	require.NoError(t, err)
	stored.SetState(evaluation.StateApproved)
	require.NoError(t, stored.RemoveParticipant(stored.ParticipantIDs()[0]))

	rep, again, stats := f.runImport(t, cmsLectureFeed)
	require.False(t, rep.HasErrors())
	assert.Equal(t, []string{"Databases"}, stats.AttemptedChanges)
	assert.Empty(t, again.EvaluationsToUpdate)
	assert.Contains(t, rep.Warnings(),
		"The evaluation of course 'Databases' has already been approved; the changes from the CMS were not applied.")
}

func TestCMSImportSyncsParticipantsOfStoredEvaluations(t *testing.T) {
	f := newCMSFixture(t, CMSOptions{})
	_, plan, _ := f.runImport(t, cmsLectureFeed)
	f.apply(t, plan)

	stored, err := f.evaluations.GetByCMSID(context.Background(), "0x1")
	require.NoError(t, err)
	voter := stored.ParticipantIDs()[0]
	stored.MarkVoted(voter)
	other := stored.ParticipantIDs()[1]
	extra := uuid.New()
	stored.AddParticipant(extra)

	rep, again, stats := f.runImport(t, cmsLectureFeed)
	require.False(t, rep.HasErrors())
	require.Len(t, again.EvaluationsToUpdate, 1)
	assert.Equal(t, []string{"Databases"}, stats.UpdatedEvaluations)

	// voters stay, unknown extras go, feed participants remain
	assert.True(t, stored.HasParticipant(voter))
	assert.True(t, stored.HasParticipant(other))
	assert.False(t, stored.HasParticipant(extra))
}

func TestCMSImportReconcilesFeedPersons(t *testing.T) {
	f := newCMSFixture(t, CMSOptions{})
	stored := user.New("prof@example.com", "Kristof", "Prorsus")
	require.NoError(t, f.users.Create(context.Background(), stored))

	rep, plan, stats := f.runImport(t, cmsLectureFeed)
	require.False(t, rep.HasErrors())

	require.Len(t, plan.UsersToUpdate, 1)
	assert.Equal(t, "Christoph", plan.UsersToUpdate[0].FirstNameGiven())
	require.Len(t, stats.NameChanges, 1)
	assert.Equal(t, "Kristof Prorsus", stats.NameChanges[0].OldName)
	assert.Equal(t, "Christoph Prorsus", stats.NameChanges[0].NewName)
	assert.Contains(t, rep.Warnings(),
		"The existing user 'Kristof Prorsus' (prof@example.com) was overwritten with the data in this import: Prof. Dr. Christoph Prorsus.")
	require.Len(t, plan.UsersToCreate, 2)
}

func TestCMSImportMaterializesUnreferencedPersons(t *testing.T) {
	f := newCMSFixture(t, CMSOptions{})
	feed := `{
		"students": [{"gguid": "0xS9", "email": "s9@example.com", "christianname": "Nina", "name": "Neu"}],
		"events": []
	}`

	rep, plan, _ := f.runImport(t, feed)
	require.False(t, rep.HasErrors())
	require.Len(t, plan.UsersToCreate, 1)
	assert.Equal(t, "s9@example.com", plan.UsersToCreate[0].Email())
}

func TestCMSImportDisambiguatesCollidingNames(t *testing.T) {
	f := newCMSFixture(t, CMSOptions{})
	feed := `{
		"events": [
			{"gguid": "0xA", "title": "Mathe II", "title_en": "Math II", "type": "Vorlesung", "language": "Deutsch",
			 "appointments": [{"begin": "13.07.2026 10:00:00", "end": "13.07.2026 12:00:00"}]},
			{"gguid": "0xB", "title": "Mathe II", "title_en": "Math II", "type": "Vorlesung", "language": "Deutsch",
			 "appointments": [{"begin": "13.07.2026 14:00:00", "end": "13.07.2026 16:00:00"}]}
		]
	}`

	rep, plan, _ := f.runImport(t, feed)
	require.False(t, rep.HasErrors())
	require.Len(t, plan.CoursesToCreate, 2)
	assert.Equal(t, "Math II", plan.CoursesToCreate[0].NameEN())
	assert.Equal(t, "Math II (2)", plan.CoursesToCreate[1].NameEN())
	assert.Equal(t, "Mathe II (2)", plan.CoursesToCreate[1].NameDE())
	assert.Contains(t, rep.Warnings(),
		"The name of event 'Mathe II' collides with another course and was imported as 'Mathe II (2)'.")
}

func TestCMSImportDisambiguatesExamNames(t *testing.T) {
	f := newCMSFixture(t, CMSOptions{})
	feed := `{
		"events": [
			{"gguid": "0x1", "title": "Datenbanken", "title_en": "Databases", "type": "Vorlesung", "language": "Deutsch",
			 "appointments": [{"begin": "15.07.2026 08:00:00", "end": "15.07.2026 10:00:00"}]},
			{"gguid": "0xE1", "title": "Datenbanken - Klausur", "title_en": "Databases - Exam", "type": "Klausur", "isexam": true,
			 "relatedevents": [{"gguid": "0x1"}],
			 "appointments": [{"begin": "16.07.2026 09:00:00", "end": "16.07.2026 11:00:00"}]},
			{"gguid": "0xE2", "title": "Datenbanken - Klausur", "title_en": "Databases - Exam", "type": "Klausur", "isexam": true,
			 "relatedevents": [{"gguid": "0x1"}],
			 "appointments": [{"begin": "20.07.2026 09:00:00", "end": "20.07.2026 11:00:00"}]}
		]
	}`

	rep, plan, _ := f.runImport(t, feed)
	require.False(t, rep.HasErrors())
	require.Len(t, plan.EvaluationsToCreate, 3)
	assert.Equal(t, "Klausur", plan.EvaluationsToCreate[1].NameDE())
	assert.Equal(t, "Exam", plan.EvaluationsToCreate[1].NameEN())
	assert.Equal(t, "Klausur (2)", plan.EvaluationsToCreate[2].NameDE())
	assert.Equal(t, "Exam (2)", plan.EvaluationsToCreate[2].NameEN())
}

func TestCMSImportExtendsCourseWithExamPrograms(t *testing.T) {
	f := newCMSFixture(t, CMSOptions{})
	feed := `{
		"events": [
			{"gguid": "0x1", "title": "Datenbanken", "title_en": "Databases", "type": "Vorlesung", "language": "Deutsch",
			 "courses": [{"cprid": "Bachelor Informatik", "scale": ""}],
			 "appointments": [{"begin": "15.07.2026 08:00:00", "end": "15.07.2026 10:00:00"}]},
			{"gguid": "0xE1", "title": "Datenbanken - Klausur", "title_en": "Databases - Exam", "type": "Klausur", "isexam": true,
			 "relatedevents": [{"gguid": "0x1"}],
			 "courses": [{"cprid": "Master Informatik", "scale": "GRADE"}],
			 "appointments": [{"begin": "16.07.2026 09:00:00", "end": "16.07.2026 11:00:00"}]}
		]
	}`

	rep, plan, _ := f.runImport(t, feed)
	require.False(t, rep.HasErrors())
	require.Len(t, plan.CoursesToCreate, 1)
	c := plan.CoursesToCreate[0]
	// the exam event's program extends the course, its scale decides the
	// exam's wait-for-grades flag
	assert.Len(t, c.ProgramIDs(), 2)
	assert.False(t, c.IsGraded())
	require.Len(t, plan.ProgramsToCreate, 2)
	require.Len(t, plan.EvaluationsToCreate, 2)
	assert.True(t, plan.EvaluationsToCreate[1].WaitForGradeUpload())
}

func TestCMSImportHonorsIgnoreLists(t *testing.T) {
	f := newCMSFixture(t, CMSOptions{
		IgnoreUsers:         []string{"s2@example.com"},
		NonResponsibleUsers: []string{"prof@example.com"},
		IgnorePrograms:      []string{"Bachelor Informatik"},
	})

	rep, plan, _ := f.runImport(t, cmsLectureFeed)
	require.False(t, rep.HasErrors())
	require.Len(t, plan.CoursesToCreate, 1)
	c := plan.CoursesToCreate[0]
	assert.Empty(t, c.ProgramIDs())
	assert.Empty(t, c.ResponsibleIDs())
	// the graded scale still counts even when the program itself is ignored
	assert.True(t, c.IsGraded())

	require.Len(t, plan.UsersToCreate, 2)
	require.Len(t, plan.EvaluationsToCreate, 2)
	assert.Len(t, plan.EvaluationsToCreate[0].ParticipantIDs(), 1)

	// the lecturer still contributes, just without the editor role
	require.Len(t, plan.Contributions, 3)
	assert.Equal(t, evaluation.RoleContributor, plan.Contributions[1].Role())
}

func TestCMSImportAttachesExamsByTitlePrefix(t *testing.T) {
	f := newCMSFixture(t, CMSOptions{})
	require.NoError(t, f.taxonomies.CreateCourseType(context.Background(),
		taxonomy.NewCourseType("Datenbanken", "Databases", []string{"Datenbanken"})))

	feed := `{
		"events": [
			{"gguid": "0x1", "title": "Datenbanken", "title_en": "Databases", "type": "Vorlesung", "language": "Deutsch",
			 "appointments": [{"begin": "15.07.2026 08:00:00", "end": "15.07.2026 10:00:00"}]},
			{"gguid": "0xE1", "title": "Datenbanken - Klausur", "title_en": "Databases - Exam", "type": "Klausur", "isexam": true,
			 "appointments": [{"begin": "16.07.2026 09:00:00", "end": "16.07.2026 11:00:00"}]}
		]
	}`

	rep, plan, _ := f.runImport(t, feed)
	require.False(t, rep.HasErrors())
	require.Len(t, plan.EvaluationsToCreate, 2)
	exam := plan.EvaluationsToCreate[1]
	assert.Equal(t, plan.CoursesToCreate[0].ID(), exam.CourseID())
	assert.Equal(t, "Exam", exam.NameEN())
	assert.Equal(t, "0xE1", exam.CMSID())
	for _, text := range rep.Warnings() {
		assert.NotContains(t, text, "No related event or matching prefix found")
	}
}

func TestCMSImportWarnsAboutUnrelatedExams(t *testing.T) {
	f := newCMSFixture(t, CMSOptions{})
	feed := `{
		"events": [
			{"gguid": "0xE9", "title": "Orphan Exam", "title_en": "Orphan Exam", "type": "Klausur",
			 "isexam": true,
			 "appointments": [{"begin": "16.07.2026 09:00:00", "end": "16.07.2026 11:00:00"}]}
		]
	}`

	rep, plan, _ := f.runImport(t, feed)
	require.False(t, rep.HasErrors())
	assert.True(t, plan.IsEmpty())
	assert.Contains(t, rep.Warnings(),
		"No related event or matching prefix found for the exam 'Orphan Exam'; the event was skipped.")
}

func TestCMSImportRejectsNonPositiveMainWeight(t *testing.T) {
	f := newCMSFixture(t, CMSOptions{MainEvaluationWeight: -1})

	rep, plan, _ := f.runImport(t, cmsLectureFeed)
	assert.True(t, rep.HasErrors())
	assert.True(t, plan.IsEmpty())
	assert.Contains(t, messageTexts(rep),
		"The configured main evaluation weight must be positive, got -1.")
}

func TestCMSImportRejectsMalformedFeed(t *testing.T) {
	f := newCMSFixture(t, CMSOptions{})
	rep, plan, _ := f.runImport(t, "{not json")
	assert.True(t, rep.HasErrors())
	assert.True(t, plan.IsEmpty())
}
