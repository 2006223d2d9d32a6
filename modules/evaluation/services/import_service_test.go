package services

import (
	"bytes"
	"context"
	"io"
	"net/mail"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/course"
	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/user"
	"github.com/evapdev/evap/modules/evaluation/domain/entities/semester"
	"github.com/evapdev/evap/modules/evaluation/domain/entities/taxonomy"
	"github.com/evapdev/evap/modules/evaluation/importer"
	"github.com/evapdev/evap/modules/evaluation/infrastructure/persistence"
	"github.com/evapdev/evap/pkg/eventbus"
	"github.com/evapdev/evap/pkg/mailer"
	"github.com/google/uuid"
)

type serviceFixture struct {
	semesterID  uuid.UUID
	semesters   *persistence.InmemSemesterRepository
	users       *persistence.InmemUserRepository
	taxonomies  *persistence.InmemTaxonomyRepository
	courses     *persistence.InmemCourseRepository
	evaluations *persistence.InmemEvaluationRepository
	bus         eventbus.EventBus
	service     *ImportService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	ctx := context.Background()

	log := logrus.New()
	log.SetOutput(io.Discard)

	semesters := persistence.NewInmemSemesterRepository()
	sem := semester.New("Sommersemester 2026", "Summer term 2026", time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC))
	sem.Activate()
	require.NoError(t, semesters.Create(ctx, sem))

	taxonomies := persistence.NewInmemTaxonomyRepository()
	require.NoError(t, taxonomies.CreateProgram(ctx,
		taxonomy.NewProgram("Bachelor Informatik", "Bachelor Computer Science", []string{"Bachelor Informatik"})))
	require.NoError(t, taxonomies.CreateCourseType(ctx,
		taxonomy.NewCourseType("Vorlesung", "Lecture", []string{"Vorlesung"})))

	users := persistence.NewInmemUserRepository()
	courses := persistence.NewInmemCourseRepository()
	evaluations := persistence.NewInmemEvaluationRepository()
	bus := eventbus.NewEventPublisher(log)

	cfg := ImportConfig{
		MaxEnrollments: 7,
		CMS: importer.CMSOptions{
			MainEvaluationWeight:   8,
			ExamEvaluationWeight:   1,
			ExamEvaluationDuration: 3 * 24 * time.Hour,
		},
	}
	passthrough := func(ctx context.Context, fn func(context.Context) error) error {
		return fn(ctx)
	}
	service := NewImportService(semesters, users, taxonomies, courses, evaluations, bus, cfg,
		WithTxRunner(passthrough),
		WithClock(importer.FixedClock(time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))),
	)

	return &serviceFixture{
		semesterID:  sem.ID(),
		semesters:   semesters,
		users:       users,
		taxonomies:  taxonomies,
		courses:     courses,
		evaluations: evaluations,
		bus:         bus,
		service:     service,
	}
}

func workbookBytes(t *testing.T, sheet string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func userWorkbook(t *testing.T) []byte {
	return workbookBytes(t, "Users", [][]any{
		{"Title", "First name", "Last name", "Email"},
		{"", "Lucilia", "Quid", "lucilia.quid@example.com"},
		{"Dr.", "Christoph", "Prorsus", "christoph.prorsus@example.com"},
	})
}

func enrollmentWorkbook(t *testing.T) []byte {
	header := []any{
		"Program", "Student last name", "Student first name", "Student email",
		"Course type", "Graded", "Course name (de)", "Course name (en)",
		"Responsible title", "Responsible last name", "Responsible first name", "Responsible email",
	}
	return workbookBytes(t, "BA Informatik", [][]any{
		header,
		{"Bachelor Informatik", "One", "Ana", "s1@example.com",
			"Vorlesung", "yes", "Datenbanken", "Databases",
			"Prof. Dr.", "Prorsus", "Christoph", "prof@example.com"},
		{"Bachelor Informatik", "Two", "Ben", "s2@example.com",
			"Vorlesung", "yes", "Datenbanken", "Databases",
			"Prof. Dr.", "Prorsus", "Christoph", "prof@example.com"},
	})
}

func reportTexts(rep *importer.Report) []string {
	var out []string
	for _, m := range rep.Messages() {
		out = append(out, m.Text)
	}
	return out
}

func TestImportUsersTestRunWritesNothing(t *testing.T) {
	f := newServiceFixture(t)

	rep, err := f.service.ImportUsers(context.Background(), userWorkbook(t), true)
	require.NoError(t, err)
	require.False(t, rep.HasErrors())

	assert.Contains(t, reportTexts(rep), "The import run will create 2 users.")
	count, err := f.users.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestImportUsersRealRunCommitsAndPublishes(t *testing.T) {
	f := newServiceFixture(t)

	var published []UsersImportedEvent
	f.bus.Subscribe(func(event UsersImportedEvent) {
		published = append(published, event)
	})

	rep, err := f.service.ImportUsers(context.Background(), userWorkbook(t), false)
	require.NoError(t, err)
	require.False(t, rep.HasErrors())

	assert.Contains(t, reportTexts(rep), "Successfully created 2 users.")
	count, err := f.users.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	require.Len(t, published, 1)
	assert.Equal(t, 2, published[0].UsersCreated)
	assert.Equal(t, 0, published[0].UsersUpdated)
}

func TestImportUsersAbortsOnInvalidData(t *testing.T) {
	f := newServiceFixture(t)
	data := workbookBytes(t, "Users", [][]any{
		{"Title", "First name", "Last name", "Email"},
		{"", "Lucilia", "Quid", "not-an-email"},
	})

	rep, err := f.service.ImportUsers(context.Background(), data, false)
	require.NoError(t, err)
	require.True(t, rep.HasErrors())
	assert.Contains(t, reportTexts(rep), "Errors occurred while parsing the input data. No data was imported.")

	count, err := f.users.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

// A test run and the real run of the same file report the same counts, only
// the wording changes.
func TestImportEnrollmentsTestAndRealRunMatch(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	data := enrollmentWorkbook(t)
	voteStart := time.Date(2026, 7, 6, 8, 0, 0, 0, time.UTC)
	voteEnd := time.Date(2026, 7, 19, 0, 0, 0, 0, time.UTC)

	dry, err := f.service.ImportEnrollments(ctx, f.semesterID, data, voteStart, voteEnd, true)
	require.NoError(t, err)
	require.False(t, dry.HasErrors())
	assert.Contains(t, reportTexts(dry), "The import run will create 1 courses and 1 evaluations.")
	assert.Contains(t, reportTexts(dry), "The import run will create 3 users.")
	assert.Contains(t, reportTexts(dry), "The import run will enroll 2 participants.")

	// the responsible repeats on every row of their course without a warning
	for _, text := range reportTexts(dry) {
		assert.NotContains(t, text, "duplicated data")
	}

	count, err := f.courses.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	wet, err := f.service.ImportEnrollments(ctx, f.semesterID, data, voteStart, voteEnd, false)
	require.NoError(t, err)
	require.False(t, wet.HasErrors())
	assert.Contains(t, reportTexts(wet), "Successfully created 1 courses and 1 evaluations.")
	assert.Contains(t, reportTexts(wet), "Successfully created 3 users.")
	assert.Contains(t, reportTexts(wet), "Successfully enrolled 2 participants.")

	count, err = f.courses.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
	evals, err := f.evaluations.ListByCourse(ctx, mustOnlyCourse(t, f).ID())
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.Len(t, evals[0].ParticipantIDs(), 2)
}

func TestImportEnrollmentsRejectsUnknownSemester(t *testing.T) {
	f := newServiceFixture(t)

	rep, err := f.service.ImportEnrollments(context.Background(), uuid.New(), enrollmentWorkbook(t),
		time.Now(), time.Now().AddDate(0, 0, 14), true)
	require.NoError(t, err)
	require.True(t, rep.HasErrors())
	assert.Contains(t, reportTexts(rep)[len(reportTexts(rep))-1], "Import aborted after exception:")
}

func TestImportCMSNotifiesManagers(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	manager := user.New("manager@example.com", "Mia", "Manager", user.WithManager())
	require.NoError(t, f.users.Create(ctx, manager))

	log := logrus.New()
	log.SetOutput(io.Discard)
	console := mailer.NewConsoleService(mail.Address{Name: "EvaP", Address: "noreply@example.com"}, "", log)
	NewCMSMailHandler(f.users, console, log).Register(f.bus)

	feed := `{
		"events": [
			{"gguid": "0x1", "title": "Datenbanken", "title_en": "Databases", "type": "Vorlesung", "language": "Deutsch",
			 "appointments": [{"begin": "15.07.2026 08:00:00", "end": "15.07.2026 10:00:00"}]}
		]
	}`
	rep, stats, err := f.service.ImportCMS(ctx, f.semesterID, []byte(feed), false)
	require.NoError(t, err)
	require.False(t, rep.HasErrors())
	assert.Equal(t, []string{"Databases"}, stats.NewCourses)

	sent := console.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "CMS import finished", sent[0].Subject)
	require.Len(t, sent[0].To, 1)
	assert.Equal(t, "manager@example.com", sent[0].To[0].Address)
	assert.Contains(t, sent[0].Body, "New Courses:")
	assert.Contains(t, sent[0].Body, "- Databases")
}

func TestActiveSemesterReturnsTheActivatedOne(t *testing.T) {
	f := newServiceFixture(t)

	active, err := f.service.ActiveSemester(context.Background())
	require.NoError(t, err)
	assert.Equal(t, f.semesterID, active.ID())
}

func TestActiveSemesterFailsWithoutOne(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	sem, err := f.semesters.GetByID(ctx, f.semesterID)
	require.NoError(t, err)
	inactive := semester.Hydrate(sem.ID(), sem.NameDE(), sem.NameEN(), sem.DefaultCourseEndDate(), false)
	require.NoError(t, f.semesters.Create(ctx, inactive))

	_, err = f.service.ActiveSemester(ctx)
	assert.ErrorIs(t, err, semester.ErrNoActiveSemester)
}

func mustOnlyCourse(t *testing.T, f *serviceFixture) *course.Course {
	t.Helper()
	list, err := f.courses.ListBySemester(context.Background(), f.semesterID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	return list[0]
}
