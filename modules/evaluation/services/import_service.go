package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/course"
	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/evaluation"
	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/user"
	"github.com/evapdev/evap/modules/evaluation/domain/entities/semester"
	"github.com/evapdev/evap/modules/evaluation/domain/entities/taxonomy"
	"github.com/evapdev/evap/modules/evaluation/importer"
	"github.com/evapdev/evap/pkg/composables"
	"github.com/evapdev/evap/pkg/eventbus"
)

const headerRows = 1

// TxRunner executes fn with transactional guarantees. The production runner
// opens a serializable transaction; tests substitute a passthrough.
type TxRunner func(ctx context.Context, fn func(context.Context) error) error

// ImportConfig carries the site-specific import settings, usually derived
// from the environment configuration.
type ImportConfig struct {
	// Debug disables the exception-to-report conversion so unexpected errors
	// propagate with their stack intact.
	Debug bool
	// MaxEnrollments is the per-student enrollment count above which the
	// enrollment importer warns.
	MaxEnrollments int
	CMS            importer.CMSOptions
}

type ImportServiceOption func(s *ImportService)

func WithTxRunner(run TxRunner) ImportServiceOption {
	return func(s *ImportService) { s.runInTx = run }
}

func WithClock(clock importer.Clock) ImportServiceOption {
	return func(s *ImportService) { s.clock = clock }
}

// ImportService drives the three ingestion entry points. Every operation
// runs in two phases: build a write plan while collecting diagnostics, then
// either stop (test run) or commit the plan atomically (real run). Test run
// and real run of the same data produce the same report.
type ImportService struct {
	semesters   semester.Repository
	users       user.Repository
	taxonomies  taxonomy.Repository
	courses     course.Repository
	evaluations evaluation.Repository

	bus     eventbus.EventBus
	cfg     ImportConfig
	clock   importer.Clock
	runInTx TxRunner
}

func NewImportService(
	semesters semester.Repository,
	users user.Repository,
	taxonomies taxonomy.Repository,
	courses course.Repository,
	evaluations evaluation.Repository,
	bus eventbus.EventBus,
	cfg ImportConfig,
	opts ...ImportServiceOption,
) *ImportService {
	s := &ImportService{
		semesters:   semesters,
		users:       users,
		taxonomies:  taxonomies,
		courses:     courses,
		evaluations: evaluations,
		bus:         bus,
		cfg:         cfg,
		clock:       importer.SystemClock(),
		runInTx:     composables.InSerializableTx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportEnrollments ingests an enrollment workbook into the given semester.
// The evaluations of newly created courses get the passed voting period.
func (s *ImportService) ImportEnrollments(
	ctx context.Context,
	semesterID uuid.UUID,
	data []byte,
	voteStart time.Time,
	voteEnd time.Time,
	testRun bool,
) (*importer.Report, error) {
	rep := importer.NewReport(testRun)

	run := func(ctx context.Context) error {
		if _, err := s.semesters.GetByID(ctx, semesterID); err != nil {
			return errors.Wrap(err, "load semester")
		}

		rows, ok := importer.ReadWorkbook(rep, data, headerRows, importer.EnrollmentColumnCount)
		if !ok {
			return importer.ErrAborted
		}
		enrollments := importer.MapEnrollmentRows(rows)

		records := make([]importer.UserRecord, 0, 2*len(enrollments))
		for _, row := range enrollments {
			records = append(records, row.Student, row.Responsible)
		}
		// repeated rows are the norm here (one per student and course), so
		// identical records are folded without the duplicate warning
		people, err := importer.NewPeopleReconciler(s.users, importer.WithSilentDuplicates()).Reconcile(ctx, rep, records)
		if err != nil {
			return err
		}

		resolver, err := importer.NewTaxonomyResolver(ctx, s.taxonomies)
		if err != nil {
			return err
		}

		planner := importer.NewEnrollmentPlanner(s.courses, s.evaluations, importer.EnrollmentPlannerOptions{
			MaxEnrollments: s.cfg.MaxEnrollments,
		})
		plan, err := planner.Plan(ctx, rep, semesterID, enrollments, resolver, people, voteStart, voteEnd)
		if err != nil {
			return err
		}
		if err := rep.RaiseIfErrors(); err != nil {
			return err
		}

		if !testRun {
			if err := s.commit(ctx, plan); err != nil {
				return err
			}
		}
		importer.Summarize(rep, plan)
		if !testRun {
			s.bus.Publish(EnrollmentsImportedEvent{
				SemesterID:        semesterID,
				CoursesCreated:    len(plan.CoursesToCreate),
				UsersCreated:      len(plan.UsersToCreate),
				ParticipantsAdded: plan.ParticipantsAdded,
			})
		}
		return nil
	}

	return rep, s.finalize(rep, s.execute(ctx, testRun, run))
}

// ImportUsers ingests a user workbook. It only touches accounts, never
// courses or evaluations.
func (s *ImportService) ImportUsers(ctx context.Context, data []byte, testRun bool) (*importer.Report, error) {
	rep := importer.NewReport(testRun)

	run := func(ctx context.Context) error {
		rows, ok := importer.ReadWorkbook(rep, data, headerRows, importer.UserColumnCount)
		if !ok {
			return importer.ErrAborted
		}
		records := make([]importer.UserRecord, 0, len(rows))
		for _, row := range importer.MapUserRows(rows) {
			records = append(records, row.User)
		}
		people, err := importer.NewPeopleReconciler(s.users).Reconcile(ctx, rep, records)
		if err != nil {
			return err
		}
		if err := rep.RaiseIfErrors(); err != nil {
			return err
		}

		plan := importer.NewPlan()
		plan.UsersToCreate = people.New
		plan.UsersToUpdate = people.Updated

		if !testRun {
			if err := s.commit(ctx, plan); err != nil {
				return err
			}
		}
		importer.Summarize(rep, plan)
		if !testRun {
			s.bus.Publish(UsersImportedEvent{
				UsersCreated: len(plan.UsersToCreate),
				UsersUpdated: len(plan.UsersToUpdate),
			})
		}
		return nil
	}

	return rep, s.finalize(rep, s.execute(ctx, testRun, run))
}

// ImportCMS ingests the campus management JSON feed into the given semester.
func (s *ImportService) ImportCMS(
	ctx context.Context,
	semesterID uuid.UUID,
	data []byte,
	testRun bool,
) (*importer.Report, *importer.CMSStatistics, error) {
	rep := importer.NewReport(testRun)
	stats := &importer.CMSStatistics{}

	run := func(ctx context.Context) error {
		if _, err := s.semesters.GetByID(ctx, semesterID); err != nil {
			return errors.Wrap(err, "load semester")
		}

		resolver, err := importer.NewTaxonomyResolver(ctx, s.taxonomies)
		if err != nil {
			return err
		}

		cms := importer.NewCMSImporter(s.users, s.courses, s.evaluations, s.cfg.CMS, s.clock)
		plan, runStats, err := cms.Import(ctx, rep, semesterID, resolver, data)
		if err != nil {
			return err
		}
		*stats = *runStats
		if err := rep.RaiseIfErrors(); err != nil {
			return err
		}

		if !testRun {
			if err := s.commit(ctx, plan); err != nil {
				return err
			}
		}
		importer.Summarize(rep, plan)
		stats.Warnings = rep.Warnings()
		if !testRun {
			s.bus.Publish(CMSImportedEvent{SemesterID: semesterID, Statistics: stats})
		}
		return nil
	}

	err := s.finalize(rep, s.execute(ctx, testRun, run))
	return rep, stats, err
}

// ActiveSemester returns the process-wide active semester, the default
// import target when no semester is named explicitly.
func (s *ImportService) ActiveSemester(ctx context.Context) (*semester.Semester, error) {
	return s.semesters.Active(ctx)
}

func (s *ImportService) commit(ctx context.Context, plan *importer.Plan) error {
	engine := importer.NewCommitEngine(s.users, s.taxonomies, s.courses, s.evaluations)
	return engine.Apply(ctx, plan)
}

// execute runs fn directly for a test run (reads may hit the pool, nothing
// is written) and inside a serializable transaction for a real run.
func (s *ImportService) execute(ctx context.Context, testRun bool, fn func(context.Context) error) error {
	if testRun {
		return fn(ctx)
	}
	return s.runInTx(ctx, fn)
}

// finalize folds run errors into the report. Input errors become the final
// RESULT line; unexpected errors are converted too unless debug mode asks
// for them to propagate.
func (s *ImportService) finalize(rep *importer.Report, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, importer.ErrAborted):
		rep.AddError("Errors occurred while parsing the input data. No data was imported.", importer.CategoryResult)
		return nil
	case s.cfg.Debug:
		return err
	default:
		rep.AddError(fmt.Sprintf("Import aborted after exception: '%v'.", err), importer.CategoryResult)
		return nil
	}
}
