package importer

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/course"
	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/evaluation"
	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/user"
	"github.com/evapdev/evap/modules/evaluation/domain/entities/taxonomy"
)

// Plan is the complete set of writes one ingestion run wants to perform.
// A test run stops after building the plan; a real run hands it to the
// commit engine inside one transaction.
type Plan struct {
	UsersToUpdate []*user.User
	UsersToCreate []*user.User

	ProgramsToCreate    []*taxonomy.Program
	CourseTypesToCreate []*taxonomy.CourseType
	ExamTypesToCreate   []*taxonomy.ExamType
	CourseTypesToUpdate []*taxonomy.CourseType
	ExamTypesToUpdate   []*taxonomy.ExamType

	CoursesToCreate []*course.Course
	CoursesToUpdate []*course.Course

	EvaluationsToCreate []*evaluation.Evaluation
	EvaluationsToUpdate []*evaluation.Evaluation

	Contributions []*evaluation.Contribution

	ParticipantsAdded int
}

func NewPlan() *Plan {
	return &Plan{}
}

// AdoptTaxonomies moves the entries a resolver minted during planning into
// the plan so they are persisted before anything references them.
func (p *Plan) AdoptTaxonomies(resolver *TaxonomyResolver) {
	p.ProgramsToCreate = append(p.ProgramsToCreate, resolver.CreatedPrograms()...)
	p.CourseTypesToCreate = append(p.CourseTypesToCreate, resolver.CreatedCourseTypes()...)
	p.ExamTypesToCreate = append(p.ExamTypesToCreate, resolver.CreatedExamTypes()...)
}

func (p *Plan) IsEmpty() bool {
	return len(p.UsersToUpdate) == 0 && len(p.UsersToCreate) == 0 &&
		len(p.ProgramsToCreate) == 0 && len(p.CourseTypesToCreate) == 0 && len(p.ExamTypesToCreate) == 0 &&
		len(p.CourseTypesToUpdate) == 0 && len(p.ExamTypesToUpdate) == 0 &&
		len(p.CoursesToCreate) == 0 && len(p.CoursesToUpdate) == 0 &&
		len(p.EvaluationsToCreate) == 0 && len(p.EvaluationsToUpdate) == 0 &&
		len(p.Contributions) == 0
}

// CommitEngine persists a plan. The write order is fixed so every foreign
// reference is stored before its first use: user updates, user creations,
// taxonomies, courses, evaluations with their participants, contributions.
type CommitEngine struct {
	users       user.Repository
	taxonomies  taxonomy.Repository
	courses     course.Repository
	evaluations evaluation.Repository
}

func NewCommitEngine(
	users user.Repository,
	taxonomies taxonomy.Repository,
	courses course.Repository,
	evaluations evaluation.Repository,
) *CommitEngine {
	return &CommitEngine{users: users, taxonomies: taxonomies, courses: courses, evaluations: evaluations}
}

func (e *CommitEngine) Apply(ctx context.Context, plan *Plan) error {
	for _, u := range plan.UsersToUpdate {
		if err := e.users.Update(ctx, u); err != nil {
			return errors.Wrapf(err, "update user %q", u.Email())
		}
	}
	for _, u := range plan.UsersToCreate {
		if err := e.users.Create(ctx, u); err != nil {
			return errors.Wrapf(err, "create user %q", u.Email())
		}
	}

	for _, p := range plan.ProgramsToCreate {
		if err := e.taxonomies.CreateProgram(ctx, p); err != nil {
			return errors.Wrapf(err, "create program %q", p.NameEN())
		}
	}
	for _, t := range plan.CourseTypesToCreate {
		if err := e.taxonomies.CreateCourseType(ctx, t); err != nil {
			return errors.Wrapf(err, "create course type %q", t.NameEN())
		}
	}
	for _, t := range plan.ExamTypesToCreate {
		if err := e.taxonomies.CreateExamType(ctx, t); err != nil {
			return errors.Wrapf(err, "create exam type %q", t.NameEN())
		}
	}
	for _, t := range plan.CourseTypesToUpdate {
		if err := e.taxonomies.UpdateCourseType(ctx, t); err != nil {
			return errors.Wrapf(err, "update course type %q", t.NameEN())
		}
	}
	for _, t := range plan.ExamTypesToUpdate {
		if err := e.taxonomies.UpdateExamType(ctx, t); err != nil {
			return errors.Wrapf(err, "update exam type %q", t.NameEN())
		}
	}

	for _, c := range plan.CoursesToCreate {
		if err := e.courses.Create(ctx, c); err != nil {
			return errors.Wrapf(err, "create course %q", c.NameEN())
		}
	}
	for _, c := range plan.CoursesToUpdate {
		if err := e.courses.Update(ctx, c); err != nil {
			return errors.Wrapf(err, "update course %q", c.NameEN())
		}
	}

	for _, ev := range plan.EvaluationsToCreate {
		if err := e.evaluations.Create(ctx, ev); err != nil {
			return errors.Wrapf(err, "create evaluation %q", ev.ID())
		}
	}
	for _, ev := range plan.EvaluationsToUpdate {
		if err := e.evaluations.Update(ctx, ev); err != nil {
			return errors.Wrapf(err, "update evaluation %q", ev.ID())
		}
	}

	for _, c := range plan.Contributions {
		if err := e.evaluations.SaveContribution(ctx, c); err != nil {
			return errors.Wrapf(err, "save contribution for evaluation %q", c.EvaluationID())
		}
	}
	return nil
}

// Summarize appends the RESULT lines describing what the plan does. The
// counts are identical for a test run and its real run; only the wording
// differs.
func Summarize(rep *Report, plan *Plan) {
	add := func(testRun, realRun string, args ...any) {
		if rep.IsTestRun() {
			rep.AddSuccess(fmt.Sprintf(testRun, args...), CategoryResult)
		} else {
			rep.AddSuccess(fmt.Sprintf(realRun, args...), CategoryResult)
		}
	}

	if n := len(plan.CoursesToCreate); n > 0 {
		add("The import run will create %d courses and %d evaluations.",
			"Successfully created %d courses and %d evaluations.",
			n, len(plan.EvaluationsToCreate))
	}
	if n := len(plan.UsersToCreate); n > 0 {
		add("The import run will create %d users.", "Successfully created %d users.", n)
	}
	if n := len(plan.UsersToUpdate); n > 0 {
		add("The import run will update %d users.", "Successfully updated %d users.", n)
	}
	if n := plan.ParticipantsAdded; n > 0 {
		add("The import run will enroll %d participants.", "Successfully enrolled %d participants.", n)
	}
	if n := len(plan.ProgramsToCreate); n > 0 {
		add("The import run will create %d programs.", "Successfully created %d programs.", n)
	}
	if n := len(plan.CourseTypesToCreate); n > 0 {
		add("The import run will create %d course types.", "Successfully created %d course types.", n)
	}
	if n := len(plan.ExamTypesToCreate); n > 0 {
		add("The import run will create %d exam types.", "Successfully created %d exam types.", n)
	}
	if n := len(plan.CoursesToUpdate); n > 0 {
		add("The import run will update %d courses.", "Successfully updated %d courses.", n)
	}
	if n := len(plan.EvaluationsToUpdate); n > 0 {
		add("The import run will update %d evaluations.", "Successfully updated %d evaluations.", n)
	}
	if plan.IsEmpty() {
		rep.AddSuccess("Nothing to import: the data is already up to date.", CategoryResult)
	}
}
