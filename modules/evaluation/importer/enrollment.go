package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/course"
	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/evaluation"
)

// courseNameSimilarityThreshold is the normalized Levenshtein similarity
// above which two course names in one batch are flagged as suspiciously
// similar.
const courseNameSimilarityThreshold = 0.9

// EnrollmentPlannerOptions carries the tunables of the enrollment planner.
type EnrollmentPlannerOptions struct {
	// MaxEnrollments is the number of enrollments per student above which a
	// warning is raised.
	MaxEnrollments int
}

// EnrollmentPlanner groups typed enrollment rows into courses, checks them
// for internal and stored-data conflicts and produces the write plan for one
// batch. It never writes; committing the plan is the engine's job.
type EnrollmentPlanner struct {
	courses     course.Repository
	evaluations evaluation.Repository
	opts        EnrollmentPlannerOptions
}

func NewEnrollmentPlanner(courses course.Repository, evaluations evaluation.Repository, opts EnrollmentPlannerOptions) *EnrollmentPlanner {
	return &EnrollmentPlanner{courses: courses, evaluations: evaluations, opts: opts}
}

// courseGroup is the merged view of all rows sharing one English course name.
type courseGroup struct {
	first    EnrollmentRow
	rows     []EnrollmentRow
	programs []uuid.UUID
	students []string
}

func (p *EnrollmentPlanner) Plan(
	ctx context.Context,
	rep *Report,
	semesterID uuid.UUID,
	rows []EnrollmentRow,
	resolver *TaxonomyResolver,
	people *PeopleResult,
	voteStart time.Time,
	voteEnd time.Time,
) (*Plan, error) {
	missingPrograms := NewFirstLocationAndCountTracker()
	missingCourseTypes := NewFirstLocationAndCountTracker()
	duplicateEnrollments := NewFirstLocationAndCountTracker()

	groups := make(map[string]*courseGroup)
	var groupOrder []string
	nameDEOwner := make(map[string]string)
	enrollmentsPerStudent := make(map[string]int)

	for _, row := range rows {
		p.checkIsGraded(rep, row)

		program, ok := resolver.Program(row.ProgramName)
		if !ok {
			missingPrograms.Add(CategoryProgramMissing, row.ProgramName, row.Location)
		}
		if _, ok := resolver.CourseType(row.CourseKind); !ok {
			missingCourseTypes.Add(CategoryCourseTypeMissing, row.CourseKind, row.Location)
		}

		g, seen := groups[row.NameEN]
		if !seen {
			g = &courseGroup{first: row}
			groups[row.NameEN] = g
			groupOrder = append(groupOrder, row.NameEN)
			if owner, used := nameDEOwner[row.NameDE]; used && owner != row.NameEN {
				rep.AddError(
					fmt.Sprintf("%s: The German course name '%s' is used by multiple courses.", row.Location, row.NameDE),
					CategoryCourse,
				)
			} else {
				nameDEOwner[row.NameDE] = row.NameEN
			}
		} else if !sameCourseData(g.first, row) {
			rep.AddError(
				fmt.Sprintf("%s: The data of course '%s' differs from its data in a previous row.", row.Location, row.NameEN),
				CategoryCourse,
			)
		}
		g.rows = append(g.rows, row)
		if ok {
			appendUnique(&g.programs, program.ID())
		}
		if containsString(g.students, row.Student.Email) {
			duplicateEnrollments.Add(CategoryIgnored, row.Student.Email+"\x00"+row.NameEN, row.Location)
		} else {
			g.students = append(g.students, row.Student.Email)
			enrollmentsPerStudent[row.Student.Email]++
		}
	}

	missingPrograms.Each(func(_ Category, name string, location string) {
		rep.AddError(
			fmt.Sprintf("%s: No program is associated with the import name '%s'. Please manually create it first.", location, name),
			CategoryProgramMissing,
		)
	})
	missingCourseTypes.Each(func(_ Category, name string, location string) {
		rep.AddError(
			fmt.Sprintf("%s: No course type is associated with the import name '%s'. Please manually create it first.", location, name),
			CategoryCourseTypeMissing,
		)
	})
	duplicateEnrollments.Each(func(_ Category, key string, location string) {
		email, courseName, _ := strings.Cut(key, "\x00")
		rep.AddWarning(
			fmt.Sprintf("%s: The duplicated enrollment of student '%s' in course '%s' was ignored.", location, email, courseName),
			CategoryIgnored,
		)
	})

	p.checkEnrollmentCounts(rep, rows, people, enrollmentsPerStudent)

	stored, err := p.courses.ListBySemester(ctx, semesterID)
	if err != nil {
		return nil, errors.Wrap(err, "list semester courses")
	}
	storedByNameEN := make(map[string]*course.Course, len(stored))
	for _, c := range stored {
		storedByNameEN[c.NameEN()] = c
	}

	plan := NewPlan()
	plan.UsersToCreate = people.New
	plan.UsersToUpdate = people.Updated

	alreadyParticipating := NewFirstLocationAndCountTracker()
	for _, nameEN := range groupOrder {
		g := groups[nameEN]
		if existing, ok := storedByNameEN[nameEN]; ok {
			if err := p.extendExisting(ctx, rep, plan, existing, g, people, alreadyParticipating); err != nil {
				return nil, err
			}
			continue
		}
		p.planNewCourse(rep, plan, semesterID, g, resolver, people, voteStart, voteEnd)
	}
	alreadyParticipating.Each(func(_ Category, key string, location string) {
		email, courseName, _ := strings.Cut(key, "\x00")
		rep.AddWarning(
			fmt.Sprintf("%s: The student '%s' is already enrolled in course '%s'.", location, email, courseName),
			CategoryAlreadyParticipating,
		)
	})

	p.checkSimilarNames(rep, groupOrder)
	return plan, nil
}

func (p *EnrollmentPlanner) checkIsGraded(rep *Report, row EnrollmentRow) {
	switch strings.ToLower(row.IsGraded) {
	case "yes", "no":
	default:
		rep.AddError(
			fmt.Sprintf("%s: '%s' is not a valid value for 'is graded'. Allowed values are 'yes' and 'no'.", row.Location, row.IsGraded),
			CategoryIsGraded,
		)
	}
}

func (p *EnrollmentPlanner) checkEnrollmentCounts(rep *Report, rows []EnrollmentRow, people *PeopleResult, counts map[string]int) {
	seen := make(map[string]struct{}, len(counts))
	for _, row := range rows {
		email := row.Student.Email
		if _, done := seen[email]; done {
			continue
		}
		seen[email] = struct{}{}
		if counts[email] <= p.opts.MaxEnrollments {
			continue
		}
		name := email
		if u, ok := people.ByEmail[email]; ok {
			name = u.FullName()
		}
		rep.AddWarning(
			fmt.Sprintf("The student '%s' has %d enrollments, more than the maximum of %d.", name, counts[email], p.opts.MaxEnrollments),
			CategoryTooManyEnrollments,
		)
	}
}

// extendExisting merges a file course group into a stored course. Stored data
// wins: the file may only add programs and participants, never change names,
// type or responsibles.
func (p *EnrollmentPlanner) extendExisting(
	ctx context.Context,
	rep *Report,
	plan *Plan,
	existing *course.Course,
	g *courseGroup,
	people *PeopleResult,
	alreadyParticipating *FirstLocationAndCountTracker,
) error {
	rep.AddWarning(
		fmt.Sprintf("Course '%s' already exists in this semester and %s created again.", existing.NameEN(), rep.tense("will not be", "was not")),
		CategoryExists,
	)

	courseChanged := false
	for _, programID := range g.programs {
		if existing.AddProgram(programID) {
			courseChanged = true
		}
	}
	if courseChanged {
		rep.AddWarning(
			fmt.Sprintf("The programs of the existing course '%s' %s extended with the programs from the file.", existing.NameEN(), rep.tense("will be", "were")),
			CategoryProgram,
		)
		plan.CoursesToUpdate = append(plan.CoursesToUpdate, existing)
	}

	evals, err := p.evaluations.ListByCourse(ctx, existing.ID())
	if err != nil {
		return errors.Wrapf(err, "list evaluations of course %q", existing.NameEN())
	}
	if len(evals) == 0 {
		rep.AddError(
			fmt.Sprintf("Course '%s' already exists but has no evaluation to enroll students into.", existing.NameEN()),
			CategoryCourse,
		)
		return nil
	}
	eval := evals[0]
	if !eval.CanBeEditedByManager() {
		rep.AddError(
			fmt.Sprintf("The evaluation of course '%s' has already been approved and cannot be changed.", existing.NameEN()),
			CategoryCourse,
		)
		return nil
	}

	evalChanged := false
	for _, row := range g.rows {
		u, ok := people.ByEmail[row.Student.Email]
		if !ok {
			continue
		}
		if eval.HasParticipant(u.ID()) {
			alreadyParticipating.Add(CategoryAlreadyParticipating, row.Student.Email+"\x00"+existing.NameEN(), row.Location)
			continue
		}
		eval.AddParticipant(u.ID())
		evalChanged = true
		plan.ParticipantsAdded++
	}
	if evalChanged {
		plan.EvaluationsToUpdate = append(plan.EvaluationsToUpdate, eval)
	}
	return nil
}

func (p *EnrollmentPlanner) planNewCourse(
	rep *Report,
	plan *Plan,
	semesterID uuid.UUID,
	g *courseGroup,
	resolver *TaxonomyResolver,
	people *PeopleResult,
	voteStart time.Time,
	voteEnd time.Time,
) {
	courseType, ok := resolver.CourseType(g.first.CourseKind)
	if !ok {
		// already reported via the missing-course-type tracker
		return
	}
	responsible, ok := people.ByEmail[g.first.Responsible.Email]
	if !ok {
		return
	}

	isGraded := strings.EqualFold(g.first.IsGraded, "yes")
	c := course.New(
		semesterID, g.first.NameDE, g.first.NameEN, courseType.ID(),
		course.WithGraded(isGraded),
		course.WithPrograms(g.programs...),
		course.WithResponsibles(responsible.ID()),
	)
	plan.CoursesToCreate = append(plan.CoursesToCreate, c)

	eval, err := evaluation.New(c.ID(), voteStart, voteEnd, evaluation.WithWaitForGradeUpload(isGraded))
	if err != nil {
		rep.AddError(
			fmt.Sprintf("Couldn't create the evaluation for course '%s': %v.", c.NameEN(), err),
			CategoryCourse,
		)
		return
	}
	for _, email := range g.students {
		if u, ok := people.ByEmail[email]; ok {
			eval.AddParticipant(u.ID())
			plan.ParticipantsAdded++
		}
	}
	plan.EvaluationsToCreate = append(plan.EvaluationsToCreate, eval)
	plan.Contributions = append(plan.Contributions,
		evaluation.NewGeneralContribution(eval.ID()),
		evaluation.NewContribution(eval.ID(), responsible.ID(), evaluation.RoleEditor),
	)
}

func (p *EnrollmentPlanner) checkSimilarNames(rep *Report, names []string) {
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if nameSimilarity(names[i], names[j]) > courseNameSimilarityThreshold {
				rep.AddWarning(
					fmt.Sprintf("The course names '%s' and '%s' are very similar. Please check that they are actually different courses.", names[i], names[j]),
					CategorySimilarCourseNames,
				)
			}
		}
	}
}

// nameSimilarity maps the Levenshtein distance of two names onto [0, 1],
// where 1 means equal.
func nameSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// sameCourseData compares the course-level columns of two rows; program and
// student columns legitimately vary between rows of one course.
func sameCourseData(a, b EnrollmentRow) bool {
	return a.CourseKind == b.CourseKind &&
		strings.EqualFold(a.IsGraded, b.IsGraded) &&
		a.NameDE == b.NameDE &&
		a.Responsible.Email == b.Responsible.Email
}

func appendUnique(ids *[]uuid.UUID, id uuid.UUID) {
	for _, existing := range *ids {
		if existing == id {
			return
		}
	}
	*ids = append(*ids, id)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
