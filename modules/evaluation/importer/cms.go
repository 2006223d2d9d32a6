package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/course"
	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/evaluation"
	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/user"
	"github.com/evapdev/evap/modules/evaluation/domain/entities/taxonomy"
)

// cmsTimeLayout is the timestamp format of the campus management feed.
const cmsTimeLayout = "02.01.2006 15:04:05"

// CMSTime wraps time.Time with the feed's timestamp format.
type CMSTime struct {
	time.Time
}

func (t *CMSTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(cmsTimeLayout, s)
	if err != nil {
		return errors.Wrapf(err, "parse CMS timestamp %q", s)
	}
	t.Time = parsed
	return nil
}

type CMSPerson struct {
	GGUID     string `json:"gguid"`
	Email     string `json:"email"`
	Title     string `json:"titlefront"`
	FirstName string `json:"christianname"`
	LastName  string `json:"name"`
}

type CMSProgramRef struct {
	CPRID string `json:"cprid"`
	Scale string `json:"scale"`
}

type CMSRef struct {
	GGUID string `json:"gguid"`
}

type CMSAppointment struct {
	Begin CMSTime `json:"begin"`
	End   CMSTime `json:"end"`
}

type CMSEvent struct {
	GGUID         string           `json:"gguid"`
	Title         string           `json:"title"`
	TitleEN       string           `json:"title_en"`
	Type          string           `json:"type"`
	Language      string           `json:"language"`
	IsExam        bool             `json:"isexam"`
	Programs      []CMSProgramRef  `json:"courses"`
	RelatedEvents []CMSRef         `json:"relatedevents"`
	Appointments  []CMSAppointment `json:"appointments"`
	Lecturers     []CMSRef         `json:"lecturers"`
	Students      []CMSRef         `json:"students"`
}

type CMSFeed struct {
	Students  []CMSPerson `json:"students"`
	Lecturers []CMSPerson `json:"lecturers"`
	Events    []CMSEvent  `json:"events"`
}

// CMSStatistics summarizes one feed run for the manager notification.
type CMSStatistics struct {
	NameChanges        []NameChange
	NewCourses         []string
	UpdatedCourses     []string
	NewEvaluations     []string
	UpdatedEvaluations []string
	AttemptedChanges   []string
	Warnings           []string
}

// CMSOptions are the site-specific tunables of the feed importer.
type CMSOptions struct {
	// IgnoreUsers lists email addresses dropped from the feed entirely.
	IgnoreUsers []string
	// NonResponsibleUsers lists lecturers that contribute but are never made
	// responsible for a course.
	NonResponsibleUsers []string
	// IgnorePrograms lists program import names dropped from the feed.
	IgnorePrograms []string

	MainEvaluationWeight   int
	ExamEvaluationWeight   int
	ExamEvaluationDuration time.Duration
}

// CMSImporter ingests the campus management JSON feed. Events carry stable
// gguids, so repeated runs of the same feed are idempotent: courses and
// evaluations are matched by their stored CMS id and only changed fields are
// written.
type CMSImporter struct {
	users       user.Repository
	courses     course.Repository
	evaluations evaluation.Repository
	opts        CMSOptions
	clock       Clock
}

func NewCMSImporter(
	users user.Repository,
	courses course.Repository,
	evaluations evaluation.Repository,
	opts CMSOptions,
	clock Clock,
) *CMSImporter {
	if clock == nil {
		clock = SystemClock()
	}
	return &CMSImporter{users: users, courses: courses, evaluations: evaluations, opts: opts, clock: clock}
}

// cmsRun keeps the per-run working state together so the helper methods
// don't pass a dozen arguments around.
type cmsRun struct {
	rep        *Report
	semesterID uuid.UUID
	resolver   *TaxonomyResolver
	plan       *Plan
	stats      *CMSStatistics

	persons      map[string]CMSPerson
	people       *PeopleResult
	examsByEvent map[string][]CMSEvent
}

// noteCourseChanged queues a stored course for writing unless it is already
// part of the plan.
func (r *cmsRun) noteCourseChanged(c *course.Course) {
	for _, planned := range r.plan.CoursesToCreate {
		if planned == c {
			return
		}
	}
	for _, planned := range r.plan.CoursesToUpdate {
		if planned == c {
			return
		}
	}
	r.plan.CoursesToUpdate = append(r.plan.CoursesToUpdate, c)
	r.stats.UpdatedCourses = append(r.stats.UpdatedCourses, c.NameEN())
}

func (i *CMSImporter) Import(
	ctx context.Context,
	rep *Report,
	semesterID uuid.UUID,
	resolver *TaxonomyResolver,
	data []byte,
) (*Plan, *CMSStatistics, error) {
	run := &cmsRun{
		rep:          rep,
		semesterID:   semesterID,
		resolver:     resolver,
		plan:         NewPlan(),
		stats:        &CMSStatistics{},
		examsByEvent: make(map[string][]CMSEvent),
	}

	// every course keeps at least one evaluation with positive weight, which
	// the main evaluation's weight must guarantee
	if i.opts.MainEvaluationWeight < 1 {
		rep.AddError(
			fmt.Sprintf("The configured main evaluation weight must be positive, got %d.", i.opts.MainEvaluationWeight),
			CategoryGeneral,
		)
		return run.plan, run.stats, nil
	}

	var feed CMSFeed
	if err := json.Unmarshal(data, &feed); err != nil {
		rep.AddError(fmt.Sprintf("Couldn't parse the CMS feed: %v.", err), CategorySchema)
		return run.plan, run.stats, nil
	}

	run.persons = make(map[string]CMSPerson, len(feed.Students)+len(feed.Lecturers))
	for _, p := range feed.Students {
		run.persons[p.GGUID] = p
	}
	for _, p := range feed.Lecturers {
		run.persons[p.GGUID] = p
	}

	people, err := NewPeopleReconciler(i.users, WithSilentDuplicates()).
		Reconcile(ctx, rep, i.personRecords(run, feed))
	if err != nil {
		return nil, nil, err
	}
	run.people = people
	run.plan.UsersToCreate = people.New
	run.plan.UsersToUpdate = people.Updated
	run.stats.NameChanges = people.Renamed

	var courseEvents []CMSEvent
	var orphanExams []CMSEvent
	for _, ev := range feed.Events {
		switch {
		case !ev.IsExam:
			courseEvents = append(courseEvents, ev)
		case len(ev.RelatedEvents) == 0:
			orphanExams = append(orphanExams, ev)
		default:
			for _, rel := range ev.RelatedEvents {
				run.examsByEvent[rel.GGUID] = append(run.examsByEvent[rel.GGUID], ev)
			}
		}
	}

	names, err := i.disambiguateNames(ctx, run, courseEvents)
	if err != nil {
		return nil, nil, err
	}

	for _, ev := range courseEvents {
		if err := i.importCourseEvent(ctx, run, ev, names[ev.GGUID]); err != nil {
			return nil, nil, err
		}
	}
	for _, exam := range orphanExams {
		if err := i.importOrphanExam(ctx, run, exam); err != nil {
			return nil, nil, err
		}
	}

	run.plan.AdoptTaxonomies(resolver)
	return run.plan, run.stats, nil
}

// personRecords converts the feed's person lists into user records for the
// reconciler. Lecturers come first so their titles win when a person appears
// in both lists; ignored and email-less persons are dropped up front.
func (i *CMSImporter) personRecords(run *cmsRun, feed CMSFeed) []UserRecord {
	seen := make(map[string]struct{}, len(feed.Students)+len(feed.Lecturers))
	var records []UserRecord
	add := func(p CMSPerson, title string) {
		email := user.NormalizeEmail(p.Email)
		if email == "" {
			run.rep.AddWarning(
				fmt.Sprintf("The person '%s %s' has no email address and was skipped.", NormalizeCell(p.FirstName), NormalizeCell(p.LastName)),
				CategoryUser,
			)
			return
		}
		if i.userIgnored(email) {
			return
		}
		if _, dup := seen[email]; dup {
			return
		}
		seen[email] = struct{}{}
		records = append(records, UserRecord{
			Email:          email,
			Title:          title,
			FirstNameGiven: NormalizeCell(p.FirstName),
			LastName:       NormalizeCell(p.LastName),
		})
	}
	for _, p := range feed.Lecturers {
		add(p, NormalizeCell(p.Title))
	}
	for _, p := range feed.Students {
		add(p, "")
	}
	return records
}

type courseNames struct {
	de string
	en string
}

// disambiguateNames makes event names unique within the semester. When two
// events (or an event and an unrelated stored course) share a name, later
// occurrences get a numeric suffix: "Math II", "Math II (2)", "Math II (3)".
func (i *CMSImporter) disambiguateNames(ctx context.Context, run *cmsRun, events []CMSEvent) (map[string]courseNames, error) {
	stored, err := i.courses.ListBySemester(ctx, run.semesterID)
	if err != nil {
		return nil, errors.Wrap(err, "list semester courses")
	}

	usedDE := make(map[string]string) // name -> cms id of the owner
	usedEN := make(map[string]string)
	for _, c := range stored {
		usedDE[c.NameDE()] = c.CMSID()
		usedEN[c.NameEN()] = c.CMSID()
	}

	out := make(map[string]courseNames, len(events))
	for _, ev := range events {
		de := uniqueName(NormalizeCell(ev.Title), ev.GGUID, usedDE)
		en := uniqueName(NormalizeCell(ev.TitleEN), ev.GGUID, usedEN)
		if de != NormalizeCell(ev.Title) || en != NormalizeCell(ev.TitleEN) {
			run.rep.AddWarning(
				fmt.Sprintf("The name of event '%s' collides with another course and was imported as '%s'.", ev.Title, de),
				CategoryName,
			)
		}
		out[ev.GGUID] = courseNames{de: de, en: en}
	}
	return out, nil
}

func uniqueName(name, cmsID string, used map[string]string) string {
	if owner, taken := used[name]; !taken || owner == cmsID {
		used[name] = cmsID
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", name, n)
		if owner, taken := used[candidate]; !taken || owner == cmsID {
			used[candidate] = cmsID
			return candidate
		}
	}
}

func (i *CMSImporter) importCourseEvent(ctx context.Context, run *cmsRun, ev CMSEvent, names courseNames) error {
	courseType, created := run.resolver.EnsureCourseType(ev.Type)
	if !created && courseType.SkipOnAutomatedImport() {
		run.rep.AddWarning(
			fmt.Sprintf("The event '%s' has the course type '%s', which is skipped on automated imports.", ev.Title, ev.Type),
			CategoryIgnored,
		)
		return nil
	}

	var programIDs []uuid.UUID
	gradedScale := false
	for _, ref := range ev.Programs {
		if ref.Scale != "" {
			gradedScale = true
		}
		if i.programIgnored(ref.CPRID) {
			continue
		}
		program, _ := run.resolver.EnsureProgram(ref.CPRID)
		appendUnique(&programIDs, program.ID())
	}

	lecturers, responsibleIDs := i.resolveLecturers(run, ev)
	participants := i.resolveStudents(run, ev)
	lang := i.mainLanguage(run, ev)

	c, isNew, err := i.upsertCourse(ctx, run, ev, names, courseType.ID(), gradedScale, programIDs, responsibleIDs)
	if err != nil || c == nil {
		return err
	}

	voteStart, voteEnd := i.evaluationWindow(run, ev)
	voteEnd = i.shortenForExams(run, ev, names.en, voteStart, voteEnd)

	eval, err := i.upsertMainEvaluation(ctx, run, ev, c, names, isNew, voteStart, voteEnd, lang, participants)
	if err != nil {
		return err
	}
	if eval != nil {
		i.planContributions(run, eval, lecturers, responsibleIDs)
	}

	for _, exam := range run.examsByEvent[ev.GGUID] {
		if err := i.importExamEvent(ctx, run, exam, c, participants); err != nil {
			return err
		}
	}
	return nil
}

// importOrphanExam handles an exam event that names no related course event.
// When the title segment before " - " matches a course type import name and a
// course of that name exists, the exam is attached there; otherwise the event
// is dropped.
func (i *CMSImporter) importOrphanExam(ctx context.Context, run *cmsRun, exam CMSEvent) error {
	prefix, _, cut := strings.Cut(NormalizeCell(exam.Title), " - ")
	if cut {
		if _, ok := run.resolver.CourseType(prefix); ok {
			c, err := i.findCourseByName(ctx, run, prefix)
			if err != nil {
				return err
			}
			if c != nil {
				return i.importExamEvent(ctx, run, exam, c, i.resolveStudents(run, exam))
			}
		}
	}
	run.rep.AddWarning(
		fmt.Sprintf("No related event or matching prefix found for the exam '%s'; the event was skipped.", exam.Title),
		CategoryGeneral,
	)
	return nil
}

// findCourseByName looks for a course of the given name, first among the
// courses of this run, then in the store.
func (i *CMSImporter) findCourseByName(ctx context.Context, run *cmsRun, name string) (*course.Course, error) {
	for _, list := range [][]*course.Course{run.plan.CoursesToCreate, run.plan.CoursesToUpdate} {
		for _, c := range list {
			if c.NameDE() == name || c.NameEN() == name {
				return c, nil
			}
		}
	}
	c, err := i.courses.GetByNameDE(ctx, run.semesterID, name)
	if errors.Is(err, course.ErrCourseNotFound) {
		c, err = i.courses.GetByNameEN(ctx, run.semesterID, name)
	}
	switch {
	case errors.Is(err, course.ErrCourseNotFound):
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "look up course %q", name)
	}
	return c, nil
}

func (i *CMSImporter) programIgnored(name string) bool {
	for _, ignored := range i.opts.IgnorePrograms {
		if strings.EqualFold(ignored, name) {
			return true
		}
	}
	return false
}

func (i *CMSImporter) userIgnored(email string) bool {
	for _, ignored := range i.opts.IgnoreUsers {
		if strings.EqualFold(ignored, email) {
			return true
		}
	}
	return false
}

func (i *CMSImporter) userNonResponsible(email string) bool {
	for _, nr := range i.opts.NonResponsibleUsers {
		if strings.EqualFold(nr, email) {
			return true
		}
	}
	return false
}

// mainLanguage maps the event's language label onto the evaluation language.
func (i *CMSImporter) mainLanguage(run *cmsRun, ev CMSEvent) evaluation.Language {
	switch NormalizeCell(ev.Language) {
	case "Deutsch":
		return evaluation.LanguageDE
	case "Englisch":
		return evaluation.LanguageEN
	default:
		run.rep.AddWarning(
			fmt.Sprintf("The event '%s' has the unknown language '%s'; the evaluation language stays undecided.", ev.Title, ev.Language),
			CategoryGeneral,
		)
		return evaluation.LanguageUndecided
	}
}

// resolveLecturers maps the event's lecturer refs to accounts. Blacklisted
// lecturers are dropped entirely; the remaining ones contribute. Responsibles
// are the eligible lecturers with the longest title string, a heuristic that
// prefers the most-qualified contacts.
func (i *CMSImporter) resolveLecturers(run *cmsRun, ev CMSEvent) ([]*user.User, []uuid.UUID) {
	var lecturers []*user.User
	var eligible []*user.User
	for _, ref := range ev.Lecturers {
		u := i.resolvePerson(run, ref.GGUID)
		if u == nil {
			continue
		}
		lecturers = append(lecturers, u)
		if !i.userNonResponsible(u.Email()) {
			eligible = append(eligible, u)
		}
	}

	maxTitle := 0
	for _, u := range eligible {
		if n := len(u.Title()); n > maxTitle {
			maxTitle = n
		}
	}
	var responsibleIDs []uuid.UUID
	for _, u := range eligible {
		if len(u.Title()) == maxTitle {
			appendUnique(&responsibleIDs, u.ID())
		}
	}
	return lecturers, responsibleIDs
}

func (i *CMSImporter) resolveStudents(run *cmsRun, ev CMSEvent) []*user.User {
	var out []*user.User
	for _, ref := range ev.Students {
		if u := i.resolvePerson(run, ref.GGUID); u != nil {
			out = append(out, u)
		}
	}
	return out
}

// resolvePerson turns a gguid reference into the reconciled account. Ignored
// persons and persons without email resolve to nothing; their handling was
// reported while building the records.
func (i *CMSImporter) resolvePerson(run *cmsRun, gguid string) *user.User {
	p, ok := run.persons[gguid]
	if !ok {
		run.rep.AddWarning(fmt.Sprintf("An event references the unknown person '%s'.", gguid), CategoryUser)
		return nil
	}
	return run.people.ByEmail[user.NormalizeEmail(p.Email)]
}

func (i *CMSImporter) upsertCourse(
	ctx context.Context,
	run *cmsRun,
	ev CMSEvent,
	names courseNames,
	courseTypeID uuid.UUID,
	graded bool,
	programIDs []uuid.UUID,
	responsibleIDs []uuid.UUID,
) (*course.Course, bool, error) {
	existing, err := i.courses.GetByCMSID(ctx, run.semesterID, ev.GGUID)
	switch {
	case errors.Is(err, course.ErrCourseNotFound):
		c := course.New(
			run.semesterID, names.de, names.en, courseTypeID,
			course.WithGraded(graded),
			course.WithPrograms(programIDs...),
			course.WithResponsibles(responsibleIDs...),
			course.WithCMSID(ev.GGUID),
		)
		run.plan.CoursesToCreate = append(run.plan.CoursesToCreate, c)
		run.stats.NewCourses = append(run.stats.NewCourses, names.en)
		return c, true, nil
	case err != nil:
		return nil, false, errors.Wrapf(err, "look up course for event %q", ev.GGUID)
	}

	changed := false
	if existing.NameDE() != names.de || existing.NameEN() != names.en {
		existing.SetNames(names.de, names.en)
		changed = true
	}
	if existing.CourseTypeID() != courseTypeID {
		existing.SetCourseType(courseTypeID)
		changed = true
	}
	if existing.IsGraded() != graded {
		existing.SetGraded(graded)
		changed = true
	}
	for _, id := range programIDs {
		if existing.AddProgram(id) {
			changed = true
		}
	}
	if !sameIDSet(existing.ResponsibleIDs(), responsibleIDs) {
		existing.SetResponsibles(responsibleIDs)
		changed = true
	}
	if changed {
		run.plan.CoursesToUpdate = append(run.plan.CoursesToUpdate, existing)
		run.stats.UpdatedCourses = append(run.stats.UpdatedCourses, names.en)
	}
	return existing, false, nil
}

// evaluationWindow derives the main evaluation period from the event's
// appointments: Monday 08:00 of the week before the last appointment ends
// until Sunday of that final week.
func (i *CMSImporter) evaluationWindow(run *cmsRun, ev CMSEvent) (time.Time, time.Time) {
	end := i.clock.Now()
	if len(ev.Appointments) == 0 {
		run.rep.AddWarning(fmt.Sprintf("The event '%s' has no appointments.", ev.Title), CategoryGeneral)
	} else {
		end = ev.Appointments[0].End.Time
		for _, a := range ev.Appointments[1:] {
			if a.End.After(end) {
				end = a.End.Time
			}
		}
	}

	daysSinceMonday := (int(end.Weekday()) + 6) % 7
	monday := startOfDay(end).AddDate(0, 0, -daysSinceMonday)
	voteStart := atHour(monday.AddDate(0, 0, -7), 8)
	voteEnd := monday.AddDate(0, 0, 6)
	return voteStart, voteEnd
}

// shortenForExams moves the teaching evaluation's end before the earliest
// related exam, as long as at least three voting days remain.
func (i *CMSImporter) shortenForExams(run *cmsRun, ev CMSEvent, nameEN string, voteStart, voteEnd time.Time) time.Time {
	exams := run.examsByEvent[ev.GGUID]
	var earliest time.Time
	for _, exam := range exams {
		for _, a := range exam.Appointments {
			if a.Begin.IsZero() {
				continue
			}
			if earliest.IsZero() || a.Begin.Before(earliest) {
				earliest = a.Begin.Time
			}
		}
	}
	if earliest.IsZero() {
		return voteEnd
	}
	if !earliest.After(voteStart) {
		run.rep.AddWarning(
			fmt.Sprintf("The exam of course '%s' takes place before its main evaluation starts.", nameEN),
			CategoryGeneral,
		)
		return voteEnd
	}
	proposed := startOfDay(earliest).AddDate(0, 0, -1)
	if proposed.Sub(startOfDay(voteStart)) >= 3*24*time.Hour && proposed.Before(voteEnd) {
		return proposed
	}
	return voteEnd
}

func (i *CMSImporter) upsertMainEvaluation(
	ctx context.Context,
	run *cmsRun,
	ev CMSEvent,
	c *course.Course,
	names courseNames,
	courseIsNew bool,
	voteStart, voteEnd time.Time,
	lang evaluation.Language,
	participants []*user.User,
) (*evaluation.Evaluation, error) {
	if courseIsNew {
		eval, err := evaluation.New(c.ID(), voteStart, voteEnd,
			evaluation.WithWeight(i.opts.MainEvaluationWeight),
			evaluation.WithMainLanguage(lang),
			evaluation.WithWaitForGradeUpload(true),
			evaluation.WithCMSID(ev.GGUID),
		)
		if err != nil {
			run.rep.AddError(fmt.Sprintf("Couldn't create the evaluation for course '%s': %v.", names.en, err), CategoryCourse)
			return nil, nil
		}
		for _, u := range participants {
			eval.AddParticipant(u.ID())
			run.plan.ParticipantsAdded++
		}
		run.plan.EvaluationsToCreate = append(run.plan.EvaluationsToCreate, eval)
		run.stats.NewEvaluations = append(run.stats.NewEvaluations, names.en)
		return eval, nil
	}

	existing, err := i.evaluations.GetByCMSID(ctx, ev.GGUID)
	switch {
	case errors.Is(err, evaluation.ErrEvaluationNotFound):
		// course from an earlier run, evaluation deleted by a manager since
		run.rep.AddWarning(
			fmt.Sprintf("Course '%s' has no evaluation for CMS event '%s'; it was not recreated.", names.en, ev.GGUID),
			CategoryGeneral,
		)
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(err, "look up evaluation for event %q", ev.GGUID)
	}

	if !existing.CanBeEditedByManager() {
		if i.wouldChangeEvaluation(existing, voteStart, voteEnd, participants) || existing.MainLanguage() != lang {
			run.stats.AttemptedChanges = append(run.stats.AttemptedChanges, names.en)
			run.rep.AddWarning(
				fmt.Sprintf("The evaluation of course '%s' has already been approved; the changes from the CMS were not applied.", names.en),
				CategoryGeneral,
			)
		}
		return nil, nil
	}

	changed := false
	if !existing.VoteStartDatetime().Equal(voteStart) || !existing.VoteEndDate().Equal(startOfDay(voteEnd)) {
		if err := existing.SetVotePeriod(voteStart, voteEnd); err == nil {
			changed = true
		}
	}
	if existing.MainLanguage() != lang {
		existing.SetMainLanguage(lang)
		changed = true
	}
	inFeed := make(map[uuid.UUID]struct{}, len(participants))
	for _, u := range participants {
		inFeed[u.ID()] = struct{}{}
		if existing.AddParticipant(u.ID()) {
			run.plan.ParticipantsAdded++
			changed = true
		}
	}
	for _, id := range append([]uuid.UUID(nil), existing.ParticipantIDs()...) {
		if _, keep := inFeed[id]; keep {
			continue
		}
		// voters stay participants even when the feed dropped them
		if err := existing.RemoveParticipant(id); err == nil && !existing.HasParticipant(id) {
			changed = true
		}
	}
	if changed {
		run.plan.EvaluationsToUpdate = append(run.plan.EvaluationsToUpdate, existing)
		run.stats.UpdatedEvaluations = append(run.stats.UpdatedEvaluations, names.en)
	}
	return existing, nil
}

func (i *CMSImporter) wouldChangeEvaluation(existing *evaluation.Evaluation, voteStart, voteEnd time.Time, participants []*user.User) bool {
	if !existing.VoteStartDatetime().Equal(voteStart) || !existing.VoteEndDate().Equal(startOfDay(voteEnd)) {
		return true
	}
	inFeed := make(map[uuid.UUID]struct{}, len(participants))
	for _, u := range participants {
		inFeed[u.ID()] = struct{}{}
		if !existing.HasParticipant(u.ID()) {
			return true
		}
	}
	for _, id := range existing.ParticipantIDs() {
		if _, keep := inFeed[id]; !keep && !existing.IsVoter(id) {
			return true
		}
	}
	return false
}

func (i *CMSImporter) planContributions(run *cmsRun, eval *evaluation.Evaluation, lecturers []*user.User, responsibleIDs []uuid.UUID) {
	isNew := false
	for _, created := range run.plan.EvaluationsToCreate {
		if created == eval {
			isNew = true
			break
		}
	}
	if !isNew {
		// contributions of stored evaluations may have been curated by hand
		return
	}
	run.plan.Contributions = append(run.plan.Contributions, evaluation.NewGeneralContribution(eval.ID()))
	responsible := make(map[uuid.UUID]struct{}, len(responsibleIDs))
	for _, id := range responsibleIDs {
		responsible[id] = struct{}{}
	}
	for _, lecturer := range lecturers {
		role := evaluation.RoleContributor
		if _, ok := responsible[lecturer.ID()]; ok {
			role = evaluation.RoleEditor
		}
		run.plan.Contributions = append(run.plan.Contributions, evaluation.NewContribution(eval.ID(), lecturer.ID(), role))
	}
}

// importExamEvent creates or updates the exam evaluation of a course. The
// voting window opens the day after the exam at 08:00 and closes the
// configured duration after the exam itself.
func (i *CMSImporter) importExamEvent(
	ctx context.Context,
	run *cmsRun,
	exam CMSEvent,
	c *course.Course,
	participants []*user.User,
) error {
	examType, created := run.resolver.EnsureExamType(exam.Type)
	if !created && examType.SkipOnAutomatedImport() {
		run.rep.AddWarning(
			fmt.Sprintf("The exam '%s' has the exam type '%s', which is skipped on automated imports.", exam.Title, exam.Type),
			CategoryIgnored,
		)
		return nil
	}

	// the exam event carries its own program references; they extend the
	// course, and their scales decide whether grades must arrive before the
	// results are published
	examGraded := false
	for _, ref := range exam.Programs {
		if ref.Scale != "" {
			examGraded = true
		}
		if i.programIgnored(ref.CPRID) {
			continue
		}
		program, _ := run.resolver.EnsureProgram(ref.CPRID)
		if c.AddProgram(program.ID()) {
			run.noteCourseChanged(c)
		}
	}

	var examEnd time.Time
	for _, a := range exam.Appointments {
		if a.End.After(examEnd) {
			examEnd = a.End.Time
		}
	}
	if examEnd.IsZero() {
		run.rep.AddWarning(fmt.Sprintf("The exam '%s' has no appointments and was skipped.", exam.Title), CategoryGeneral)
		return nil
	}
	voteStart := atHour(startOfDay(examEnd).AddDate(0, 0, 1), 8)
	voteEnd := examEnd.Add(i.opts.ExamEvaluationDuration)

	existing, err := i.evaluations.GetByCMSID(ctx, exam.GGUID)
	switch {
	case errors.Is(err, evaluation.ErrEvaluationNotFound):
		nameDE, nameEN, err := i.examEvaluationNames(ctx, run, c, exam, examType)
		if err != nil {
			return err
		}
		eval, err := evaluation.New(c.ID(), voteStart, voteEnd,
			evaluation.WithNames(nameDE, nameEN),
			evaluation.WithWeight(i.opts.ExamEvaluationWeight),
			evaluation.WithRewarded(false),
			evaluation.WithWaitForGradeUpload(examGraded),
			evaluation.WithExamType(examType.ID()),
			evaluation.WithCMSID(exam.GGUID),
		)
		if err != nil {
			run.rep.AddError(fmt.Sprintf("Couldn't create the exam evaluation '%s': %v.", exam.Title, err), CategoryCourse)
			return nil
		}
		for _, u := range participants {
			eval.AddParticipant(u.ID())
			run.plan.ParticipantsAdded++
		}
		run.plan.EvaluationsToCreate = append(run.plan.EvaluationsToCreate, eval)
		run.plan.Contributions = append(run.plan.Contributions, evaluation.NewGeneralContribution(eval.ID()))
		run.stats.NewEvaluations = append(run.stats.NewEvaluations, nameEN)
		return nil
	case err != nil:
		return errors.Wrapf(err, "look up exam evaluation %q", exam.GGUID)
	}

	if !existing.CanBeEditedByManager() {
		if i.wouldChangeEvaluation(existing, voteStart, voteEnd, participants) {
			run.stats.AttemptedChanges = append(run.stats.AttemptedChanges, existing.NameEN())
			run.rep.AddWarning(
				fmt.Sprintf("The exam evaluation '%s' has already been approved; the changes from the CMS were not applied.", exam.Title),
				CategoryGeneral,
			)
		}
		return nil
	}

	changed := false
	if !existing.VoteStartDatetime().Equal(voteStart) || !existing.VoteEndDate().Equal(startOfDay(voteEnd)) {
		if err := existing.SetVotePeriod(voteStart, voteEnd); err == nil {
			changed = true
		}
	}
	if existing.WaitForGradeUpload() != examGraded {
		existing.SetWaitForGradeUpload(examGraded)
		changed = true
	}
	for _, u := range participants {
		if existing.AddParticipant(u.ID()) {
			run.plan.ParticipantsAdded++
			changed = true
		}
	}
	if changed {
		run.plan.EvaluationsToUpdate = append(run.plan.EvaluationsToUpdate, existing)
		run.stats.UpdatedEvaluations = append(run.stats.UpdatedEvaluations, existing.NameEN())
	}
	return nil
}

// examEvaluationNames derives the evaluation names from the exam title (the
// segment after " - " when present, the exam type name otherwise) and makes
// them unique among the evaluations of the course.
func (i *CMSImporter) examEvaluationNames(
	ctx context.Context,
	run *cmsRun,
	c *course.Course,
	exam CMSEvent,
	examType *taxonomy.ExamType,
) (string, string, error) {
	stored, err := i.evaluations.ListByCourse(ctx, c.ID())
	if err != nil {
		return "", "", errors.Wrapf(err, "list evaluations of course %q", c.NameEN())
	}

	usedDE := make(map[string]struct{})
	usedEN := make(map[string]struct{})
	collect := func(evals []*evaluation.Evaluation) {
		for _, e := range evals {
			if e.CourseID() != c.ID() {
				continue
			}
			usedDE[e.NameDE()] = struct{}{}
			usedEN[e.NameEN()] = struct{}{}
		}
	}
	collect(stored)
	collect(run.plan.EvaluationsToCreate)
	collect(run.plan.EvaluationsToUpdate)

	de := suffixedName(examBaseName(exam.Title, examType.NameDE()), usedDE)
	en := suffixedName(examBaseName(exam.TitleEN, examType.NameEN()), usedEN)
	return de, en, nil
}

// examBaseName returns the segment of the title after " - " when present.
func examBaseName(title, fallback string) string {
	if _, after, found := strings.Cut(NormalizeCell(title), " - "); found && after != "" {
		return after
	}
	return fallback
}

// suffixedName appends " (n)" when the base name is taken, with n one above
// the highest suffix already in use.
func suffixedName(base string, used map[string]struct{}) string {
	if _, taken := used[base]; !taken {
		used[base] = struct{}{}
		return base
	}
	n := 2
	for name := range used {
		rest, ok := strings.CutPrefix(name, base+" (")
		if !ok {
			continue
		}
		digits, ok := strings.CutSuffix(rest, ")")
		if !ok {
			continue
		}
		if v, err := strconv.Atoi(digits); err == nil && v >= n {
			n = v + 1
		}
	}
	name := fmt.Sprintf("%s (%d)", base, n)
	used[name] = struct{}{}
	return name
}

// sameIDSet compares two id lists ignoring order.
func sameIDSet(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[uuid.UUID]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func atHour(t time.Time, hour int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, t.Location())
}
