package persistence

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/course"
	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/evaluation"
	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/user"
	"github.com/evapdev/evap/modules/evaluation/domain/entities/semester"
	"github.com/evapdev/evap/modules/evaluation/domain/entities/taxonomy"
)

type SafeMap[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func NewSafeMap[K comparable, V any]() *SafeMap[K, V] {
	return &SafeMap[K, V]{
		m: make(map[K]V),
	}
}

func (s *SafeMap[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

func (s *SafeMap[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, found := s.m[key]
	return val, found
}

func (s *SafeMap[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

func (s *SafeMap[K, V]) Values() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Collect(maps.Values(s.m))
}

func (s *SafeMap[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// InmemSemesterRepository backs tests and local tooling without a database.
type InmemSemesterRepository struct {
	storage *SafeMap[uuid.UUID, *semester.Semester]
}

func NewInmemSemesterRepository() *InmemSemesterRepository {
	return &InmemSemesterRepository{storage: NewSafeMap[uuid.UUID, *semester.Semester]()}
}

func (r *InmemSemesterRepository) GetByID(_ context.Context, id uuid.UUID) (*semester.Semester, error) {
	s, found := r.storage.Get(id)
	if !found {
		return nil, semester.ErrSemesterNotFound
	}
	return s, nil
}

func (r *InmemSemesterRepository) Active(_ context.Context) (*semester.Semester, error) {
	for _, s := range r.storage.Values() {
		if s.IsActive() {
			return s, nil
		}
	}
	return nil, semester.ErrNoActiveSemester
}

func (r *InmemSemesterRepository) Create(_ context.Context, s *semester.Semester) error {
	r.storage.Set(s.ID(), s)
	return nil
}

type InmemUserRepository struct {
	storage *SafeMap[uuid.UUID, *user.User]
}

func NewInmemUserRepository() *InmemUserRepository {
	return &InmemUserRepository{storage: NewSafeMap[uuid.UUID, *user.User]()}
}

func (r *InmemUserRepository) GetByEmail(_ context.Context, email string) (*user.User, error) {
	needle := user.NormalizeEmail(email)
	for _, u := range r.storage.Values() {
		if u.Email() == needle {
			return u, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r *InmemUserRepository) FindByName(_ context.Context, firstNameGiven, lastName string) ([]*user.User, error) {
	var out []*user.User
	for _, u := range r.storage.Values() {
		if u.FirstNameGiven() == firstNameGiven && u.LastName() == lastName {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *InmemUserRepository) Managers(_ context.Context) ([]*user.User, error) {
	var out []*user.User
	for _, u := range r.storage.Values() {
		if u.IsManager() {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b *user.User) int {
		return strings.Compare(a.Email(), b.Email())
	})
	return out, nil
}

func (r *InmemUserRepository) Create(_ context.Context, u *user.User) error {
	r.storage.Set(u.ID(), u)
	return nil
}

func (r *InmemUserRepository) Update(_ context.Context, u *user.User) error {
	r.storage.Set(u.ID(), u)
	return nil
}

func (r *InmemUserRepository) Count(_ context.Context) (int64, error) {
	return int64(r.storage.Len()), nil
}

type InmemTaxonomyRepository struct {
	programs    *SafeMap[uuid.UUID, *taxonomy.Program]
	courseTypes *SafeMap[uuid.UUID, *taxonomy.CourseType]
	examTypes   *SafeMap[uuid.UUID, *taxonomy.ExamType]
}

func NewInmemTaxonomyRepository() *InmemTaxonomyRepository {
	return &InmemTaxonomyRepository{
		programs:    NewSafeMap[uuid.UUID, *taxonomy.Program](),
		courseTypes: NewSafeMap[uuid.UUID, *taxonomy.CourseType](),
		examTypes:   NewSafeMap[uuid.UUID, *taxonomy.ExamType](),
	}
}

func (r *InmemTaxonomyRepository) Programs(_ context.Context) ([]*taxonomy.Program, error) {
	out := r.programs.Values()
	slices.SortFunc(out, func(a, b *taxonomy.Program) int {
		return strings.Compare(a.NameEN(), b.NameEN())
	})
	return out, nil
}

func (r *InmemTaxonomyRepository) CourseTypes(_ context.Context) ([]*taxonomy.CourseType, error) {
	out := r.courseTypes.Values()
	slices.SortFunc(out, func(a, b *taxonomy.CourseType) int {
		return strings.Compare(a.NameEN(), b.NameEN())
	})
	return out, nil
}

func (r *InmemTaxonomyRepository) ExamTypes(_ context.Context) ([]*taxonomy.ExamType, error) {
	out := r.examTypes.Values()
	slices.SortFunc(out, func(a, b *taxonomy.ExamType) int {
		return strings.Compare(a.NameEN(), b.NameEN())
	})
	return out, nil
}

func (r *InmemTaxonomyRepository) CreateProgram(_ context.Context, p *taxonomy.Program) error {
	r.programs.Set(p.ID(), p)
	return nil
}

func (r *InmemTaxonomyRepository) CreateCourseType(_ context.Context, t *taxonomy.CourseType) error {
	r.courseTypes.Set(t.ID(), t)
	return nil
}

func (r *InmemTaxonomyRepository) CreateExamType(_ context.Context, t *taxonomy.ExamType) error {
	r.examTypes.Set(t.ID(), t)
	return nil
}

func (r *InmemTaxonomyRepository) UpdateProgram(_ context.Context, p *taxonomy.Program) error {
	r.programs.Set(p.ID(), p)
	return nil
}

func (r *InmemTaxonomyRepository) UpdateCourseType(_ context.Context, t *taxonomy.CourseType) error {
	r.courseTypes.Set(t.ID(), t)
	return nil
}

func (r *InmemTaxonomyRepository) UpdateExamType(_ context.Context, t *taxonomy.ExamType) error {
	r.examTypes.Set(t.ID(), t)
	return nil
}

type InmemCourseRepository struct {
	storage *SafeMap[uuid.UUID, *course.Course]
}

func NewInmemCourseRepository() *InmemCourseRepository {
	return &InmemCourseRepository{storage: NewSafeMap[uuid.UUID, *course.Course]()}
}

func (r *InmemCourseRepository) GetByID(_ context.Context, id uuid.UUID) (*course.Course, error) {
	c, found := r.storage.Get(id)
	if !found {
		return nil, course.ErrCourseNotFound
	}
	return c, nil
}

func (r *InmemCourseRepository) GetByNameDE(_ context.Context, semesterID uuid.UUID, nameDE string) (*course.Course, error) {
	return r.find(func(c *course.Course) bool {
		return c.SemesterID() == semesterID && c.NameDE() == nameDE
	})
}

func (r *InmemCourseRepository) GetByNameEN(_ context.Context, semesterID uuid.UUID, nameEN string) (*course.Course, error) {
	return r.find(func(c *course.Course) bool {
		return c.SemesterID() == semesterID && c.NameEN() == nameEN
	})
}

func (r *InmemCourseRepository) GetByCMSID(_ context.Context, semesterID uuid.UUID, cmsID string) (*course.Course, error) {
	return r.find(func(c *course.Course) bool {
		return c.SemesterID() == semesterID && c.CMSID() == cmsID && cmsID != ""
	})
}

func (r *InmemCourseRepository) find(match func(*course.Course) bool) (*course.Course, error) {
	for _, c := range r.storage.Values() {
		if match(c) {
			return c, nil
		}
	}
	return nil, course.ErrCourseNotFound
}

func (r *InmemCourseRepository) ListBySemester(_ context.Context, semesterID uuid.UUID) ([]*course.Course, error) {
	var out []*course.Course
	for _, c := range r.storage.Values() {
		if c.SemesterID() == semesterID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b *course.Course) int {
		return strings.Compare(a.NameEN(), b.NameEN())
	})
	return out, nil
}

func (r *InmemCourseRepository) Create(_ context.Context, c *course.Course) error {
	r.storage.Set(c.ID(), c)
	return nil
}

func (r *InmemCourseRepository) Update(_ context.Context, c *course.Course) error {
	r.storage.Set(c.ID(), c)
	return nil
}

func (r *InmemCourseRepository) Count(_ context.Context) (int64, error) {
	return int64(r.storage.Len()), nil
}

type InmemEvaluationRepository struct {
	storage       *SafeMap[uuid.UUID, *evaluation.Evaluation]
	contributions *SafeMap[uuid.UUID, *evaluation.Contribution]
}

func NewInmemEvaluationRepository() *InmemEvaluationRepository {
	return &InmemEvaluationRepository{
		storage:       NewSafeMap[uuid.UUID, *evaluation.Evaluation](),
		contributions: NewSafeMap[uuid.UUID, *evaluation.Contribution](),
	}
}

func (r *InmemEvaluationRepository) GetByID(_ context.Context, id uuid.UUID) (*evaluation.Evaluation, error) {
	e, found := r.storage.Get(id)
	if !found {
		return nil, evaluation.ErrEvaluationNotFound
	}
	return e, nil
}

func (r *InmemEvaluationRepository) GetByCMSID(_ context.Context, cmsID string) (*evaluation.Evaluation, error) {
	if cmsID != "" {
		for _, e := range r.storage.Values() {
			if e.CMSID() == cmsID {
				return e, nil
			}
		}
	}
	return nil, evaluation.ErrEvaluationNotFound
}

func (r *InmemEvaluationRepository) ListByCourse(_ context.Context, courseID uuid.UUID) ([]*evaluation.Evaluation, error) {
	var out []*evaluation.Evaluation
	for _, e := range r.storage.Values() {
		if e.CourseID() == courseID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b *evaluation.Evaluation) int {
		return a.VoteStartDatetime().Compare(b.VoteStartDatetime())
	})
	return out, nil
}

func (r *InmemEvaluationRepository) Create(_ context.Context, e *evaluation.Evaluation) error {
	r.storage.Set(e.ID(), e)
	return nil
}

func (r *InmemEvaluationRepository) Update(_ context.Context, e *evaluation.Evaluation) error {
	r.storage.Set(e.ID(), e)
	return nil
}

func (r *InmemEvaluationRepository) Count(_ context.Context) (int64, error) {
	return int64(r.storage.Len()), nil
}

func (r *InmemEvaluationRepository) SaveContribution(_ context.Context, c *evaluation.Contribution) error {
	r.contributions.Set(c.ID(), c)
	return nil
}

func (r *InmemEvaluationRepository) ContributionsByEvaluation(_ context.Context, evaluationID uuid.UUID) ([]*evaluation.Contribution, error) {
	var out []*evaluation.Contribution
	for _, c := range r.contributions.Values() {
		if c.EvaluationID() == evaluationID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b *evaluation.Contribution) int {
		switch {
		case a.IsGeneral() && !b.IsGeneral():
			return -1
		case !a.IsGeneral() && b.IsGeneral():
			return 1
		}
		return strings.Compare(a.ID().String(), b.ID().String())
	})
	return out, nil
}
