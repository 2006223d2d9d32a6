package importer

import (
	"fmt"
	"sort"

	"github.com/go-faster/errors"
)

// ErrAborted terminates a batch after row errors were recorded. The commit
// engine converts it into the final RESULT message.
var ErrAborted = errors.New("import aborted due to errors in the input data")

type Level int

const (
	LevelSuccess Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	}
	return "unknown"
}

// Category is the closed set of diagnostic classes. The declaration order is
// the fixed display order of the report.
type Category int

const (
	CategorySchema Category = iota
	CategoryProgramMissing
	CategoryCourseTypeMissing
	CategoryUser
	CategoryName
	CategoryInactive
	CategoryDuplicate
	CategoryExists
	CategoryIgnored
	CategoryAlreadyParticipating
	CategoryProgram
	CategoryTooManyEnrollments
	CategorySimilarCourseNames
	CategoryCourse
	CategoryIsGraded
	CategoryGeneral
	CategoryResult
)

func (c Category) ID() string {
	switch c {
	case CategorySchema:
		return "schema"
	case CategoryProgramMissing:
		return "program_missing"
	case CategoryCourseTypeMissing:
		return "course_type_missing"
	case CategoryUser:
		return "user"
	case CategoryName:
		return "name"
	case CategoryInactive:
		return "inactive"
	case CategoryDuplicate:
		return "dupl"
	case CategoryExists:
		return "exists"
	case CategoryIgnored:
		return "ignored"
	case CategoryAlreadyParticipating:
		return "already_participating"
	case CategoryProgram:
		return "program"
	case CategoryTooManyEnrollments:
		return "too_many_enrollments"
	case CategorySimilarCourseNames:
		return "similar_course_names"
	case CategoryCourse:
		return "course"
	case CategoryIsGraded:
		return "is_graded"
	case CategoryGeneral:
		return "general"
	case CategoryResult:
		return "result"
	}
	return "unknown"
}

// Location points at the source of a diagnostic inside an external file.
// Row is the 1-based row number as displayed by spreadsheet software.
type Location struct {
	Sheet string
	Row   int
}

func (l Location) String() string {
	if l.Sheet == "" {
		return fmt.Sprintf("row %d", l.Row)
	}
	return fmt.Sprintf("Sheet '%s', row %d", l.Sheet, l.Row)
}

func (l Location) IsZero() bool { return l.Sheet == "" && l.Row == 0 }

type Message struct {
	Level    Level
	Category Category
	Text     string
}

// Report accumulates leveled, categorized diagnostics for one ingestion run.
type Report struct {
	testRun  bool
	messages []Message
	errors   int
}

func NewReport(testRun bool) *Report {
	return &Report{testRun: testRun}
}

func (r *Report) IsTestRun() bool { return r.testRun }

// tense picks the message wording for test runs ("will be", "would be")
// versus real runs ("was"). Test run and real run reports must otherwise be
// identical, so wording is the only thing allowed to vary.
func (r *Report) tense(testRun, realRun string) string {
	if r.testRun {
		return testRun
	}
	return realRun
}

func (r *Report) AddError(text string, category Category) {
	r.errors++
	r.messages = append(r.messages, Message{Level: LevelError, Category: category, Text: text})
}

func (r *Report) AddWarning(text string, category Category) {
	r.messages = append(r.messages, Message{Level: LevelWarning, Category: category, Text: text})
}

func (r *Report) AddSuccess(text string, category Category) {
	r.messages = append(r.messages, Message{Level: LevelSuccess, Category: category, Text: text})
}

func (r *Report) HasErrors() bool { return r.errors > 0 }

// RaiseIfErrors returns ErrAborted when errors were recorded. Callers place
// it at checkpoints so no write is ever planned from bad input.
func (r *Report) RaiseIfErrors() error {
	if r.HasErrors() {
		return ErrAborted
	}
	return nil
}

// Messages returns the diagnostics grouped by category in the fixed category
// order; within a category the add order is preserved.
func (r *Report) Messages() []Message {
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Category < out[j].Category
	})
	return out
}

// Warnings returns the warning texts in report order.
func (r *Report) Warnings() []string {
	var out []string
	for _, m := range r.Messages() {
		if m.Level == LevelWarning {
			out = append(out, m.Text)
		}
	}
	return out
}

// FirstLocationAndCountTracker aggregates repeated diagnostics that share a
// (category, key) pair: the first occurrence keeps its location, later ones
// only bump a counter.
type FirstLocationAndCountTracker struct {
	order   []trackerKey
	entries map[trackerKey]*trackerEntry
}

type trackerKey struct {
	category Category
	key      string
}

type trackerEntry struct {
	first Location
	count int
}

func NewFirstLocationAndCountTracker() *FirstLocationAndCountTracker {
	return &FirstLocationAndCountTracker{entries: make(map[trackerKey]*trackerEntry)}
}

func (t *FirstLocationAndCountTracker) Add(category Category, key string, location Location) {
	k := trackerKey{category: category, key: key}
	if e, ok := t.entries[k]; ok {
		e.count++
		return
	}
	t.entries[k] = &trackerEntry{first: location, count: 1}
	t.order = append(t.order, k)
}

// AggregatedLocation renders "Sheet 'X', row 2" or
// "Sheet 'X', row 2 and N other places".
func (t *FirstLocationAndCountTracker) AggregatedLocation(category Category, key string) string {
	e, ok := t.entries[trackerKey{category: category, key: key}]
	if !ok {
		return ""
	}
	if e.count == 1 {
		return e.first.String()
	}
	return fmt.Sprintf("%s and %d other places", e.first, e.count-1)
}

func (t *FirstLocationAndCountTracker) Count(category Category, key string) int {
	e, ok := t.entries[trackerKey{category: category, key: key}]
	if !ok {
		return 0
	}
	return e.count
}

// Each visits the tracked keys in first-seen order.
func (t *FirstLocationAndCountTracker) Each(fn func(category Category, key string, location string)) {
	for _, k := range t.order {
		fn(k.category, k.key, t.AggregatedLocation(k.category, k.key))
	}
}
