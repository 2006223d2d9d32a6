// Package taxonomy holds the classification entities external files refer to
// by name: study programs, course types and exam types. Each carries an
// ordered list of case-insensitive import names (aliases) accepted from
// spreadsheets and the CMS feed.
package taxonomy

import (
	"strings"

	"github.com/google/uuid"
)

// NormalizeImportName collapses whitespace and lowercases a name for lookup.
func NormalizeImportName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

type Program struct {
	id          uuid.UUID
	nameDE      string
	nameEN      string
	importNames []string
}

func NewProgram(nameDE, nameEN string, importNames []string) *Program {
	return &Program{
		id:          uuid.New(),
		nameDE:      strings.TrimSpace(nameDE),
		nameEN:      strings.TrimSpace(nameEN),
		importNames: importNames,
	}
}

func HydrateProgram(id uuid.UUID, nameDE, nameEN string, importNames []string) *Program {
	return &Program{id: id, nameDE: nameDE, nameEN: nameEN, importNames: importNames}
}

func (p *Program) ID() uuid.UUID         { return p.id }
func (p *Program) NameDE() string        { return p.nameDE }
func (p *Program) NameEN() string        { return p.nameEN }
func (p *Program) ImportNames() []string { return p.importNames }

func (p *Program) MatchesImportName(name string) bool {
	return matchesImportName(p.importNames, name)
}

// AppendImportName adds the spelling if it is not already accepted.
// Reports whether the list changed.
func (p *Program) AppendImportName(name string) bool {
	if matchesImportName(p.importNames, name) {
		return false
	}
	p.importNames = append(p.importNames, strings.TrimSpace(name))
	return true
}

type CourseType struct {
	id                    uuid.UUID
	nameDE                string
	nameEN                string
	importNames           []string
	skipOnAutomatedImport bool
}

func NewCourseType(nameDE, nameEN string, importNames []string) *CourseType {
	return &CourseType{
		id:          uuid.New(),
		nameDE:      strings.TrimSpace(nameDE),
		nameEN:      strings.TrimSpace(nameEN),
		importNames: importNames,
	}
}

func HydrateCourseType(id uuid.UUID, nameDE, nameEN string, importNames []string, skipOnAutomatedImport bool) *CourseType {
	return &CourseType{
		id:                    id,
		nameDE:                nameDE,
		nameEN:                nameEN,
		importNames:           importNames,
		skipOnAutomatedImport: skipOnAutomatedImport,
	}
}

func (t *CourseType) ID() uuid.UUID               { return t.id }
func (t *CourseType) NameDE() string              { return t.nameDE }
func (t *CourseType) NameEN() string              { return t.nameEN }
func (t *CourseType) ImportNames() []string       { return t.importNames }
func (t *CourseType) SkipOnAutomatedImport() bool { return t.skipOnAutomatedImport }

func (t *CourseType) MatchesImportName(name string) bool {
	return matchesImportName(t.importNames, name)
}

func (t *CourseType) AppendImportName(name string) bool {
	if matchesImportName(t.importNames, name) {
		return false
	}
	t.importNames = append(t.importNames, strings.TrimSpace(name))
	return true
}

type ExamType struct {
	id                    uuid.UUID
	nameDE                string
	nameEN                string
	importNames           []string
	skipOnAutomatedImport bool
}

func NewExamType(nameDE, nameEN string, importNames []string) *ExamType {
	return &ExamType{
		id:          uuid.New(),
		nameDE:      strings.TrimSpace(nameDE),
		nameEN:      strings.TrimSpace(nameEN),
		importNames: importNames,
	}
}

func HydrateExamType(id uuid.UUID, nameDE, nameEN string, importNames []string, skipOnAutomatedImport bool) *ExamType {
	return &ExamType{
		id:                    id,
		nameDE:                nameDE,
		nameEN:                nameEN,
		importNames:           importNames,
		skipOnAutomatedImport: skipOnAutomatedImport,
	}
}

func (t *ExamType) ID() uuid.UUID               { return t.id }
func (t *ExamType) NameDE() string              { return t.nameDE }
func (t *ExamType) NameEN() string              { return t.nameEN }
func (t *ExamType) ImportNames() []string       { return t.importNames }
func (t *ExamType) SkipOnAutomatedImport() bool { return t.skipOnAutomatedImport }

func (t *ExamType) MatchesImportName(name string) bool {
	return matchesImportName(t.importNames, name)
}

func (t *ExamType) AppendImportName(name string) bool {
	if matchesImportName(t.importNames, name) {
		return false
	}
	t.importNames = append(t.importNames, strings.TrimSpace(name))
	return true
}

func matchesImportName(names []string, name string) bool {
	needle := NormalizeImportName(name)
	for _, n := range names {
		if NormalizeImportName(n) == needle {
			return true
		}
	}
	return false
}
