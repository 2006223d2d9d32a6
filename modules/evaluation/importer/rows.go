package importer

import (
	"strings"
)

const (
	// Column layout of the enrollment spreadsheet (frozen, 12 columns):
	// program, student last name, student first name, student email,
	// course kind, course is graded, course name (de), course name (en),
	// responsible title, responsible last name, responsible first name,
	// responsible email.
	EnrollmentColumnCount = 12

	// Column layout of the user spreadsheet (frozen, 4 columns):
	// title, first name, last name, email.
	UserColumnCount = 4
)

// UserRecord is the semantic user portion of an input row. The email is
// normalized to lower case; name fields keep their spelling.
type UserRecord struct {
	Location       Location
	Email          string
	Title          string
	FirstNameGiven string
	LastName       string
}

// SameData reports whether two records carry bit-identical user data
// (ignoring the location).
func (r UserRecord) SameData(o UserRecord) bool {
	return r.Email == o.Email &&
		r.Title == o.Title &&
		r.FirstNameGiven == o.FirstNameGiven &&
		r.LastName == o.LastName
}

// EnrollmentRow is one typed row of the enrollment spreadsheet.
type EnrollmentRow struct {
	Location    Location
	ProgramName string
	CourseKind  string
	IsGraded    string
	NameDE      string
	NameEN      string
	Student     UserRecord
	Responsible UserRecord
}

// UserRow is one typed row of the user spreadsheet.
type UserRow struct {
	Location Location
	User     UserRecord
}

// NormalizeCell collapses any run of whitespace (including non-ASCII spaces)
// to a single space and strips both ends.
func NormalizeCell(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeEmailCell(s string) string {
	return strings.ToLower(NormalizeCell(s))
}

func padCells(cells []string, n int) []string {
	if len(cells) >= n {
		return cells
	}
	out := make([]string, n)
	copy(out, cells)
	return out
}

// MapEnrollmentRows converts raw sheet rows into typed enrollment rows.
func MapEnrollmentRows(rows []SheetRow) []EnrollmentRow {
	out := make([]EnrollmentRow, 0, len(rows))
	for _, row := range rows {
		c := padCells(row.Cells, EnrollmentColumnCount)
		for i := range c {
			c[i] = NormalizeCell(c[i])
		}
		loc := Location{Sheet: row.Sheet, Row: row.RowIndex + 1}
		out = append(out, EnrollmentRow{
			Location:    loc,
			ProgramName: c[0],
			CourseKind:  c[4],
			IsGraded:    c[5],
			NameDE:      c[6],
			NameEN:      c[7],
			Student: UserRecord{
				Location:       loc,
				LastName:       c[1],
				FirstNameGiven: c[2],
				Email:          strings.ToLower(c[3]),
			},
			Responsible: UserRecord{
				Location:       loc,
				Title:          c[8],
				LastName:       c[9],
				FirstNameGiven: c[10],
				Email:          strings.ToLower(c[11]),
			},
		})
	}
	return out
}

// MapUserRows converts raw sheet rows into typed user rows.
func MapUserRows(rows []SheetRow) []UserRow {
	out := make([]UserRow, 0, len(rows))
	for _, row := range rows {
		c := padCells(row.Cells, UserColumnCount)
		for i := range c {
			c[i] = NormalizeCell(c[i])
		}
		loc := Location{Sheet: row.Sheet, Row: row.RowIndex + 1}
		out = append(out, UserRow{
			Location: loc,
			User: UserRecord{
				Location:       loc,
				Title:          c[0],
				FirstNameGiven: c[1],
				LastName:       c[2],
				Email:          strings.ToLower(c[3]),
			},
		})
	}
	return out
}
