package importer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/user"
	"github.com/evapdev/evap/modules/evaluation/infrastructure/persistence"
)

func reconcile(t *testing.T, repo user.Repository, testRun bool, records ...UserRecord) (*Report, *PeopleResult) {
	t.Helper()
	rep := NewReport(testRun)
	result, err := NewPeopleReconciler(repo).Reconcile(context.Background(), rep, records)
	require.NoError(t, err)
	return rep, result
}

func messageTexts(rep *Report) []string {
	var out []string
	for _, m := range rep.Messages() {
		out = append(out, m.Text)
	}
	return out
}

func TestReconcileCreatesNewUsers(t *testing.T) {
	repo := persistence.NewInmemUserRepository()
	rep, result := reconcile(t, repo, true,
		UserRecord{Location: Location{Sheet: "S", Row: 2}, Email: "lucilia.quid@example.com", FirstNameGiven: "Lucilia", LastName: "Quid"},
		UserRecord{Location: Location{Sheet: "S", Row: 3}, Email: "prorsus@example.com", Title: "Prof.", FirstNameGiven: "Christoph", LastName: "Prorsus"},
	)

	assert.False(t, rep.HasErrors())
	require.Len(t, result.New, 2)
	assert.Empty(t, result.Updated)
	assert.Equal(t, "Prof.", result.ByEmail["prorsus@example.com"].Title())
}

func TestReconcileRejectsInvalidRecords(t *testing.T) {
	repo := persistence.NewInmemUserRepository()
	rep, result := reconcile(t, repo, true,
		UserRecord{Location: Location{Sheet: "S", Row: 2}, FirstNameGiven: "A", LastName: "B"},
		UserRecord{Location: Location{Sheet: "S", Row: 3}, Email: "not-an-email", FirstNameGiven: "A", LastName: "B"},
		UserRecord{Location: Location{Sheet: "S", Row: 4}, Email: "ok@example.com", FirstNameGiven: "", LastName: "B"},
	)

	assert.True(t, rep.HasErrors())
	assert.Empty(t, result.New)
	texts := messageTexts(rep)
	assert.Contains(t, texts, "Sheet 'S', row 2: Email address is missing.")
	assert.Contains(t, texts, "Sheet 'S', row 3: Invalid email address: 'not-an-email'.")
	assert.Contains(t, texts, "Sheet 'S', row 4: The user 'ok@example.com' is missing a first name or a last name.")
}

func TestReconcileIgnoresExactDuplicates(t *testing.T) {
	repo := persistence.NewInmemUserRepository()
	rec := UserRecord{Email: "lucilia.quid@example.com", FirstNameGiven: "Lucilia", LastName: "Quid"}

	first := rec
	first.Location = Location{Sheet: "S", Row: 2}
	second := rec
	second.Location = Location{Sheet: "S", Row: 5}
	third := rec
	third.Location = Location{Sheet: "S", Row: 7}

	rep, result := reconcile(t, repo, true, first, second, third)

	assert.False(t, rep.HasErrors())
	require.Len(t, result.New, 1)
	assert.Contains(t, messageTexts(rep),
		"Sheet 'S', row 2 and 1 other places: The duplicated data for user 'lucilia.quid@example.com' was ignored.")
}

func TestReconcileSilencesDuplicatesOnRequest(t *testing.T) {
	repo := persistence.NewInmemUserRepository()
	rec := UserRecord{Email: "prof@example.com", FirstNameGiven: "Christoph", LastName: "Prorsus"}

	first := rec
	first.Location = Location{Sheet: "S", Row: 2}
	second := rec
	second.Location = Location{Sheet: "S", Row: 3}

	rep := NewReport(true)
	result, err := NewPeopleReconciler(repo, WithSilentDuplicates()).
		Reconcile(context.Background(), rep, []UserRecord{first, second})
	require.NoError(t, err)

	assert.Empty(t, rep.Messages())
	require.Len(t, result.New, 1)
}

func TestReconcileFlagsConflictingRows(t *testing.T) {
	repo := persistence.NewInmemUserRepository()
	rep, _ := reconcile(t, repo, true,
		UserRecord{Location: Location{Sheet: "S", Row: 2}, Email: "lucilia.quid@example.com", FirstNameGiven: "Lucilia", LastName: "Quid"},
		UserRecord{Location: Location{Sheet: "S", Row: 3}, Email: "lucilia.quid@example.com", FirstNameGiven: "Lucy", LastName: "Quid"},
	)

	assert.True(t, rep.HasErrors())
	assert.Contains(t, messageTexts(rep),
		"Sheet 'S', row 3: The data of user 'lucilia.quid@example.com' differs from their data in a previous row.")
}

func TestReconcileOverwritesExistingData(t *testing.T) {
	repo := persistence.NewInmemUserRepository()
	existing := user.New("lucilia.quid@example.com", "Lucy", "Quid")
	require.NoError(t, repo.Create(context.Background(), existing))

	rep, result := reconcile(t, repo, false,
		UserRecord{Location: Location{Sheet: "S", Row: 2}, Email: "lucilia.quid@example.com", FirstNameGiven: "Lucilia", LastName: "Quid"},
	)

	assert.False(t, rep.HasErrors())
	assert.Empty(t, result.New)
	require.Len(t, result.Updated, 1)
	assert.Equal(t, "Lucilia", result.Updated[0].FirstNameGiven())
	require.Len(t, result.Renamed, 1)
	assert.Equal(t, "Lucy Quid", result.Renamed[0].OldName)
	assert.Equal(t, "Lucilia Quid", result.Renamed[0].NewName)

	texts := messageTexts(rep)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "The existing user 'Lucy Quid' (lucilia.quid@example.com) was overwritten")
}

func TestReconcileReactivatesInactiveUsers(t *testing.T) {
	repo := persistence.NewInmemUserRepository()
	inactive := user.Hydrate(
		user.New("quid@example.com", "Lucilia", "Quid").ID(),
		"quid@example.com", "", "Lucilia", "", "Quid", false, false,
	)
	require.NoError(t, repo.Create(context.Background(), inactive))

	rep, result := reconcile(t, repo, true,
		UserRecord{Location: Location{Sheet: "S", Row: 2}, Email: "quid@example.com", FirstNameGiven: "Lucilia", LastName: "Quid"},
	)

	assert.False(t, rep.HasErrors())
	require.Len(t, result.Updated, 1)
	assert.True(t, result.Updated[0].IsActive())
	assert.Contains(t, messageTexts(rep)[0], "will be reactivated")
}

func TestReconcileWarnsAboutHomonyms(t *testing.T) {
	repo := persistence.NewInmemUserRepository()
	require.NoError(t, repo.Create(context.Background(), user.New("old.quid@example.com", "Lucilia", "Quid")))

	rep, result := reconcile(t, repo, false,
		UserRecord{Location: Location{Sheet: "S", Row: 2}, Email: "new.quid@example.com", FirstNameGiven: "Lucilia", LastName: "Quid"},
	)

	assert.False(t, rep.HasErrors())
	require.Len(t, result.New, 1)
	assert.Contains(t, messageTexts(rep)[0],
		fmt.Sprintf("A user named 'Lucilia Quid' already exists with a different email address (%s).", "old.quid@example.com"))
}
