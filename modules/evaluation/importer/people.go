package importer

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/evapdev/evap/modules/evaluation/domain/aggregates/user"
	"github.com/evapdev/evap/pkg/constants"
)

// NameChange records that an import carried different name data for a stored
// account. The incoming data is authoritative, so the change is applied, but
// managers are told about it afterwards.
type NameChange struct {
	Email   string
	OldName string
	NewName string
}

// PeopleResult is the reconciled user universe of one ingestion run: every
// valid record resolved to exactly one account, split into accounts that
// already exist (possibly with pending field updates) and accounts to create.
type PeopleResult struct {
	ByEmail map[string]*user.User
	New     []*user.User
	Updated []*user.User
	Renamed []NameChange
}

// PeopleReconciler checks user records for internal consistency and matches
// them against stored accounts by email. All file-level checks run before any
// database lookup so the report lists every bad row, not just the first.
type PeopleReconciler struct {
	repo             user.Repository
	silentDuplicates bool
}

type ReconcilerOption func(p *PeopleReconciler)

// WithSilentDuplicates drops bit-identical records without a warning. The
// enrollment importer uses this: a responsible naturally repeats on every row
// of their course, which is not worth reporting.
func WithSilentDuplicates() ReconcilerOption {
	return func(p *PeopleReconciler) { p.silentDuplicates = true }
}

func NewPeopleReconciler(repo user.Repository, opts ...ReconcilerOption) *PeopleReconciler {
	p := &PeopleReconciler{repo: repo}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PeopleReconciler) Reconcile(ctx context.Context, rep *Report, records []UserRecord) (*PeopleResult, error) {
	firstSeen := make(map[string]UserRecord)
	duplicates := NewFirstLocationAndCountTracker()
	var order []string

	for _, rec := range records {
		if !p.checkRecord(rep, rec) {
			continue
		}
		prev, seen := firstSeen[rec.Email]
		if !seen {
			firstSeen[rec.Email] = rec
			order = append(order, rec.Email)
			continue
		}
		if prev.SameData(rec) {
			// the warning points at the row the record first appeared on
			duplicates.Add(CategoryIgnored, rec.Email, prev.Location)
			continue
		}
		rep.AddError(
			located(rec.Location, fmt.Sprintf("The data of user '%s' differs from their data in a previous row.", rec.Email)),
			CategoryUser,
		)
	}

	if !p.silentDuplicates {
		duplicates.Each(func(_ Category, email string, location string) {
			rep.AddWarning(
				fmt.Sprintf("%s: The duplicated data for user '%s' was ignored.", location, email),
				CategoryIgnored,
			)
		})
	}

	result := &PeopleResult{ByEmail: make(map[string]*user.User, len(order))}
	for _, email := range order {
		rec := firstSeen[email]
		existing, err := p.repo.GetByEmail(ctx, email)
		switch {
		case err == nil:
			p.mergeExisting(rep, existing, rec, result)
		case errors.Is(err, user.ErrUserNotFound):
			if err := p.addNew(ctx, rep, rec, result); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Wrapf(err, "look up user %q", email)
		}
	}
	return result, nil
}

// checkRecord runs the row-local checks. A failing record is dropped from
// further matching; the recorded error aborts the batch later.
func (p *PeopleReconciler) checkRecord(rep *Report, rec UserRecord) bool {
	if rec.Email == "" {
		rep.AddError(located(rec.Location, "Email address is missing."), CategoryUser)
		return false
	}
	if err := constants.Validate.Var(rec.Email, "email"); err != nil {
		rep.AddError(located(rec.Location, fmt.Sprintf("Invalid email address: '%s'.", rec.Email)), CategoryUser)
		return false
	}
	if rec.FirstNameGiven == "" || rec.LastName == "" {
		rep.AddError(
			located(rec.Location, fmt.Sprintf("The user '%s' is missing a first name or a last name.", rec.Email)),
			CategoryUser,
		)
		return false
	}
	return true
}

func (p *PeopleReconciler) mergeExisting(rep *Report, existing *user.User, rec UserRecord, result *PeopleResult) {
	changed := false
	nameChanged := rec.FirstNameGiven != existing.FirstNameGiven() || rec.LastName != existing.LastName()
	titleChanged := rec.Title != "" && rec.Title != existing.Title()
	if nameChanged || titleChanged {
		rep.AddWarning(
			fmt.Sprintf(
				"The existing user '%s' (%s) %s overwritten with the data in this import: %s.",
				existing.FullName(), existing.Email(), rep.tense("would be", "was"), recordFullName(rec),
			),
			CategoryName,
		)
		if nameChanged {
			result.Renamed = append(result.Renamed, NameChange{
				Email:   existing.Email(),
				OldName: existing.FirstNameGiven() + " " + existing.LastName(),
				NewName: rec.FirstNameGiven + " " + rec.LastName,
			})
		}
		existing.SetFirstNameGiven(rec.FirstNameGiven)
		existing.SetLastName(rec.LastName)
		if rec.Title != "" {
			existing.SetTitle(rec.Title)
		}
		changed = true
	}
	if !existing.IsActive() {
		rep.AddWarning(
			fmt.Sprintf("The inactive user '%s' (%s) %s reactivated.", existing.FullName(), existing.Email(), rep.tense("will be", "was")),
			CategoryInactive,
		)
		existing.Activate()
		changed = true
	}
	if changed {
		result.Updated = append(result.Updated, existing)
	}
	result.ByEmail[existing.Email()] = existing
}

func (p *PeopleReconciler) addNew(ctx context.Context, rep *Report, rec UserRecord, result *PeopleResult) error {
	homonyms, err := p.repo.FindByName(ctx, rec.FirstNameGiven, rec.LastName)
	if err != nil {
		return errors.Wrapf(err, "homonym lookup for %q", rec.Email)
	}
	for _, h := range homonyms {
		rep.AddWarning(
			fmt.Sprintf(
				"A user named '%s %s' already exists with a different email address (%s). A new account '%s' %s created anyway, please check for duplicate accounts.",
				rec.FirstNameGiven, rec.LastName, h.Email(), rec.Email, rep.tense("will be", "was"),
			),
			CategoryDuplicate,
		)
	}

	opts := []user.Option{}
	if rec.Title != "" {
		opts = append(opts, user.WithTitle(rec.Title))
	}
	u := user.New(rec.Email, rec.FirstNameGiven, rec.LastName, opts...)
	result.New = append(result.New, u)
	result.ByEmail[u.Email()] = u
	return nil
}

func recordFullName(rec UserRecord) string {
	name := rec.FirstNameGiven + " " + rec.LastName
	if rec.Title != "" {
		name = rec.Title + " " + name
	}
	return name
}

// located prefixes a message with its source location. Records without one,
// such as CMS feed persons, keep the bare message.
func located(loc Location, text string) string {
	if loc.IsZero() {
		return text
	}
	return fmt.Sprintf("%s: %s", loc, text)
}
