package user

import (
	"strings"

	"github.com/google/uuid"
)

// User is an account known to the platform. The email is the identity used
// by the ingestion pipeline and is always stored lowercased; an empty email
// is permitted only for hydrated legacy records.
type User struct {
	id              uuid.UUID
	email           string
	title           string
	firstNameGiven  string
	firstNameChosen string
	lastName        string
	isActive        bool
	isManager       bool
}

type Option func(u *User)

func WithTitle(title string) Option {
	return func(u *User) { u.title = strings.TrimSpace(title) }
}

func WithManager() Option {
	return func(u *User) { u.isManager = true }
}

func New(email, firstNameGiven, lastName string, opts ...Option) *User {
	u := &User{
		id:             uuid.New(),
		email:          NormalizeEmail(email),
		firstNameGiven: strings.TrimSpace(firstNameGiven),
		lastName:       strings.TrimSpace(lastName),
		isActive:       true,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func Hydrate(
	id uuid.UUID,
	email string,
	title string,
	firstNameGiven string,
	firstNameChosen string,
	lastName string,
	isActive bool,
	isManager bool,
) *User {
	return &User{
		id:              id,
		email:           NormalizeEmail(email),
		title:           title,
		firstNameGiven:  firstNameGiven,
		firstNameChosen: firstNameChosen,
		lastName:        lastName,
		isActive:        isActive,
		isManager:       isManager,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) ID() uuid.UUID           { return u.id }
func (u *User) Email() string           { return u.email }
func (u *User) Title() string           { return u.title }
func (u *User) FirstNameGiven() string  { return u.firstNameGiven }
func (u *User) FirstNameChosen() string { return u.firstNameChosen }
func (u *User) LastName() string        { return u.lastName }
func (u *User) IsActive() bool          { return u.isActive }
func (u *User) IsManager() bool         { return u.isManager }

// FirstName prefers the chosen first name over the given one.
func (u *User) FirstName() string {
	if u.firstNameChosen != "" {
		return u.firstNameChosen
	}
	return u.firstNameGiven
}

func (u *User) FullName() string {
	parts := make([]string, 0, 3)
	if u.title != "" {
		parts = append(parts, u.title)
	}
	if n := u.FirstName(); n != "" {
		parts = append(parts, n)
	}
	if u.lastName != "" {
		parts = append(parts, u.lastName)
	}
	if len(parts) == 0 {
		return u.email
	}
	return strings.Join(parts, " ")
}

func (u *User) Activate() { u.isActive = true }

func (u *User) SetTitle(title string)      { u.title = strings.TrimSpace(title) }
func (u *User) SetFirstNameGiven(n string) { u.firstNameGiven = strings.TrimSpace(n) }
func (u *User) SetLastName(n string)       { u.lastName = strings.TrimSpace(n) }

// NeedsLoginKey reports whether the user logs in via a login key instead of
// the institution's single sign-on, based on the email domain.
func (u *User) NeedsLoginKey(institutionDomains []string) bool {
	at := strings.LastIndex(u.email, "@")
	if at < 0 {
		return true
	}
	domain := u.email[at+1:]
	for _, d := range institutionDomains {
		if strings.EqualFold(domain, d) {
			return false
		}
	}
	return true
}
