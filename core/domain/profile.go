package domain

import (
	"strings"
	"time"
)

// Identity is a stable conversation participant. ID is the primary key; Name
// is the display name observed when the identity first registered.
type Identity struct {
	ID   int64
	Name string
}

// DisplayName returns a printable name for the identity.
func (i Identity) DisplayName() string {
	if name := strings.TrimSpace(i.Name); name != "" {
		return name
	}
	return "user"
}

// Profile is the persisted per-identity record: registration metadata plus the
// answers of the most recently completed dialogue.
type Profile struct {
	Identity         Identity
	RegisteredAt     time.Time
	Answers          Answers
	AnswersUpdatedAt time.Time
}

// HasAnswers reports whether a dialogue has been committed for the profile.
func (p Profile) HasAnswers() bool {
	return len(p.Answers) > 0
}
