// Package permissions holds the global (action, subject) permission catalog.
package permissions

import (
	"fmt"
	"strings"
	"time"

	"github.com/backoffice/backoffice/internal/shared"
)

// Action is the verb half of a permission.
type Action string

// Supported actions. ActionManage implies every other action.
const (
	ActionManage Action = "manage"
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Subject is the resource-type half of a permission.
type Subject string

// Supported subjects. SubjectAll implies every other subject.
const (
	SubjectAll          Subject = "all"
	SubjectOrganization Subject = "organization"
	SubjectUser         Subject = "user"
	SubjectRole         Subject = "role"
	SubjectInvoice      Subject = "invoice"
	SubjectProject      Subject = "project"
	SubjectBudget       Subject = "budget"
	SubjectCategory     Subject = "category"
)

var (
	allActions  = []Action{ActionManage, ActionCreate, ActionRead, ActionUpdate, ActionDelete}
	allSubjects = []Subject{
		SubjectAll, SubjectOrganization, SubjectUser, SubjectRole,
		SubjectInvoice, SubjectProject, SubjectBudget, SubjectCategory,
	}
)

// Actions returns every supported action.
func Actions() []Action { return append([]Action(nil), allActions...) }

// Subjects returns every supported subject.
func Subjects() []Subject { return append([]Subject(nil), allSubjects...) }

// Valid reports whether a is one of the supported actions.
func (a Action) Valid() bool {
	for _, v := range allActions {
		if a == v {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the supported subjects.
func (s Subject) Valid() bool {
	for _, v := range allSubjects {
		if s == v {
			return true
		}
	}
	return false
}

// Config is an (action, subject) pair as it appears on the wire.
type Config struct {
	Action  Action  `json:"action" validate:"required"`
	Subject Subject `json:"subject" validate:"required"`
}

// String renders the pair as action:subject.
func (c Config) String() string {
	return string(c.Action) + ":" + string(c.Subject)
}

// Validate rejects values outside the closed enums.
func (c Config) Validate() error {
	if !c.Action.Valid() {
		return fmt.Errorf("unknown action %q: %w", c.Action, shared.ErrValidation)
	}
	if !c.Subject.Valid() {
		return fmt.Errorf("unknown subject %q: %w", c.Subject, shared.ErrValidation)
	}
	return nil
}

// ParseConfig parses the action:subject form.
func ParseConfig(raw string) (Config, error) {
	action, subject, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return Config{}, fmt.Errorf("permission %q must be action:subject: %w", raw, shared.ErrValidation)
	}
	cfg := Config{Action: Action(strings.ToLower(action)), Subject: Subject(strings.ToLower(subject))}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Dedupe drops repeated configs while keeping first-seen order.
func Dedupe(configs []Config) []Config {
	seen := make(map[Config]struct{}, len(configs))
	out := make([]Config, 0, len(configs))
	for _, c := range configs {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Catalog returns the full cartesian product of actions and subjects.
func Catalog() []Config {
	out := make([]Config, 0, len(allActions)*len(allSubjects))
	for _, a := range allActions {
		for _, s := range allSubjects {
			out = append(out, Config{Action: a, Subject: s})
		}
	}
	return out
}

// Permission is a stored catalog row.
type Permission struct {
	ID        int64     `json:"id"`
	Action    Action    `json:"action"`
	Subject   Subject   `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Config returns the (action, subject) pair of p.
func (p Permission) Config() Config {
	return Config{Action: p.Action, Subject: p.Subject}
}
