// Package audit keeps an append-only trail of authorization changes per
// organization: roles created, edited or deleted and memberships granted,
// changed or revoked.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entity names recorded in the trail.
const (
	EntityRole       = "role"
	EntityMembership = "membership"
)

// Entry is one recorded change.
type Entry struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID int64          `json:"organizationId"`
	ActorID        int64          `json:"actorId,omitempty"`
	Action         string         `json:"action"`
	Entity         string         `json:"entity"`
	EntityID       string         `json:"entityId"`
	Meta           map[string]any `json:"meta,omitempty"`
	At             time.Time      `json:"at"`
}

// TimelineFilters narrows a timeline query.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// PagingInfo holds simple page metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result wraps a timeline page.
type Result struct {
	Entries []Entry    `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}
