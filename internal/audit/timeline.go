// Package audit records and lists privileged administrative actions.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a single admin action written to admin_audit_logs.
type Entry struct {
	ActorID    uuid.UUID
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
	At         time.Time
}

// Filters narrows the audit listing.
type Filters struct {
	Actor      string
	Action     string
	EntityType string
	Page       int
	PageSize   int
}

// Row is one audit entry as listed.
type Row struct {
	ID         int64          `json:"id"`
	At         time.Time      `json:"created_at"`
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Details    map[string]any `json:"details,omitempty"`
}

// PagingInfo describes the page returned.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps a page of rows.
type Result struct {
	Rows   []Row      `json:"rows"`
	Paging PagingInfo `json:"paging"`
}

// Query is the repository-level window request.
type Query struct {
	Actor      string
	Action     string
	EntityType string
	Offset     int
	Limit      int
}
