package task

import (
	"fmt"
	"strings"
)

// Query identifies one view of the task list: which tasks, in what
// order, and which slice of them. It derives the cache key the page
// store and the reconciler share.
type Query struct {
	Status         Status // empty means all statuses
	TitleContains  string
	Page           int
	Size           int
	OrderBy        string
	OrderDirection string
}

// Pagination and ordering bounds enforced by the API.
const (
	MinPageSize         = 1
	MaxPageSize         = 100
	DefaultPageSize     = 10
	DefaultOrderBy      = "created_at"
	DefaultOrderDir     = "desc"
	CountsCacheKey      = "tasks:counts"
	pageCacheKeyPrefix  = "tasks:page"
	allStatusesKeyLabel = "all"
)

var validOrderFields = map[string]bool{
	"id":         true,
	"title":      true,
	"status":     true,
	"created_at": true,
	"updated_at": true,
}

// Normalize fills defaults and clamps pagination into the API's bounds.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Size < MinPageSize {
		q.Size = DefaultPageSize
	}
	if q.Size > MaxPageSize {
		q.Size = MaxPageSize
	}
	if q.OrderBy == "" || !validOrderFields[q.OrderBy] {
		q.OrderBy = DefaultOrderBy
	}
	switch strings.ToLower(q.OrderDirection) {
	case "asc", "desc":
		q.OrderDirection = strings.ToLower(q.OrderDirection)
	default:
		q.OrderDirection = DefaultOrderDir
	}
	q.TitleContains = strings.TrimSpace(q.TitleContains)
	return q
}

// CacheKey derives the cache key for this view. Sort and search
// parameters are part of the key so differently-ordered views never
// collide on one entry.
func (q Query) CacheKey() string {
	status := allStatusesKeyLabel
	if q.Status != "" {
		status = string(q.Status)
	}
	key := fmt.Sprintf("%s:%s:%d:%d:%s:%s", pageCacheKeyPrefix, status, q.Page, q.Size, q.OrderBy, q.OrderDirection)
	if q.TitleContains != "" {
		key += ":" + q.TitleContains
	}
	return key
}

// Matches reports whether a task with the given status belongs in this
// view's filter. An empty filter admits every status.
func (q Query) Matches(s Status) bool {
	return q.Status == "" || q.Status == s
}

// Page is one cached slice of the task list, together with the server's
// last known total for the view's filter. Items never exceeds the
// view's page size; Total is adjusted optimistically by push events and
// corrected wholesale on the next pull.
type Page struct {
	Items []Task `json:"items"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Size  int    `json:"size"`
}

// Pages computes the page count the same way the API does.
func (p Page) Pages() int {
	if p.Total <= 0 || p.Size <= 0 {
		return 0
	}
	return (p.Total + p.Size - 1) / p.Size
}

// IndexOf returns the position of the task with the given id, or -1.
func (p Page) IndexOf(id int) int {
	for i, t := range p.Items {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a copy whose Items slice shares nothing with p.
func (p Page) Clone() Page {
	out := p
	out.Items = make([]Task, len(p.Items))
	copy(out.Items, p.Items)
	return out
}

// StatusCounts maps each status, plus the synthetic total, to the
// number of tasks the server reported plus any optimistic deltas from
// push events. Counts are clamped at zero; duplicate or out-of-order
// events must never drive them negative.
type StatusCounts struct {
	Open       int `json:"OPEN"`
	InProgress int `json:"IN_PROGRESS"`
	Done       int `json:"DONE"`
	Total      int `json:"total"`
}

// Get returns the bucket for a status.
func (c StatusCounts) Get(s Status) int {
	switch s {
	case StatusOpen:
		return c.Open
	case StatusInProgress:
		return c.InProgress
	case StatusDone:
		return c.Done
	}
	return 0
}

// Add applies delta to the bucket for s and to the total, clamping each
// at zero.
func (c *StatusCounts) Add(s Status, delta int) {
	switch s {
	case StatusOpen:
		c.Open = clampNonNegative(c.Open + delta)
	case StatusInProgress:
		c.InProgress = clampNonNegative(c.InProgress + delta)
	case StatusDone:
		c.Done = clampNonNegative(c.Done + delta)
	default:
		return
	}
	c.Total = clampNonNegative(c.Total + delta)
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
