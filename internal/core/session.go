package core

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/FuzzyCleanse/internal/filter"
	"github.com/JonMunkholm/FuzzyCleanse/internal/join"
	"github.com/JonMunkholm/FuzzyCleanse/internal/table"
)

// session holds one user's consolidated table and rule store.
type session struct {
	id        uuid.UUID
	createdAt time.Time

	// mu serializes rule edits against filter runs.
	mu         sync.Mutex
	sources    []SourceInfo
	table      *table.Table
	summary    join.Summary
	rules      *filter.Store
	lastAccess time.Time
}

// SourceInfo describes one uploaded table.
type SourceInfo struct {
	Name   string   `json:"name"`
	Rows   int      `json:"rows"`
	Fields []string `json:"fields"`
}

// SessionSummary is the externally visible state of a session.
type SessionSummary struct {
	ID         string        `json:"id"`
	Sources    []SourceInfo  `json:"sources"`
	Join       join.Summary  `json:"join"`
	Fields     []string      `json:"fields"`
	Rows       int           `json:"rows"`
	Rules      []filter.Rule `json:"rules"`
	UndoDepth  int           `json:"undoDepth"`
	CreatedAt  time.Time     `json:"createdAt"`
	LastAccess time.Time     `json:"lastAccess"`
}

func newSession(id uuid.UUID, tables table.Set, t *table.Table, sum join.Summary, historyLimit int, now time.Time) *session {
	sources := make([]SourceInfo, len(tables))
	for i, src := range tables {
		sources[i] = SourceInfo{Name: src.Name(), Rows: src.Len(), Fields: src.Fields()}
	}
	return &session{
		id:         id,
		createdAt:  now,
		sources:    sources,
		table:      t,
		summary:    sum,
		rules:      filter.NewStore(historyLimit),
		lastAccess: now,
	}
}

// summaryLocked builds the session summary. Caller holds mu.
func (s *session) summaryLocked() *SessionSummary {
	return &SessionSummary{
		ID:         s.id.String(),
		Sources:    append([]SourceInfo(nil), s.sources...),
		Join:       s.summary,
		Fields:     s.table.Fields(),
		Rows:       s.table.Len(),
		Rules:      s.rules.Active().List(),
		UndoDepth:  s.rules.UndoDepth(),
		CreatedAt:  s.createdAt,
		LastAccess: s.lastAccess,
	}
}

func (s *session) sourceNames() []string {
	names := make([]string, len(s.sources))
	for i, src := range s.sources {
		names[i] = src.Name
	}
	return names
}
