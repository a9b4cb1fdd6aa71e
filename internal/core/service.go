package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/FuzzyCleanse/internal/export"
	"github.com/JonMunkholm/FuzzyCleanse/internal/filter"
	"github.com/JonMunkholm/FuzzyCleanse/internal/join"
	"github.com/JonMunkholm/FuzzyCleanse/internal/loader"
	"github.com/JonMunkholm/FuzzyCleanse/internal/similarity"
	"github.com/JonMunkholm/FuzzyCleanse/internal/table"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoFiles is returned when CreateSession receives no uploads.
	ErrNoFiles = errors.New("no file provided")

	// ErrTooManyFiles is returned when an upload exceeds Options.MaxFiles.
	ErrTooManyFiles = errors.New("too many files")
)

// Options configures a Service. Zero values select defaults.
type Options struct {
	MaxFiles         int
	MaxFileSize      int64
	MaxConcurrent    int
	MaxWait          time.Duration
	SessionTTL       time.Duration
	HistoryLimit     int
	DefaultThreshold float64
	Scorer           string
	Workers          int
	ParallelMinRows  int
	Fallback         join.Fallback
}

const (
	DefaultMaxFiles   = 20
	DefaultSessionTTL = time.Hour
)

func (o *Options) applyDefaults() {
	if o.MaxFiles <= 0 {
		o.MaxFiles = DefaultMaxFiles
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = loader.DefaultMaxSize
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = DefaultSessionTTL
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = filter.DefaultHistoryLimit
	}
	if o.DefaultThreshold == 0 {
		o.DefaultThreshold = filter.DefaultThreshold
	}
	if o.Fallback == "" {
		o.Fallback = join.FallbackAbort
	}
}

// Service owns the in-memory sessions.
type Service struct {
	opts     Options
	executor *filter.Executor
	limiter  *LoadLimiter
	sink     *export.PostgresSink
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

// NewService creates a Service. sink may be nil, in which case database
// export fails with export.ErrSinkDisabled.
func NewService(opts Options, sink *export.PostgresSink) (*Service, error) {
	opts.applyDefaults()

	score, err := similarity.ByName(opts.Scorer)
	if err != nil {
		return nil, err
	}
	if opts.DefaultThreshold < 0 || opts.DefaultThreshold > 100 {
		return nil, fmt.Errorf("%w: default threshold %v", filter.ErrInvalidThreshold, opts.DefaultThreshold)
	}
	if _, err := join.ParseFallback(string(opts.Fallback)); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = export.NewPostgresSink(nil)
	}

	return &Service{
		opts: opts,
		executor: filter.NewExecutor(filter.NewMatcher(score),
			filter.WithWorkers(opts.Workers),
			filter.WithParallelMinRows(opts.ParallelMinRows),
		),
		limiter:  NewLoadLimiter(opts.MaxConcurrent, opts.MaxWait),
		sink:     sink,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*session),
	}, nil
}

// Limiter returns the load limiter, for status reporting and shutdown.
func (s *Service) Limiter() *LoadLimiter { return s.limiter }

// DatabaseEnabled reports whether database export is configured.
func (s *Service) DatabaseEnabled() bool { return s.sink.Enabled() }

// CreateSession loads uploads, consolidates them and stores the result in a
// new session.
func (s *Service) CreateSession(ctx context.Context, uploads []Upload) (*SessionSummary, error) {
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}
	if len(uploads) > s.opts.MaxFiles {
		return nil, fmt.Errorf("%w: %d files, limit is %d", ErrTooManyFiles, len(uploads), s.opts.MaxFiles)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()
	tables, err := LoadTables(ctx, uploads, loader.Options{MaxSize: s.opts.MaxFileSize})
	if err != nil {
		return nil, err
	}

	consolidated, sum, err := BuildConsolidatedTable(tables, s.opts.Fallback)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	sess := newSession(id, tables, consolidated, sum, s.opts.HistoryLimit, s.now())

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	slog.Info("session created",
		"session_id", id.String(),
		"files", len(uploads),
		"strategy", sum.Strategy,
		"keys", sum.Keys,
		"rows", consolidated.Len(),
		"client_ip", ClientIPFromContext(ctx),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.summaryLocked(), nil
}

// lookup returns the session and marks it as used. The caller must lock
// the session before touching its state.
func (s *Service) lookup(id string) (*session, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	s.mu.RLock()
	sess, ok := s.sessions[uid]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// withSession runs fn with the session locked and its access time updated.
func (s *Service) withSession(id string, fn func(*session) error) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastAccess = s.now()
	return fn(sess)
}

// Session returns the summary of a session.
func (s *Service) Session(id string) (*SessionSummary, error) {
	var out *SessionSummary
	err := s.withSession(id, func(sess *session) error {
		out = sess.summaryLocked()
		return nil
	})
	return out, err
}

// DeleteSession removes a session.
func (s *Service) DeleteSession(id string) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()

	slog.Info("session deleted", "session_id", id)
	return nil
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// FieldValues returns the distinct non-empty values of field in the
// consolidated table, in first-seen order.
func (s *Service) FieldValues(id, field string) ([]string, error) {
	var out []string
	err := s.withSession(id, func(sess *session) error {
		if !sess.table.Has(field) {
			return fmt.Errorf("%w: unknown field %q", filter.ErrInvalidRule, field)
		}
		out = sess.table.Distinct(field)
		return nil
	})
	return out, err
}

// SetFilterRule replaces the rule for field. A nil threshold selects the
// default for fuzzy rules and is ignored for exact rules. An empty keyword
// list clears the rule. Invalid input leaves the rules unchanged. A field
// missing from the table is accepted and reported by RunFilter.
func (s *Service) SetFilterRule(id, field string, mode filter.Mode, match filter.MatchType, keywords []string, threshold *float64) error {
	return s.withSession(id, func(sess *session) error {
		r := filter.Rule{
			Field:     field,
			Mode:      mode,
			Match:     match,
			Keywords:  keywords,
			Threshold: s.opts.DefaultThreshold,
		}
		if threshold != nil {
			r.Threshold = *threshold
		}
		if err := sess.rules.Set(r); err != nil {
			return err
		}
		slog.Debug("filter rule set",
			"session_id", id,
			"field", field,
			"mode", mode.String(),
			"match", match.String(),
			"keywords", len(keywords),
		)
		return nil
	})
}

// ClearFilterRule removes the rule for field. Clearing a field without a
// rule is not an error.
func (s *Service) ClearFilterRule(id, field string) error {
	return s.withSession(id, func(sess *session) error {
		sess.rules.Clear(field)
		return nil
	})
}

// ResetFilterRules removes every rule of the session.
func (s *Service) ResetFilterRules(id string) error {
	return s.withSession(id, func(sess *session) error {
		sess.rules.Reset()
		return nil
	})
}

// UndoFilterRule restores the rules as they were before the last change.
// It reports false when there is nothing to undo.
func (s *Service) UndoFilterRule(id string) (bool, error) {
	var undone bool
	err := s.withSession(id, func(sess *session) error {
		undone = sess.rules.Undo()
		return nil
	})
	return undone, err
}

// Rules returns the active rules ordered by field.
func (s *Service) Rules(id string) ([]filter.Rule, error) {
	var out []filter.Rule
	err := s.withSession(id, func(sess *session) error {
		out = sess.rules.Active().List()
		return nil
	})
	return out, err
}

// RunFilter applies the session's active rules to its consolidated table.
func (s *Service) RunFilter(ctx context.Context, id string) (*filter.Result, error) {
	var out *filter.Result
	err := s.withSession(id, func(sess *session) error {
		res, err := s.executor.Run(ctx, sess.table, sess.rules.Active())
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// ExportTable runs the filter and returns the result with its download name.
func (s *Service) ExportTable(ctx context.Context, id string, f export.Format) (string, *table.Table, error) {
	var (
		name   string
		result *filter.Result
	)
	err := s.withSession(id, func(sess *session) error {
		res, err := s.executor.Run(ctx, sess.table, sess.rules.Active())
		if err != nil {
			return err
		}
		name = export.FileName(sess.sourceNames(), f)
		result = res
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return name, result.Table, nil
}

// ExportPostgres writes the filtered result into the named database table.
func (s *Service) ExportPostgres(ctx context.Context, id, tableName string) (int64, error) {
	if !s.sink.Enabled() {
		return 0, export.ErrSinkDisabled
	}
	_, t, err := s.ExportTable(ctx, id, export.FormatCSV)
	if err != nil {
		return 0, err
	}
	n, err := s.sink.Write(ctx, tableName, t)
	if err != nil {
		return n, err
	}
	slog.Info("result exported to database", "session_id", id, "table", tableName, "rows", n)
	return n, nil
}
