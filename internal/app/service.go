// Package service orchestrates the raid engine: analysis of pasted logs,
// ignore and accept writes, monthly views and relay ingest. It implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/raidstats/internal/adapters/mq/queue"
	workerpool "github.com/okian/raidstats/internal/adapters/mq/worker"
	"github.com/okian/raidstats/internal/adapters/repository"
	"github.com/okian/raidstats/internal/domain/aggregate"
	"github.com/okian/raidstats/internal/domain/dedupe"
	"github.com/okian/raidstats/internal/domain/handle"
	"github.com/okian/raidstats/internal/domain/ignore"
	"github.com/okian/raidstats/internal/domain/matcher"
	"github.com/okian/raidstats/internal/domain/model"
	"github.com/okian/raidstats/internal/domain/parser"
	"github.com/okian/raidstats/internal/domain/stats"
	"github.com/okian/raidstats/internal/domain/types"
	"github.com/okian/raidstats/pkg/logger"
	"github.com/okian/raidstats/pkg/metrics"
)

// ingestTimeout bounds one relay write on the worker pool.
const ingestTimeout = 10 * time.Second

// Service implements the API dependencies for the raid statistics system.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	ignores *ignore.Manager
	deduper dedupe.Deduper
	queue   *eventqueue.InMemoryQueue
	pool    *workerpool.Pool

	location      *time.Location
	now           func() time.Time
	newID         func() string
	searchLimit   int
	maxPasteBytes int
	workerCount   int
	queueSize     int
	dedupeSize    int

	started bool
	stopped bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		location:      time.UTC,
		now:           time.Now,
		newID:         uuid.NewString,
		searchLimit:   matcher.DefaultSearchLimit,
		maxPasteBytes: 1 << 20,
		workerCount:   runtime.NumCPU(),
		queueSize:     10_000,
		dedupeSize:    50_000,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.ignores = ignore.NewManager(s.store, ignore.WithClock(s.now), ignore.WithIDGenerator(s.newID))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	return s
}

// Start launches the relay ingest workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s, workerpool.WithIngestTimeout(ingestTimeout))
	s.pool.Start(ctx)
	s.started = true

	s.logger.Info(ctx, "raid service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("timezone", s.location.String()),
	)
	return nil
}

// Stop drains the relay queue, stops the workers and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping raid service...")

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
	} else {
		_ = s.queue.Close()
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "store close", logger.Error(err))
	}

	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "raid service stopped")
}

// Analyze parses text, classifies every candidate for the month and returns
// the review table. Roster and ignore-list load failures fail the analysis.
func (s *Service) Analyze(ctx context.Context, req types.AnalyzeRequest) (types.AnalysisResult, error) {
	const op = "analyze"
	start := time.Now()
	defer func() {
		metrics.RecordAnalyzeDuration(float64(time.Since(start).Microseconds()) / 1000)
	}()

	month, err := s.month(req.Month)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	if len(req.Text) > s.maxPasteBytes {
		return types.AnalysisResult{}, fmt.Errorf("%w: text exceeds %d bytes", ErrBadRequest, s.maxPasteBytes)
	}

	members, err := s.store.Members(ctx)
	if err != nil {
		return types.AnalysisResult{}, fmt.Errorf("%s: load roster: %w", op, err)
	}
	ignored, err := s.ignores.Load(ctx, month)
	if err != nil {
		return types.AnalysisResult{}, fmt.Errorf("%s: %w", op, err)
	}

	m := matcher.New(members)
	for raw, id := range req.Overrides {
		if !m.Override(raw, id) {
			return types.AnalysisResult{}, fmt.Errorf("%w: override %q -> %q: no active member", ErrBadRequest, raw, id)
		}
	}

	res := types.AnalysisResult{Month: month, Rows: []types.AnalysisRow{}}
	if req.Text != "" {
		res.Summary.Lines = strings.Count(req.Text, "\n") + 1
	}
	pctx := parser.NewContext(s.now().In(s.location), s.location)
	for _, c := range parser.ParseText(req.Text, pctx) {
		ev := aggregate.Classify(c.Event, month, m, ignored)
		inMonth := model.MonthOf(ev.Timestamp.In(s.location)) == month
		if !inMonth && ev.Status == model.StatusOK {
			ev.Status = model.StatusUnknown
		}
		row := types.NewAnalysisRow(c.LineNumber, c.OriginalText, ev)
		if !inMonth && row.Reason == "" && ev.Status == model.StatusUnknown {
			row.Reason = aggregate.ReasonOutsideMonth
		}
		res.Rows = append(res.Rows, row)
		res.Summary.Add(ev.Status)
		metrics.RecordRaidCandidate(string(ev.Status))
	}
	metrics.RecordLinesParsed(res.Summary.Lines)

	s.logger.Debug(ctx, "analysis done",
		logger.String("month", month),
		logger.Int("lines", res.Summary.Lines),
		logger.Int("ok", res.Summary.OK),
		logger.Int("unknown", res.Summary.Unknown),
		logger.Int("ignored", res.Summary.Ignored),
	)
	return res, nil
}

// Ignore suppresses a pair for the month. It returns false when the pair was
// already ignored.
func (s *Service) Ignore(ctx context.Context, req types.IgnoreRequest) (bool, error) {
	month, err := s.month(req.Month)
	if err != nil {
		return false, err
	}
	added, err := s.ignores.Ignore(ctx, month, handle.Normalize(req.RaiderKey), handle.Normalize(req.TargetKey), req.RawText)
	if errors.Is(err, ignore.ErrEmptyKey) {
		return false, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if err != nil {
		return false, err
	}
	if added {
		metrics.RecordIgnoreAdded()
		s.logger.Info(ctx, "raid pair ignored",
			logger.String("month", month),
			logger.String("raider", req.RaiderKey),
			logger.String("target", req.TargetKey),
		)
	}
	return added, nil
}

// Accept appends the rows to the accepted raids and returns how many were
// written. Each row lands in the month of its own date; rows without a date
// take the current time when it falls in the request month, else the first
// instant of that month.
func (s *Service) Accept(ctx context.Context, req types.AcceptRequest) (int, error) {
	month, err := s.month(req.Month)
	if err != nil {
		return 0, err
	}
	if len(req.Raids) == 0 {
		return 0, nil
	}

	var byID map[string]model.Member
	for _, r := range req.Raids {
		if r.RaiderID != "" || r.TargetID != "" {
			if byID, err = s.membersByID(ctx); err != nil {
				return 0, err
			}
			break
		}
	}

	fallback, err := s.defaultDate(month)
	if err != nil {
		return 0, err
	}

	byMonth := make(map[string][]model.AcceptedRaid)
	var months []string
	perSource := make(map[model.Source]int)
	for i, r := range req.Raids {
		raid, err := s.acceptedRaid(r, byID, fallback)
		if err != nil {
			return 0, fmt.Errorf("raid %d: %w", i, err)
		}
		key := model.MonthOf(raid.Date.In(s.location))
		if _, ok := byMonth[key]; !ok {
			months = append(months, key)
		}
		byMonth[key] = append(byMonth[key], raid)
		perSource[raid.Source]++
	}

	written := 0
	for _, key := range months {
		if err := s.store.AppendAccepted(ctx, key, byMonth[key]...); err != nil {
			return written, fmt.Errorf("accept %s: %w", key, err)
		}
		written += len(byMonth[key])
		if key != month {
			s.logger.Warn(ctx, "accepted raids dated outside the request month",
				logger.String("month", month),
				logger.String("stored", key),
				logger.Int("count", len(byMonth[key])),
			)
		}
	}
	for src, n := range perSource {
		metrics.RecordRaidsAccepted(string(src), n)
	}
	s.logger.Info(ctx, "raids accepted", logger.String("month", month), logger.Int("count", written))
	return written, nil
}

// defaultDate is the date given to accepted rows that carry none.
func (s *Service) defaultDate(month string) (time.Time, error) {
	now := s.now().In(s.location)
	if model.MonthOf(now) == month {
		return now, nil
	}
	t, err := time.ParseInLocation("2006-01", month, s.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return t, nil
}

func (s *Service) acceptedRaid(r types.AcceptedRow, byID map[string]model.Member, fallback time.Time) (model.AcceptedRaid, error) {
	raider, err := bound(r.Raider, r.RaiderID, byID)
	if err != nil {
		return model.AcceptedRaid{}, err
	}
	target, err := bound(r.Target, r.TargetID, byID)
	if err != nil {
		return model.AcceptedRaid{}, err
	}
	if handle.Normalize(raider) == "" || handle.Normalize(target) == "" {
		return model.AcceptedRaid{}, fmt.Errorf("%w: raider and target are required", ErrBadRequest)
	}

	src := model.SourceManual
	if r.Source != "" {
		if src, err = model.ParseSource(string(r.Source)); err != nil {
			return model.AcceptedRaid{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
	}
	date := r.Date
	if date.IsZero() {
		date = fallback
	}
	count := r.Count
	if count < 1 {
		count = 1
	}
	return model.AcceptedRaid{ID: s.newID(), Raider: raider, Target: target, Date: date, Count: count, Source: src}, nil
}

// bound replaces raw with the member's login when id is set.
func bound(raw, id string, byID map[string]model.Member) (string, error) {
	if id == "" {
		return raw, nil
	}
	m, ok := byID[id]
	if !ok || !m.IsActive {
		return "", fmt.Errorf("%w: no active member %q", ErrBadRequest, id)
	}
	return m.TwitchLogin, nil
}

func (s *Service) membersByID(ctx context.Context) (map[string]model.Member, error) {
	members, err := s.store.Members(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	out := make(map[string]model.Member, len(members))
	for _, m := range members {
		out[m.ID] = m
	}
	return out, nil
}

// MonthlyView reclassifies the month's accepted raids against the current
// roster and ignore-list, then aggregates them under filters.
func (s *Service) MonthlyView(ctx context.Context, month string, filters aggregate.Filters) (types.MonthlyView, error) {
	const op = "monthly view"
	if _, err := model.ParseMonth(month); err != nil {
		return types.MonthlyView{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	members, err := s.store.Members(ctx)
	if err != nil {
		return types.MonthlyView{}, fmt.Errorf("%s: load roster: %w", op, err)
	}
	ignored, err := s.ignores.Load(ctx, month)
	if err != nil {
		return types.MonthlyView{}, fmt.Errorf("%s: %w", op, err)
	}
	accepted, err := s.store.LoadAccepted(ctx, month)
	if err != nil {
		return types.MonthlyView{}, fmt.Errorf("%s: load accepted: %w", op, err)
	}

	events := make([]model.RaidEvent, len(accepted))
	for i, a := range accepted {
		events[i] = a.Event()
	}
	classified := aggregate.ClassifyAll(events, month, matcher.New(members), ignored)
	idx := aggregate.Aggregate(month, aggregate.Split(classified), filters)
	st := stats.ComputeStats(idx)
	metrics.RecordAlertsEmitted(len(st.Alerts))

	return types.MonthlyView{Month: month, Filters: filters, Index: idx, Stats: st}, nil
}

// SearchMembers returns active members matching q.
func (s *Service) SearchMembers(ctx context.Context, q string) (types.MemberSearchResult, error) {
	members, err := s.store.Members(ctx)
	if err != nil {
		return types.MemberSearchResult{}, fmt.Errorf("search members: %w", err)
	}
	res := types.MemberSearchResult{Query: q, Members: []types.MemberRef{}}
	for _, m := range matcher.New(members).Search(q, s.searchLimit) {
		res.Members = append(res.Members, *types.RefOf(&m))
	}
	return res, nil
}

// Submit queues a relay event. Duplicate ids return false without error; a
// full queue returns ErrBackpressure and forgets the id so a retry is accepted.
func (s *Service) Submit(ctx context.Context, e model.SourceEvent) (bool, error) {
	if s.deduper.SeenAndRecord(ctx, e.ID) {
		metrics.RecordRelayDuplicate(string(e.Source))
		s.logger.Debug(ctx, "duplicate relay event, skipping", logger.String("eventID", e.ID))
		return false, nil
	}
	if err := s.queue.Enqueue(ctx, e); err != nil {
		s.deduper.Unrecord(ctx, e.ID)
		switch {
		case errors.Is(err, eventqueue.ErrFull):
			return false, fmt.Errorf("%w: %w", ErrBackpressure, err)
		case errors.Is(err, eventqueue.ErrClosed):
			return false, fmt.Errorf("%w: %w", ErrStopped, err)
		}
		return false, err
	}
	return true, nil
}

// Ingest appends a relay event to the accepted raids of its month. It runs on
// the worker pool; a failed write forgets the id so redelivery can retry.
func (s *Service) Ingest(ctx context.Context, e model.SourceEvent) error {
	month := model.MonthOf(e.Date.In(s.location))
	if err := s.store.AppendAccepted(ctx, month, e.Accepted(s.newID())); err != nil {
		s.deduper.Unrecord(ctx, e.ID)
		return fmt.Errorf("ingest %s: %w", e.ID, err)
	}
	metrics.RecordRelayEvent(string(e.Source))
	return nil
}

// Health pings the store.
func (s *Service) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	queueLen := s.queue.Len(ctx)
	return map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"queueLength": queueLen,
		"dedupeSize":  s.dedupeSize,
		"dedupeLen":   s.deduper.Size(),
		"timezone":    s.location.String(),
	}
}

// month validates a YYYY-MM key; empty means the current month.
func (s *Service) month(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return model.MonthOf(s.now().In(s.location)), nil
	}
	m, err := model.ParseMonth(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return m, nil
}
