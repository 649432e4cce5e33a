/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/HamedShams/board-nudge/internal/config"
	"github.com/HamedShams/board-nudge/internal/dedup"
	"github.com/HamedShams/board-nudge/internal/domain"
	"github.com/HamedShams/board-nudge/internal/metrics"
	"github.com/HamedShams/board-nudge/internal/render"
	"github.com/HamedShams/board-nudge/internal/roster"
	"github.com/HamedShams/board-nudge/internal/rules"
	"github.com/HamedShams/board-nudge/internal/store"
)

// Pipeline names, also used as store lock names and run-history keys.
const (
	PipelineCycle = "cycle"
	PipelineBoard = "board"
)

// ErrBusy is returned when another run of the same pipeline holds the lock.
var ErrBusy = errors.New("pipeline already running")

type IssueSource interface {
	Issues(ctx context.Context, jql string) iter.Seq2[[]domain.Issue, error]
}

type BoardSource interface {
	BoardTasks(ctx context.Context, jql string) iter.Seq2[[]domain.BoardTask, error]
}

type PullSource interface {
	PullRequests(ctx context.Context, repo string) iter.Seq2[[]domain.PullRequest, error]
}

type Sink interface {
	Post(ctx context.Context, channel, fallback string, blocks []render.Block) (string, error)
}

type Responder interface {
	Respond(ctx context.Context, responseURL, fallback string, blocks []render.Block) error
}

type Coach interface {
	Enabled() bool
	Coach(ctx context.Context, name string, lines []string) (string, error)
}

// Directory is the roster as seen by the pipelines.
type Directory interface {
	rules.Resolver
	BySlack(id string) *domain.User
	Department(dept string) []domain.User
}

// Deps are the collaborators of a Service. Pulls, Board, Responder and Coach
// may be nil; the features that need them are then disabled.
type Deps struct {
	Issues    IssueSource
	Pulls     PullSource
	Board     BoardSource
	Store     store.Store
	Sink      Sink
	Responder Responder
	Users     Directory
	Coach     Coach
	Now       func() time.Time
}

// Snapshot is the outcome of the last run of a pipeline in this process.
type Snapshot struct {
	store.Run
	Blocks []render.Block `json:"blocks,omitempty"`
}

type Service struct {
	cfg       config.Config
	log       zerolog.Logger
	deps      Deps
	eval      rules.Evaluator
	dedup     *dedup.Deduplicator
	cooldowns dedup.Cooldowns

	cycleMu sync.Mutex
	boardMu sync.Mutex

	lastMu sync.RWMutex
	last   map[string]Snapshot
}

func New(cfg config.Config, log zerolog.Logger, d Deps) (*Service, error) {
	if d.Issues == nil || d.Store == nil || d.Sink == nil {
		return nil, errors.New("services: issue source, store and sink are required")
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	cooldowns, err := dedup.ParseCooldowns(cfg.Cooldowns, dedup.DefaultCooldowns())
	if err != nil {
		return nil, err
	}
	hour, minute, err := cfg.EndOfDayClock()
	if err != nil {
		return nil, err
	}
	eval := rules.Evaluator{
		Pulls: rules.PullPolicy{
			StaleAfter:     cfg.PRStaleAfter,
			EndOfDayHour:   hour,
			EndOfDayMinute: minute,
			Location:       cfg.Location(),
		},
		BoardLink: cfg.JiraBoardURL,
	}
	if d.Users != nil {
		eval.Users = d.Users
	}
	dd := dedup.New(d.Store, dedup.Config{
		Cooldowns:   cooldowns,
		TTL:         cfg.TriggerTTL,
		Concurrency: cfg.DedupConcurrency,
	}, log)
	return &Service{
		cfg:       cfg,
		log:       log,
		deps:      d,
		eval:      eval,
		dedup:     dd,
		cooldowns: cooldowns,
		last:      map[string]Snapshot{},
	}, nil
}

func (s *Service) now() time.Time { return s.deps.Now() }

// RunCycle evaluates open issues and pull requests, posts what survives
// dedup to the team channel and records the fired triggers.
func (s *Service) RunCycle(ctx context.Context) error {
	return s.run(ctx, PipelineCycle, &s.cycleMu, s.cycle)
}

// RunBoardCheck evaluates the task board and posts to the leads channel.
func (s *Service) RunBoardCheck(ctx context.Context) error {
	if s.deps.Board == nil {
		return errors.New("board check: no board source configured")
	}
	return s.run(ctx, PipelineBoard, &s.boardMu, s.boardCheck)
}

type pipelineFunc func(ctx context.Context, run *store.Run) ([]render.Block, error)

// run guards a pipeline with the in-process mutex and the store lock, then
// records the outcome in the run history and metrics.
func (s *Service) run(ctx context.Context, pipeline string, mu *sync.Mutex, body pipelineFunc) error {
	if !mu.TryLock() {
		metrics.Cycles.WithLabelValues(pipeline, "locked").Inc()
		return ErrBusy
	}
	defer mu.Unlock()

	ok, err := s.deps.Store.TryLock(ctx, pipeline)
	if err != nil {
		metrics.Cycles.WithLabelValues(pipeline, "error").Inc()
		return fmt.Errorf("lock %s: %w", pipeline, err)
	}
	if !ok {
		metrics.Cycles.WithLabelValues(pipeline, "locked").Inc()
		s.log.Info().Str("pipeline", pipeline).Msg("another runner holds the lock, skipping")
		return ErrBusy
	}
	defer func() {
		if err := s.deps.Store.Unlock(context.WithoutCancel(ctx), pipeline); err != nil {
			s.log.Warn().Err(err).Str("pipeline", pipeline).Msg("unlock failed")
		}
	}()

	run := store.Run{ID: uuid.NewString(), Pipeline: pipeline, StartedAt: s.now()}
	log := s.log.With().Str("pipeline", pipeline).Str("run", run.ID).Logger()
	if err := s.deps.Store.RecordRun(ctx, run); err != nil {
		log.Warn().Err(err).Msg("record run start")
	}

	timer := prometheus.NewTimer(metrics.CycleDuration.WithLabelValues(pipeline))
	blocks, runErr := body(ctx, &run)
	timer.ObserveDuration()

	finished := s.now()
	run.FinishedAt = &finished
	run.Success = runErr == nil
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := s.deps.Store.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn().Err(err).Msg("record run finish")
	}
	s.remember(Snapshot{Run: run, Blocks: blocks})

	if runErr != nil {
		metrics.Cycles.WithLabelValues(pipeline, "error").Inc()
		log.Error().Err(runErr).Int("evaluated", run.Evaluated).Msg("run failed")
		return runErr
	}
	metrics.Cycles.WithLabelValues(pipeline, "ok").Inc()
	log.Info().Int("evaluated", run.Evaluated).Int("fired", run.Fired).Dur("took", finished.Sub(run.StartedAt)).Msg("run done")
	return nil
}

func (s *Service) cycle(ctx context.Context, run *store.Run) ([]render.Block, error) {
	now := s.now()
	var triggers []domain.Trigger
	for page, err := range s.deps.Issues.Issues(ctx, s.cfg.JiraJQL) {
		if err != nil {
			return nil, fmt.Errorf("fetch issues: %w", err)
		}
		triggers = append(triggers, s.eval.Issues(page)...)
	}
	if s.deps.Pulls != nil {
		for _, repo := range s.cfg.GitHubRepos {
			for page, err := range s.deps.Pulls.PullRequests(ctx, repo) {
				if err != nil {
					return nil, fmt.Errorf("fetch pull requests: %w", err)
				}
				triggers = append(triggers, s.eval.PullRequests(page, now)...)
			}
		}
	}
	run.Evaluated = len(triggers)
	frame := func(res render.Result) render.Framing {
		return render.TeamFraming(s.windows(res.Triggers), s.cfg.SlackLeads)
	}
	return s.deliver(ctx, run, triggers, s.cfg.SlackChannel, frame, now)
}

func (s *Service) boardCheck(ctx context.Context, run *store.Run) ([]render.Block, error) {
	now := s.now()
	summary := rules.NewBoardSummary()
	for page, err := range s.deps.Board.BoardTasks(ctx, s.cfg.JiraBoardJQL) {
		if err != nil {
			return nil, fmt.Errorf("fetch board: %w", err)
		}
		summary.Add(page...)
	}
	var backend []domain.User
	if s.deps.Users != nil {
		backend = s.deps.Users.Department(roster.DepartmentBackend)
	}
	triggers := s.eval.Board(summary, backend)
	run.Evaluated = len(triggers)

	imbalanced := slices.ContainsFunc(triggers, func(t domain.Trigger) bool { return t.Type == domain.T10 })
	if !imbalanced {
		// A healthy board resets T10 so the next imbalance is reported at once.
		if err := s.deps.Store.Delete(ctx, rules.BoardImbalanceID()); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("clear board imbalance: %w", err)
		}
	}

	channel := s.cfg.SlackLeadsChannel
	if channel == "" {
		channel = s.cfg.SlackChannel
	}
	frame := func(render.Result) render.Framing { return render.LeadsFraming(s.cfg.SlackLeads) }
	return s.deliver(ctx, run, triggers, channel, frame, now)
}

// windows lists the distinct cooldowns of the given triggers' types.
func (s *Service) windows(triggers []domain.Trigger) []time.Duration {
	var out []time.Duration
	for _, t := range triggers {
		if w := s.cooldowns.For(t.Type); !slices.Contains(out, w) {
			out = append(out, w)
		}
	}
	return out
}

// deliver filters, renders and posts triggers. Records are written only after
// the post succeeded, so a failed delivery is retried next run.
func (s *Service) deliver(ctx context.Context, run *store.Run, triggers []domain.Trigger, channel string, frame func(render.Result) render.Framing, now time.Time) ([]render.Block, error) {
	fresh, err := s.dedup.Filter(ctx, dedup.NewCache(s.deps.Store), triggers, now)
	if err != nil {
		return nil, fmt.Errorf("dedup: %w", err)
	}
	res, err := render.Render(fresh)
	if err != nil {
		s.log.Error().Err(err).Msg("render: some groups were dropped")
	}
	blocks := render.Frame(res.Blocks, frame(res))
	if len(blocks) == 0 {
		s.log.Debug().Str("channel", channel).Msg("nothing to post")
		return nil, nil
	}
	if _, err := s.deps.Sink.Post(ctx, channel, render.Fallback(res), blocks); err != nil {
		return blocks, fmt.Errorf("post: %w", err)
	}
	run.Fired = len(res.Triggers)
	if err := s.dedup.Commit(ctx, res.Triggers, now); err != nil {
		return blocks, fmt.Errorf("commit: %w", err)
	}
	return blocks, nil
}

func (s *Service) remember(snap Snapshot) {
	s.lastMu.Lock()
	s.last[snap.Pipeline] = snap
	s.lastMu.Unlock()
}

// LastRun returns the last run of pipeline. Runs of this process carry their
// rendered blocks; otherwise the store's run history is consulted.
func (s *Service) LastRun(ctx context.Context, pipeline string) (*Snapshot, error) {
	s.lastMu.RLock()
	snap, ok := s.last[pipeline]
	s.lastMu.RUnlock()
	if ok {
		return &snap, nil
	}
	run, err := s.deps.Store.LastRun(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Run: *run}, nil
}

// Purge deletes every trigger record.
func (s *Service) Purge(ctx context.Context) (int, error) {
	n, err := s.deps.Store.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	s.log.Info().Int("deleted", n).Msg("trigger records purged")
	return n, nil
}

// Snooze silences a trigger until it is unsnoozed or purged. Unknown ids are
// accepted so a snooze can precede the first notification.
func (s *Service) Snooze(ctx context.Context, key string) error {
	return s.setSnoozed(ctx, key, true)
}

func (s *Service) Unsnooze(ctx context.Context, key string) error {
	return s.setSnoozed(ctx, key, false)
}

func (s *Service) setSnoozed(ctx context.Context, key string, snoozed bool) error {
	id, err := domain.ParseKey(key)
	if err != nil {
		return err
	}
	if err := s.deps.Store.SetSnoozed(ctx, id, snoozed); err != nil {
		return fmt.Errorf("snooze %s: %w", id.Key(), err)
	}
	s.log.Info().Str("trigger", id.Key()).Bool("snoozed", snoozed).Msg("snooze updated")
	return nil
}

// Triggers lists the persisted trigger records.
func (s *Service) Triggers(ctx context.Context) ([]domain.Trigger, error) {
	return s.deps.Store.List(ctx)
}
