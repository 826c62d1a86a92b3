// Package lifecycle runs the periodic sweeps that close stale sessions and
// drop idle users.
package lifecycle

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lanarcade/gamehub/internal/dependencies/clock"
	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/services/identity"
	"github.com/lanarcade/gamehub/internal/services/presence"
	"github.com/lanarcade/gamehub/internal/services/session"
)

// Publisher is notified once per sweep that changed anything
type Publisher interface {
	Publish(ctx context.Context) error
}

// Config holds sweep limits and intervals
type Config struct {
	// GameDuration is how long a started session may run before it is finished
	GameDuration time.Duration
	// ClosureGrace is how long a session stays listed after GameDuration
	ClosureGrace time.Duration
	// GamesEvery and UsersEvery are the sweep intervals
	GamesEvery time.Duration
	UsersEvery time.Duration
	// PassTimeout bounds one sweep
	PassTimeout time.Duration
}

// DefaultConfig returns the default sweep configuration
func DefaultConfig() Config {
	return Config{
		GameDuration: 60 * time.Minute,
		ClosureGrace: 30 * time.Minute,
		GamesEvery:   10 * time.Minute,
		UsersEvery:   10 * time.Minute,
		PassTimeout:  30 * time.Second,
	}
}

// Report summarizes one sweep
type Report struct {
	Skipped  bool
	Finished int
	Deleted  int
	Users    []string
}

// Changed reports whether the sweep modified anything
func (r Report) Changed() bool {
	return r.Finished > 0 || r.Deleted > 0 || len(r.Users) > 0
}

// Scheduler owns both sweeps. Each sweep is single-flight: a pass that
// starts while the previous one is still running is skipped.
type Scheduler struct {
	cfg       Config
	sessions  *session.Controller
	identity  *identity.Service
	presence  *presence.Registry
	publisher Publisher
	clock     clock.Clock
	logger    *slog.Logger

	gamesRunning atomic.Bool
	usersRunning atomic.Bool
}

// NewScheduler creates a scheduler
func NewScheduler(
	cfg Config,
	sessions *session.Controller,
	identity *identity.Service,
	presence *presence.Registry,
	publisher Publisher,
	clock clock.Clock,
	logger *slog.Logger,
) *Scheduler {
	def := DefaultConfig()
	if cfg.GameDuration <= 0 {
		cfg.GameDuration = def.GameDuration
	}
	if cfg.ClosureGrace <= 0 {
		cfg.ClosureGrace = def.ClosureGrace
	}
	if cfg.GamesEvery <= 0 {
		cfg.GamesEvery = def.GamesEvery
	}
	if cfg.UsersEvery <= 0 {
		cfg.UsersEvery = def.UsersEvery
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = def.PassTimeout
	}
	return &Scheduler{
		cfg:       cfg,
		sessions:  sessions,
		identity:  identity,
		presence:  presence,
		publisher: publisher,
		clock:     clock,
		logger:    logger.With(slog.String("component", "lifecycle")),
	}
}

// Start runs both sweeps on their intervals until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	games := time.NewTicker(s.cfg.GamesEvery)
	users := time.NewTicker(s.cfg.UsersEvery)
	defer games.Stop()
	defer users.Stop()

	s.logger.Info("scheduler started",
		slog.Duration("games_every", s.cfg.GamesEvery),
		slog.Duration("users_every", s.cfg.UsersEvery),
	)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-games.C:
			go s.pass(ctx, "games", s.SweepGames)
		case <-users.C:
			go s.pass(ctx, "users", s.SweepUsers)
		}
	}
}

func (s *Scheduler) pass(ctx context.Context, name string, sweep func(context.Context) (Report, error)) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PassTimeout)
	defer cancel()
	if _, err := sweep(ctx); err != nil {
		s.logger.Error("sweep failed", slog.String("sweep", name), slog.String("error", err.Error()))
	}
}

// SweepGames deletes orphaned sessions, finishes sessions past the game
// duration and deletes them once the closure grace has passed too.
// Sessions that never started are deleted after the same total time.
func (s *Scheduler) SweepGames(ctx context.Context) (Report, error) {
	if !s.gamesRunning.CompareAndSwap(false, true) {
		return Report{Skipped: true}, nil
	}
	defer s.gamesRunning.Store(false)

	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return Report{}, err
	}
	if len(sessions) == 0 {
		return Report{}, nil
	}
	s.logger.Info("games cleanup started", slog.Int("games", len(sessions)))

	var report Report
	closeAfter := s.cfg.GameDuration + s.cfg.ClosureGrace
	for _, sess := range sessions {
		if err := ctx.Err(); err != nil {
			return report, s.finishPass(ctx, report, err)
		}

		if sess.IsOrphaned() {
			if err := s.delete(ctx, &report, sess, "orphaned"); err != nil {
				return report, s.finishPass(ctx, report, err)
			}
			continue
		}

		if sess.StartedAt == nil {
			if s.clock.Since(sess.CreatedAt) > closeAfter {
				if err := s.delete(ctx, &report, sess, "never started"); err != nil {
					return report, s.finishPass(ctx, report, err)
				}
			}
			continue
		}

		age := s.clock.Since(*sess.StartedAt)
		if age > s.cfg.GameDuration && sess.IsActive() {
			changed, err := s.sessions.Expire(ctx, sess.ID)
			if err != nil {
				return report, s.finishPass(ctx, report, err)
			}
			if changed {
				report.Finished++
				s.logger.Info("game finished due to time limit", slog.String("session", string(sess.ID)))
			}
		}
		if age > closeAfter {
			if err := s.delete(ctx, &report, sess, "closed"); err != nil {
				return report, s.finishPass(ctx, report, err)
			}
		}
	}

	left, _ := s.sessions.List(ctx)
	s.logger.Info("games cleanup finished", slog.Int("games_left", len(left)))
	return report, s.finishPass(ctx, report, nil)
}

func (s *Scheduler) delete(ctx context.Context, report *Report, sess *model.Session, reason string) error {
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return err
	}
	report.Deleted++
	s.logger.Info("game deleted", slog.String("session", string(sess.ID)), slog.String("reason", reason))
	return nil
}

// SweepUsers deletes users idle past the inactivity limit. Each swept
// login leaves every session it occupies.
func (s *Scheduler) SweepUsers(ctx context.Context) (Report, error) {
	if !s.usersRunning.CompareAndSwap(false, true) {
		return Report{Skipped: true}, nil
	}
	defer s.usersRunning.Store(false)

	swept, err := s.identity.SweepInactive(ctx)
	report := Report{Users: swept}
	for _, login := range swept {
		if _, leaveErr := s.sessions.LeaveAll(ctx, login); leaveErr != nil {
			s.logger.Warn("forced leave failed", slog.String("login", login), slog.String("error", leaveErr.Error()))
		}
		s.presence.ForgetLogin(login)
	}
	if len(swept) > 0 {
		s.logger.Info("inactive users removed", slog.Any("logins", swept))
	}
	return report, s.finishPass(ctx, report, err)
}

// finishPass publishes once if the pass changed anything, even when it
// stopped early
func (s *Scheduler) finishPass(ctx context.Context, report Report, err error) error {
	if report.Changed() && s.publisher != nil {
		// a cancelled pass still announces what it already did
		if pubErr := s.publisher.Publish(context.WithoutCancel(ctx)); pubErr != nil && err == nil {
			err = pubErr
		}
	}
	return err
}
