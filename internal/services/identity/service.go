// Package identity binds logins to bearer tokens. A login is claimed by the
// first connection to announce it; the token issued then must accompany
// every later request for that login.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/crypto/bcrypt"

	"github.com/lanarcade/gamehub/internal/dependencies/clock"
	"github.com/lanarcade/gamehub/internal/model"
	"github.com/lanarcade/gamehub/internal/storage"
)

// Outcome says what Register did
type Outcome int

const (
	// Issued means the login was free and a new token was minted
	Issued Outcome = iota
	// Refreshed means the presented token matched and the user was touched
	Refreshed
)

// Registration is the result of a successful Register
type Registration struct {
	Outcome Outcome
	Login   string
	// Token is set only when Outcome is Issued
	Token string
	// Evicted lists logins dropped by the per-address cap
	Evicted []string
}

// Config holds configuration for the identity service
type Config struct {
	// UsersPerIP is how many logins one address may hold
	UsersPerIP int
	// InactiveAfter is the idle time after which a user is swept
	InactiveAfter time.Duration
	// HashCost is the bcrypt cost for stored token hashes. Tokens are
	// random uuids, so the minimum cost is enough.
	HashCost int
}

// DefaultConfig returns default identity configuration
func DefaultConfig() Config {
	return Config{
		UsersPerIP:    3,
		InactiveAfter: 300 * time.Minute,
		HashCost:      bcrypt.MinCost,
	}
}

// Service handles login registration and token checks
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	cfg     Config
	logger  *slog.Logger

	mu deadlock.Mutex
}

// New creates a new identity service
func New(storage storage.Storage, clock clock.Clock, cfg Config, logger *slog.Logger) *Service {
	def := DefaultConfig()
	if cfg.UsersPerIP <= 0 {
		cfg.UsersPerIP = def.UsersPerIP
	}
	if cfg.InactiveAfter <= 0 {
		cfg.InactiveAfter = def.InactiveAfter
	}
	if cfg.HashCost == 0 {
		cfg.HashCost = def.HashCost
	}
	return &Service{
		storage: storage,
		clock:   clock,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "identity")),
	}
}

// Register claims login for the caller or refreshes an existing claim.
// An unknown login is issued a fresh token regardless of what was sent.
func (s *Service) Register(ctx context.Context, login, token, ip string) (Registration, error) {
	if !ValidLogin(login) {
		return Registration{}, model.ErrInvalidLogin
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.storage.GetUser(ctx, login)
	if errors.Is(err, model.ErrUserNotFound) {
		return s.issue(ctx, login, ip)
	}
	if err != nil {
		return Registration{}, err
	}

	if !s.matches(user, token) {
		return Registration{}, model.ErrWrongToken
	}
	evicted, err := s.touch(ctx, user, ip)
	if err != nil {
		return Registration{}, err
	}
	return Registration{Outcome: Refreshed, Login: login, Evicted: evicted}, nil
}

func (s *Service) issue(ctx context.Context, login, ip string) (Registration, error) {
	token := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), s.cfg.HashCost)
	if err != nil {
		return Registration{}, err
	}

	now := s.clock.Now()
	user := &model.User{
		Login:     login,
		TokenHash: string(hash),
		IP:        ip,
		LastSeen:  now,
		CreatedAt: now,
	}
	if err := s.storage.SaveUser(ctx, user); err != nil {
		return Registration{}, err
	}
	s.logger.Info("token issued", slog.String("login", login), slog.String("ip", ip))

	evicted, err := s.evict(ctx, ip, login)
	if err != nil {
		return Registration{}, err
	}
	return Registration{Outcome: Issued, Login: login, Token: token, Evicted: evicted}, nil
}

// Authenticate checks token against the one issued for login
func (s *Service) Authenticate(ctx context.Context, login, token string) (*model.User, error) {
	user, err := s.storage.GetUser(ctx, login)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrWrongToken
		}
		return nil, err
	}
	if !s.matches(user, token) {
		return nil, model.ErrWrongToken
	}
	return user, nil
}

// Act authenticates login and runs fn while holding the registry lock, so
// the user cannot be logged out, evicted or swept until fn returns. fn must
// not call back into the Service.
func (s *Service) Act(ctx context.Context, login, token string, fn func(user *model.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.Authenticate(ctx, login, token)
	if err != nil {
		return err
	}
	return fn(user)
}

// Touch authenticates and records activity from ip. It returns the logins
// evicted by the per-address cap.
func (s *Service) Touch(ctx context.Context, login, token, ip string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.Authenticate(ctx, login, token)
	if err != nil {
		return nil, err
	}
	return s.touch(ctx, user, ip)
}

func (s *Service) touch(ctx context.Context, user *model.User, ip string) ([]string, error) {
	if ip != "" {
		user.IP = ip
	}
	user.LastSeen = s.clock.Now()
	if err := s.storage.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return s.evict(ctx, user.IP, user.Login)
}

// EvictByIP keeps the most recently active logins on ip up to the cap and
// deletes the rest, returning their logins
func (s *Service) EvictByIP(ctx context.Context, ip string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evict(ctx, ip, "")
}

// evict never drops keep, the login that triggered the check
func (s *Service) evict(ctx context.Context, ip, keep string) ([]string, error) {
	if ip == "" {
		return nil, nil
	}
	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	var onIP []*model.User
	for _, u := range users {
		if u.IP == ip {
			onIP = append(onIP, u)
		}
	}
	if len(onIP) <= s.cfg.UsersPerIP {
		return nil, nil
	}

	// newest first, the triggering login ahead of everyone
	sort.SliceStable(onIP, func(i, j int) bool {
		if (onIP[i].Login == keep) != (onIP[j].Login == keep) {
			return onIP[i].Login == keep
		}
		return onIP[i].LastSeen.After(onIP[j].LastSeen)
	})

	var evicted []string
	for _, u := range onIP[s.cfg.UsersPerIP:] {
		if err := s.storage.DeleteUser(ctx, u.Login); err != nil {
			return evicted, err
		}
		evicted = append(evicted, u.Login)
	}
	s.logger.Info("users evicted by address cap",
		slog.String("ip", ip),
		slog.Any("logins", evicted),
	)
	return evicted, nil
}

// Logout deletes the user after checking the token
func (s *Service) Logout(ctx context.Context, login, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Authenticate(ctx, login, token); err != nil {
		return err
	}
	return s.storage.DeleteUser(ctx, login)
}

// SweepInactive deletes users idle longer than the configured limit and
// returns their logins
func (s *Service) SweepInactive(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	var swept []string
	for _, u := range users {
		if s.clock.Since(u.LastSeen) <= s.cfg.InactiveAfter {
			continue
		}
		if err := s.storage.DeleteUser(ctx, u.Login); err != nil {
			return swept, err
		}
		swept = append(swept, u.Login)
	}
	return swept, nil
}

// Count returns the number of registered users
func (s *Service) Count(ctx context.Context) (int, error) {
	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return 0, err
	}
	return len(users), nil
}

func (s *Service) matches(user *model.User, token string) bool {
	if token == "" || user.TokenHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.TokenHash), []byte(token)) == nil
}
