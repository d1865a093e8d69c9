// Package session owns conversation sessions: creation, per-conversation
// serialisation of turns, and TTL expiry.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-helpdesk/backend/internal/log"
	"github.com/zhouzirui/z-helpdesk/backend/internal/metrics"
	"github.com/zhouzirui/z-helpdesk/backend/internal/model/conversation"
)

// Defaults for session lifetime.
const (
	DefaultTTL           = 15 * time.Minute
	DefaultSweepInterval = 60 * time.Second
)

// ErrSessionIDRequired is returned for an empty conversation id.
var ErrSessionIDRequired = errors.New("session id is required")

// Store serialises turns of the same conversation and expires idle ones.
type Store struct {
	backend       Backend
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	locks         *keyedMutex
	removeHooks   []func(id string)
	sweepHooks    []func(cutoff time.Time)
	logger        zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the idle lifetime of a session.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often RunSweeper scans the backend.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRemoveHook registers a callback run after a session is deleted, ended or
// expired.
func WithRemoveHook(fn func(id string)) Option {
	return func(s *Store) {
		if fn != nil {
			s.removeHooks = append(s.removeHooks, fn)
		}
	}
}

// WithSweepHook registers a callback run after every sweep with the cutoff used.
func WithSweepHook(fn func(cutoff time.Time)) Option {
	return func(s *Store) {
		if fn != nil {
			s.sweepHooks = append(s.sweepHooks, fn)
		}
	}
}

// NewStore builds a Store over backend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:       backend,
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		locks:         newKeyedMutex(),
		logger:        log.WithComponent("session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured idle lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// WithSession runs fn with exclusive access to the conversation's session,
// creating it if needed and refreshing its activity timestamp. The session is
// persisted after fn returns nil, or deleted if fn ended it. Nothing is
// persisted when fn fails or panics.
func (s *Store) WithSession(ctx context.Context, id string, fn func(*conversation.Session) error) error {
	if id == "" {
		return ErrSessionIDRequired
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.loadOrCreate(ctx, id)
	if err != nil {
		return err
	}

	if err := fn(sess); err != nil {
		return err
	}

	if sess.Ended() {
		metrics.IncSessionEnded()
		return s.remove(ctx, id)
	}
	return s.backend.Save(ctx, sess)
}

// GetOrCreate returns a snapshot of the session, creating it when absent.
// Calling it again before expiry yields the same session.
func (s *Store) GetOrCreate(ctx context.Context, id string) (*conversation.Session, error) {
	var snapshot *conversation.Session
	err := s.WithSession(ctx, id, func(sess *conversation.Session) error {
		snapshot = sess.Clone()
		return nil
	})
	return snapshot, err
}

// Peek returns a snapshot without creating or refreshing the session.
func (s *Store) Peek(ctx context.Context, id string) (*conversation.Session, bool, error) {
	sess, ok, err := s.backend.Load(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	if sess.Expired(s.now(), s.ttl) {
		return nil, false, nil
	}
	return sess, true, nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.remove(ctx, id)
}

func (s *Store) loadOrCreate(ctx context.Context, id string) (*conversation.Session, error) {
	now := s.now()
	sess, ok, err := s.backend.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok && sess.Expired(now, s.ttl) {
		s.logger.Debug().Str(log.FieldSessionID, id).Msg("session expired before sweep, starting over")
		if err := s.remove(ctx, id); err != nil {
			return nil, err
		}
		ok = false
	}
	if !ok {
		return conversation.NewSession(id, now), nil
	}
	if !sess.State.Valid() {
		s.logger.Warn().Str(log.FieldSessionID, id).Str("state", string(sess.State)).Msg("session has unknown state")
	}
	sess.LastActivityAt = now
	return sess, nil
}

func (s *Store) remove(ctx context.Context, id string) error {
	if err := s.backend.Delete(ctx, id); err != nil {
		return err
	}
	for _, hook := range s.removeHooks {
		hook(id)
	}
	return nil
}

// Sweep deletes every session idle for longer than the TTL.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	removed, remaining, err := s.backend.Sweep(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, id := range removed {
		if err := s.afterSweep(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str(log.FieldSessionID, id).Msg("post-sweep check failed")
		}
	}
	for _, hook := range s.sweepHooks {
		hook(cutoff)
	}

	metrics.AddSessionsExpired(len(removed))
	if remaining >= 0 {
		metrics.SetSessionsActive(remaining)
	}
	if len(removed) > 0 {
		s.logger.Info().Int("expired", len(removed)).Int("remaining", remaining).Msg("swept idle sessions")
	}
	return len(removed), nil
}

// afterSweep runs the remove hooks for a swept session unless a turn that was
// in flight during the sweep saved it back.
func (s *Store) afterSweep(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, ok, err := s.backend.Load(ctx, id); err != nil || ok {
		return err
	}
	for _, hook := range s.removeHooks {
		hook(id)
	}
	return nil
}

// RunSweeper sweeps on every interval until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("session sweep failed")
			}
		}
	}
}
