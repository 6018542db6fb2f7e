package sessions

import (
	"encoding/json"
	"sync"

	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/token"
	"github.com/jrsteele09/go-console-session/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store owns the session. Memory and the durable mirror are always written
// together under the same lock, so readers never observe a token without its
// matching csrf value.
type Store struct {
	mu         sync.RWMutex
	session    Session
	generation uint64
	storage    Storage
	logger     zerolog.Logger
}

type StoreOption func(*Store)

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store and rehydrates any persisted session from storage.
func NewStore(storage Storage, options ...StoreOption) *Store {
	s := &Store{
		storage:    storage,
		generation: 1,
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}

	s.mu.Lock()
	s.rehydrateLocked()
	s.mu.Unlock()
	return s
}

// SetSession stores a new session in memory and in durable storage.
// accessToken must be three dot separated segments.
func (s *Store) SetSession(accessToken, csrfToken string, user *users.UserSummary) error {
	if !token.WellFormed(accessToken) {
		return apperrors.Wrapf(apperrors.ErrInvalidToken, "Store.SetSession")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = Session{AccessToken: accessToken, CSRFToken: csrfToken, User: copyUser(user)}
	s.generation++
	return s.persistLocked()
}

// UpdateTokens replaces the access and csrf tokens after a refresh, keeping
// the signed in user. An empty csrfToken keeps the current one. A cleared
// session is never brought back: that returns ErrSessionNotFound.
func (s *Store) UpdateTokens(accessToken, csrfToken string) error {
	if !token.WellFormed(accessToken) {
		return apperrors.Wrapf(apperrors.ErrInvalidToken, "Store.UpdateTokens")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !token.WellFormed(s.session.AccessToken) && !s.rehydrateLocked() {
		return apperrors.Wrapf(apperrors.ErrSessionNotFound, "Store.UpdateTokens")
	}

	s.session.AccessToken = accessToken
	if csrfToken != "" {
		s.session.CSRFToken = csrfToken
	}
	s.generation++
	return s.persistLocked()
}

// Token returns the access token when a format-valid one is held in memory
// or can be rehydrated from storage. Expiry is not checked; the server is
// the authority on that.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	tok := s.session.AccessToken
	s.mu.RUnlock()
	if token.WellFormed(tok) {
		return tok, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.WellFormed(s.session.AccessToken) {
		return s.session.AccessToken, true
	}
	if !s.rehydrateLocked() {
		return "", false
	}
	return s.session.AccessToken, true
}

// CSRFToken returns the held anti forgery token, or "".
func (s *Store) CSRFToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.CSRFToken
}

// User returns a copy of the signed in user, or nil.
func (s *Store) User() *users.UserSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.session.User)
}

// Session returns a copy of the whole session.
func (s *Store) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{
		AccessToken: s.session.AccessToken,
		CSRFToken:   s.session.CSRFToken,
		User:        copyUser(s.session.User),
	}
}

// IsAuthenticated is true whenever a format-valid token is available.
// Expiry is deliberately ignored to avoid false negatives from clock skew.
func (s *Store) IsAuthenticated() bool {
	_, ok := s.Token()
	return ok
}

// Generation changes every time a session is set, refreshed, rehydrated or cleared.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Clear zeroes the session and deletes every durable key. It is idempotent.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != (Session{}) {
		s.generation++
	}
	s.session = Session{}
	for _, key := range []string{KeyAuthToken, KeyCSRFToken, KeyCurrentUser} {
		if err := s.storage.Delete(key); err != nil {
			s.logger.Err(err).Str("key", key).Msg("Store.Clear: failed to delete key")
		}
	}
}

func (s *Store) persistLocked() error {
	if err := s.storage.Set(KeyAuthToken, s.session.AccessToken); err != nil {
		return apperrors.StorageError(err, "persist %s", KeyAuthToken)
	}

	if s.session.CSRFToken != "" {
		if err := s.storage.Set(KeyCSRFToken, s.session.CSRFToken); err != nil {
			return apperrors.StorageError(err, "persist %s", KeyCSRFToken)
		}
	} else if err := s.storage.Delete(KeyCSRFToken); err != nil {
		return apperrors.StorageError(err, "delete %s", KeyCSRFToken)
	}

	if s.session.User == nil {
		if err := s.storage.Delete(KeyCurrentUser); err != nil {
			return apperrors.StorageError(err, "delete %s", KeyCurrentUser)
		}
		return nil
	}
	userJSON, err := json.Marshal(s.session.User)
	if err != nil {
		return apperrors.Wrapf(err, "marshal %s", KeyCurrentUser)
	}
	if err := s.storage.Set(KeyCurrentUser, string(userJSON)); err != nil {
		return apperrors.StorageError(err, "persist %s", KeyCurrentUser)
	}
	return nil
}

// rehydrateLocked loads the session from storage, purging a malformed token.
// It reports whether a usable token was loaded.
func (s *Store) rehydrateLocked() bool {
	tok, ok, err := s.storage.Get(KeyAuthToken)
	if err != nil {
		s.logger.Err(err).Msg("Store: failed to read persisted token")
		return false
	}
	if !ok || tok == "" {
		return false
	}
	if !token.WellFormed(tok) {
		s.logger.Warn().Msg("Store: purging malformed persisted token")
		if err := s.storage.Delete(KeyAuthToken); err != nil {
			s.logger.Err(err).Msg("Store: failed to purge malformed token")
		}
		return false
	}

	session := Session{AccessToken: tok}
	if csrf, ok, err := s.storage.Get(KeyCSRFToken); err == nil && ok {
		session.CSRFToken = csrf
	}
	if raw, ok, err := s.storage.Get(KeyCurrentUser); err == nil && ok && raw != "" {
		var user users.UserSummary
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			s.logger.Err(err).Msg("Store: ignoring unreadable persisted user")
		} else {
			session.User = &user
		}
	}

	s.session = session
	s.generation++
	return true
}

func copyUser(u *users.UserSummary) *users.UserSummary {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
