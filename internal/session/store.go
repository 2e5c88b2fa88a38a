// Package session persists the authenticated session through a storage
// port. Persistence problems never escape this package: a failed read is an
// absent value and a failed write has no effect, both logged.
package session

import (
	"strconv"

	"github.com/felixgeelhaar/sciencepoint/internal/credential"
	"github.com/felixgeelhaar/sciencepoint/internal/domain"
	"github.com/felixgeelhaar/sciencepoint/internal/log"
	"github.com/felixgeelhaar/sciencepoint/internal/storage"
)

// Storage keys. Each part of the session lives under its own key so a
// damaged entry can't revive half a session.
const (
	KeyToken        = "token"
	KeyUser         = "user"
	KeyRememberMe   = "rememberMe"
	KeyWarningShown = "tokenExpirationWarning"
)

// Record is the persisted projection of a session.
type Record struct {
	Token        string
	Profile      domain.Profile
	RememberMe   bool
	WarningShown bool
}

// Store reads and writes session records.
type Store struct {
	storage storage.Storage
	logger  *log.Logger
}

// NewStore returns a Store over s. A nil logger uses the process default.
func NewStore(s storage.Storage, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Store{storage: s, logger: logger.WithComponent("session-store")}
}

// Save persists a new credential and profile and resets the warning flag.
func (s *Store) Save(token string, profile domain.Profile, rememberMe bool) {
	user, err := domain.MarshalProfile(profile)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode profile")
		return
	}

	s.set(KeyToken, token)
	s.set(KeyUser, user)
	s.set(KeyRememberMe, strconv.FormatBool(rememberMe))
	s.remove(KeyWarningShown)

	s.logger.Debug("session stored",
		"credential", credential.Fingerprint(token),
		"remember_me", rememberMe)
}

// Load returns the persisted record, or nil if any key written by Save is
// missing or unreadable.
func (s *Store) Load() *Record {
	token, ok := s.get(KeyToken)
	if !ok || token == "" {
		return nil
	}
	raw, ok := s.get(KeyUser)
	if !ok {
		return nil
	}
	profile, err := domain.UnmarshalProfile(raw)
	if err != nil {
		s.logger.WithError(err).Warn("discarding unreadable profile")
		return nil
	}

	raw, ok = s.get(KeyRememberMe)
	if !ok {
		return nil
	}
	rememberMe, err := strconv.ParseBool(raw)
	if err != nil {
		s.logger.Warn("discarding session with unreadable remember-me flag")
		return nil
	}

	rec := &Record{Token: token, Profile: profile, RememberMe: rememberMe}
	rec.WarningShown = s.HasShownWarning()
	return rec
}

// UpdateProfile rewrites the stored profile only.
func (s *Store) UpdateProfile(profile domain.Profile) {
	user, err := domain.MarshalProfile(profile)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode profile")
		return
	}
	s.set(KeyUser, user)
}

// Clear removes every session key.
func (s *Store) Clear() {
	for _, key := range []string{KeyToken, KeyUser, KeyRememberMe, KeyWarningShown} {
		s.remove(key)
	}
	s.logger.Debug("session cleared")
}

// MarkWarningShown sets the expiry warning flag for token. Nothing is
// written unless token is the stored credential, so a check racing a
// Clear or a new Save leaves no stray flag behind. Setting it again is
// harmless.
func (s *Store) MarkWarningShown(token string) {
	if current, ok := s.get(KeyToken); !ok || current != token {
		return
	}
	s.set(KeyWarningShown, "true")
}

// HasShownWarning reports whether the expiry warning was already shown for
// the stored credential.
func (s *Store) HasShownWarning() bool {
	v, ok := s.get(KeyWarningShown)
	return ok && v == "true"
}

func (s *Store) get(key string) (string, bool) {
	v, ok, err := s.storage.Get(key)
	if err != nil {
		s.logger.WithError(err).Warn("session read failed", "key", key)
		return "", false
	}
	return v, ok
}

func (s *Store) set(key, value string) {
	if err := s.storage.Set(key, value); err != nil {
		s.logger.WithError(err).Warn("session write failed", "key", key)
	}
}

func (s *Store) remove(key string) {
	if err := s.storage.Remove(key); err != nil {
		s.logger.WithError(err).Warn("session remove failed", "key", key)
	}
}
