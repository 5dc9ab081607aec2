// Package credentials verifies API usernames and passwords against a small
// registry of bcrypt hashes.
//
// The registry is a newline-delimited list of username:hash records read from
// a RegistrySource. It is parsed once and cached; a reload happens only when
// the source's modification marker changes, and the new map replaces the old
// one atomically so concurrent readers never observe a partial registry.
package credentials

import (
	"bufio"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/dmitrijs2005/cashkeeper/internal/common"
	"github.com/dmitrijs2005/cashkeeper/internal/logging"
	"golang.org/x/crypto/bcrypt"
)

const (
	MaxUsernameLength = 50
	MaxPasswordLength = 100

	// HashCost is the bcrypt work factor used for provisioning.
	HashCost = 12
)

var (
	ErrEmptyRegistry    = errors.New("no valid API credentials in registry")
	ErrTooManyUsers     = errors.New("too many API users in registry")
	ErrPasswordRequired = errors.New("password is empty")
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

type registry struct {
	marker string
	users  map[string]string
}

// Store is the cached credential registry. It is safe for concurrent use.
type Store struct {
	source   RegistrySource
	maxUsers int
	logger   logging.Logger

	current atomic.Pointer[registry]
	// serializes reloads; readers never take it
	reloadMu sync.Mutex

	dummyOnce sync.Once
	dummyHash []byte
}

// NewStore returns a Store reading from source and accepting at most maxUsers
// principals.
func NewStore(source RegistrySource, maxUsers int, logger logging.Logger) *Store {
	return &Store{
		source:   source,
		maxUsers: maxUsers,
		logger:   logger.With("module", "credentials"),
	}
}

// ValidInput reports whether username and password satisfy the length and
// character constraints. Malformed input is rejected before the registry is
// consulted.
func ValidInput(username, password string) bool {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return false
	}
	if len(username) > MaxUsernameLength || utf8.RuneCountInString(password) > MaxPasswordLength {
		return false
	}
	return usernamePattern.MatchString(username)
}

// Validate reports whether password matches the stored hash for username.
// Registry errors fail closed.
func (s *Store) Validate(ctx context.Context, username, password string) bool {
	if !ValidInput(username, password) {
		return false
	}

	reg, err := s.snapshot(ctx)
	if err != nil {
		s.logger.Error(ctx, "credential registry unavailable", "source", s.source.String(), "error", err)
		return false
	}

	stored, ok := reg.users[username]
	if !ok {
		// keep the response time of unknown users close to known ones
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return false
	}

	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}

	s.logger.Warn(ctx, "legacy plaintext credential in registry, rotate it", "user", logging.SafeValue(username))
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// IsKnownUser reports whether username is present in the current registry.
func (s *Store) IsKnownUser(ctx context.Context, username string) bool {
	reg, err := s.snapshot(ctx)
	if err != nil {
		s.logger.Error(ctx, "credential registry unavailable", "source", s.source.String(), "error", err)
		return false
	}
	_, ok := reg.users[username]
	return ok
}

// Count returns the number of principals in the current registry. It is
// used at startup to fail fast on an empty or oversized registry.
func (s *Store) Count(ctx context.Context) (int, error) {
	reg, err := s.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return len(reg.users), nil
}

func (s *Store) snapshot(ctx context.Context) (*registry, error) {
	marker, err := s.source.Stat(ctx)
	if err != nil {
		return nil, err
	}

	if reg := s.current.Load(); reg != nil && reg.marker == marker {
		return reg, nil
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if reg := s.current.Load(); reg != nil && reg.marker == marker {
		return reg, nil
	}

	rc, err := s.source.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	users, err := parseRegistry(rc, s.maxUsers)
	if err != nil {
		return nil, err
	}

	reg := &registry{marker: marker, users: users}
	s.current.Store(reg)
	s.logger.Info(ctx, "credential registry loaded", "source", s.source.String(), "users", len(users))

	return reg, nil
}

func (s *Store) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword(common.GenerateRandByteArray(16), HashCost)
	})
	return s.dummyHash
}

func parseRegistry(r io.Reader, maxUsers int) (map[string]string, error) {
	users := make(map[string]string)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Count(line, ":") != 1 {
			continue
		}

		username, hash, _ := strings.Cut(line, ":")
		username = strings.TrimSpace(username)
		hash = strings.TrimSpace(hash)

		if hash == "" || len(username) > MaxUsernameLength || !usernamePattern.MatchString(username) {
			continue
		}
		users[username] = hash
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if len(users) == 0 {
		return nil, ErrEmptyRegistry
	}
	if len(users) > maxUsers {
		return nil, fmt.Errorf("%w: %d found, maximum %d", ErrTooManyUsers, len(users), maxUsers)
	}
	return users, nil
}

func isBcryptHash(v string) bool {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(v, p) {
			return true
		}
	}
	return false
}

// HashPassword returns the bcrypt hash of password at HashCost, in the form
// stored in the registry.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrPasswordRequired
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
