package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
	"github.com/StricklySoft/stricklysoft-keycloak/pkg/keycloak"
)

// LocalUser is the application's own user record.
type LocalUser interface {
	// ID is the identifier Keycloak knows the user by.
	ID() string
	Realms() []string
	CreatedAt() time.Time
	Deleted() bool
}

// Mapper turns one kind of [LocalUser] into Keycloak requests.
type Mapper interface {
	// Supports reports whether the mapper handles user.
	Supports(user LocalUser) bool

	CreateUserProfile(user LocalUser) (keycloak.CreateUserProfile, error)

	// LoginRequest builds a password-grant token request.
	LoginRequest(user LocalUser, password string) (keycloak.TokenRequest, error)

	DeleteRequest(user LocalUser) (keycloak.DeleteUserRequest, error)
}

// Registry resolves the [Mapper] for a local user. Mappers are tried in
// registration order and the first one that supports the user wins.
//
// In strict mode every mapper is asked, and more than one match is an
// error instead of a silent first-wins.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	mappers []Mapper
	strict  bool
	logger  *slog.Logger
}

// NewRegistry returns a non-strict registry holding mappers in order.
func NewRegistry(mappers ...Mapper) *Registry {
	return newRegistry(mappers, false, slog.Default())
}

func newRegistry(mappers []Mapper, strict bool, logger *slog.Logger) *Registry {
	return &Registry{
		mappers: append([]Mapper(nil), mappers...),
		strict:  strict,
		logger:  logger,
	}
}

// Register appends m. It is tried after every mapper already registered.
func (r *Registry) Register(m Mapper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappers = append(r.mappers, m)
}

// Len returns the number of registered mappers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mappers)
}

// Resolve returns the mapper for user.
//
// Error codes returned:
//   - MAP_001: no mapper supports user
//   - MAP_002: strict mode and more than one mapper supports user
func (r *Registry) Resolve(user LocalUser) (Mapper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userType := fmt.Sprintf("%T", user)
	var (
		found   Mapper
		matches int
	)
	for _, m := range r.mappers {
		if !m.Supports(user) {
			continue
		}
		matches++
		if found == nil {
			found = m
			if !r.strict && !r.logger.Enabled(context.Background(), slog.LevelDebug) {
				break
			}
		}
	}

	switch {
	case found == nil:
		return nil, sserr.Newf(sserr.CodeNoMapperFound, "bridge: no mapper found for %s", userType).
			WithDetail("user_type", userType)
	case matches > 1 && r.strict:
		return nil, sserr.Newf(sserr.CodeAmbiguousMapper, "bridge: %d mappers support %s", matches, userType).
			WithDetails(map[string]any{"user_type": userType, "matches": matches})
	case matches > 1:
		r.logger.Warn("bridge: several mappers support user, using the first",
			"user_type", userType, "matches", matches, "mapper", fmt.Sprintf("%T", found))
	}
	return found, nil
}
