package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"campustrack/internal/identity"
)

// TokenSet tracks which issued tokens are still active. A token is valid only
// while it is both inside the set and carries a good signature; removing it
// from the set revokes it immediately, without waiting for the signed expiry.
type TokenSet interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
	Has(ctx context.Context, token string) (bool, error)
	Remove(ctx context.Context, token string) error
}

// Registry issues, verifies, and revokes dashboard sessions. Only teacher
// identities may log in.
type Registry struct {
	identities identity.Store
	tokens     TokenSet
	issuer     string
	signingKey string
	ttl        time.Duration
}

// NewRegistry builds a registry over an identity store and a token set.
func NewRegistry(identities identity.Store, tokens TokenSet, issuer, signingKey string, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Registry{
		identities: identities,
		tokens:     tokens,
		issuer:     issuer,
		signingKey: signingKey,
		ttl:        ttl,
	}
}

// Login resolves the email, requires a teacher role and an exact fingerprint
// token match, and issues a session. Students are rejected regardless of
// credential correctness, and all failure modes look the same to the caller.
func (r *Registry) Login(ctx context.Context, email, fingerprintToken string) (string, identity.Identity, error) {
	if email == "" || fingerprintToken == "" {
		return "", identity.Identity{}, ErrUnauthenticated
	}
	found, err := r.identities.FindByEmail(ctx, email)
	if err != nil {
		return "", identity.Identity{}, err
	}
	if found == nil || found.Role != identity.RoleTeacher || found.FingerprintToken != fingerprintToken {
		return "", identity.Identity{}, ErrUnauthenticated
	}

	token, _, err := sign(found.ID, found.Email, found.Role, r.issuer, r.signingKey, r.ttl)
	if err != nil {
		return "", identity.Identity{}, err
	}
	if err := r.tokens.Add(ctx, token, r.ttl); err != nil {
		return "", identity.Identity{}, err
	}
	return token, *found, nil
}

// Verify checks the active set first, then the signature. A token that fails
// signature or expiry checks is dropped from the set so it cannot be retried.
func (r *Registry) Verify(ctx context.Context, token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrUnauthenticated
	}
	active, err := r.tokens.Has(ctx, token)
	if err != nil {
		return Claims{}, err
	}
	if !active {
		return Claims{}, ErrUnauthenticated
	}
	claims, err := parse(token, r.signingKey, r.issuer)
	if err != nil {
		_ = r.tokens.Remove(ctx, token)
		return Claims{}, ErrUnauthenticated
	}
	return claims, nil
}

// Revoke removes the token from the active set.
func (r *Registry) Revoke(ctx context.Context, token string) error {
	return r.tokens.Remove(ctx, token)
}

// RedisTokenSet stores active tokens as redis keys with a TTL, so passive
// expiry happens server-side even if the process restarts.
type RedisTokenSet struct {
	client *redis.Client
	prefix string
}

// NewRedisTokenSet creates a token set under the given key prefix.
func NewRedisTokenSet(client *redis.Client, prefix string) *RedisTokenSet {
	if prefix == "" {
		prefix = "campustrack:session:"
	}
	return &RedisTokenSet{client: client, prefix: prefix}
}

// Add records the token with the session TTL.
func (s *RedisTokenSet) Add(ctx context.Context, token string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+token, "1", ttl).Err()
}

// Has reports whether the token is still active.
func (s *RedisTokenSet) Has(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Remove revokes the token.
func (s *RedisTokenSet) Remove(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.prefix+token).Err()
}

// MemoryTokenSet is a map-backed token set for tests and single-node dev runs.
type MemoryTokenSet struct {
	mu     sync.Mutex
	expiry map[string]time.Time
}

// NewMemoryTokenSet creates an empty in-memory token set.
func NewMemoryTokenSet() *MemoryTokenSet {
	return &MemoryTokenSet{expiry: make(map[string]time.Time)}
}

// Add records the token until its TTL elapses.
func (s *MemoryTokenSet) Add(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiry[token] = time.Now().Add(ttl)
	return nil
}

// Has reports whether the token is present and not yet expired, dropping
// expired entries as it finds them.
func (s *MemoryTokenSet) Has(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expiry[token]
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		delete(s.expiry, token)
		return false, nil
	}
	return true, nil
}

// Remove revokes the token.
func (s *MemoryTokenSet) Remove(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expiry, token)
	return nil
}
