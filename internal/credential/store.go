package credential

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Repo persists the whole credential table. Save always receives the full
// table; backends rewrite rather than append.
type Repo interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, tokens map[string]string) error
}

var ErrEmptyIdentity = errors.New("empty account identity")

// Store is the process-wide identity -> bearer token cache. There must be one
// Store per process; workers only ever see Snapshot copies and the
// orchestrator's coordinator is the single writer.
type Store struct {
	mu     sync.Mutex
	repo   Repo
	tokens map[string]string
}

// Open loads the table from repo.
func Open(ctx context.Context, repo Repo) (*Store, error) {
	tokens, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if tokens == nil {
		tokens = map[string]string{}
	}
	return &Store{repo: repo, tokens: tokens}, nil
}

func (s *Store) Get(identity string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[identity]
	return tok, ok
}

// Put stores token for identity and rewrites the table. On a write failure the
// in-memory table is left unchanged.
func (s *Store) Put(ctx context.Context, identity, token string) error {
	if identity == "" {
		return ErrEmptyIdentity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := maps.Clone(s.tokens)
	next[identity] = token
	if err := s.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("save credential for %s: %w", identity, err)
	}
	s.tokens = next
	return nil
}

// Evict drops the credential for identity. Evicting an unknown identity is a no-op.
func (s *Store) Evict(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[identity]; !ok {
		return nil
	}
	next := maps.Clone(s.tokens)
	delete(next, identity)
	if err := s.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("evict credential for %s: %w", identity, err)
	}
	s.tokens = next
	return nil
}

// Prune evicts every expired credential in one rewrite and returns the
// evicted identities.
func (s *Store) Prune(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]string, len(s.tokens))
	var evicted []string
	for id, tok := range s.tokens {
		if IsExpired(tok, now) {
			evicted = append(evicted, id)
			continue
		}
		next[id] = tok
	}
	if len(evicted) == 0 {
		return nil, nil
	}
	if err := s.repo.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("prune credentials: %w", err)
	}
	s.tokens = next
	sort.Strings(evicted)
	return evicted, nil
}

// Snapshot returns a copy of the table for read-only use by one worker.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.tokens)
}

// Expiry decodes the token payload without verifying the signature.
// ok is false when the token carries no exp claim.
func Expiry(token string) (exp time.Time, ok bool, err error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false, fmt.Errorf("decode token: %w", err)
	}
	nd, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("decode exp: %w", err)
	}
	if nd == nil {
		return time.Time{}, false, nil
	}
	return nd.Time, true, nil
}

// IsExpired fails closed: an undecodable token counts as expired, a token
// without exp never expires.
func IsExpired(token string, now time.Time) bool {
	if token == "" {
		return true
	}
	exp, ok, err := Expiry(token)
	if err != nil {
		return true
	}
	if !ok {
		return false
	}
	return now.Unix() > exp.Unix()
}
