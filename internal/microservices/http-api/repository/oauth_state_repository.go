package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrStateNotFound = errors.New("oauth state not found or expired")

// PendingAuthorization is what /v1/spotify remembers about a state value until
// Spotify redirects back to /v1/spotify/authorized.
type PendingAuthorization struct {
	State        int64  `json:"state"`
	ClientID     int64  `json:"client_id"`
	PlaylistName string `json:"playlist_name"`
}

// OAuthStateStore keeps pending authorizations keyed by state. Take removes
// the entry so a state can only complete once.
type OAuthStateStore interface {
	Save(ctx context.Context, pending PendingAuthorization, ttl time.Duration) error
	Take(ctx context.Context, state int64) (*PendingAuthorization, error)
}

// OAuthStateRedisStore is the Redis implementation of OAuthStateStore
type OAuthStateRedisStore struct {
	client *redis.Client
}

// NewOAuthStateRedisStore connects to redisURL ("redis://host:port/db") and
// verifies the connection.
func NewOAuthStateRedisStore(redisURL, password string) (*OAuthStateRedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	rdb := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &OAuthStateRedisStore{client: rdb}, nil
}

func stateKey(state int64) string {
	return "oauth:spotify:state:" + strconv.FormatInt(state, 10)
}

func (s *OAuthStateRedisStore) Save(ctx context.Context, pending PendingAuthorization, ttl time.Duration) error {
	data, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, stateKey(pending.State), data, ttl).Err()
}

func (s *OAuthStateRedisStore) Take(ctx context.Context, state int64) (*PendingAuthorization, error) {
	data, err := s.client.GetDel(ctx, stateKey(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}
	var pending PendingAuthorization
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("corrupt oauth state %d: %w", state, err)
	}
	return &pending, nil
}

func (s *OAuthStateRedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *OAuthStateRedisStore) Close() error {
	return s.client.Close()
}

// OAuthStateMemoryStore is used when no Redis is configured.
type OAuthStateMemoryStore struct {
	mu      sync.Mutex
	entries map[int64]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	pending   PendingAuthorization
	expiresAt time.Time
}

func NewOAuthStateMemoryStore() *OAuthStateMemoryStore {
	return &OAuthStateMemoryStore{
		entries: make(map[int64]memoryEntry),
		now:     time.Now,
	}
}

func (s *OAuthStateMemoryStore) Save(_ context.Context, pending PendingAuthorization, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	// drop expired entries while we hold the lock
	for state, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, state)
		}
	}
	s.entries[pending.State] = memoryEntry{pending: pending, expiresAt: now.Add(ttl)}
	return nil
}

func (s *OAuthStateMemoryStore) Take(_ context.Context, state int64) (*PendingAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[state]
	if !ok {
		return nil, ErrStateNotFound
	}
	delete(s.entries, state)
	if s.now().After(e.expiresAt) {
		return nil, ErrStateNotFound
	}
	pending := e.pending
	return &pending, nil
}
