package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"mooshihub/internal/microservices/http-api/models"
	"mooshihub/internal/microservices/http-api/repository"
	"mooshihub/internal/microservices/websocket"
	"mooshihub/internal/middleware/auth"

	"github.com/joho/godotenv"
)

var (
	ErrKeyNotFound      = errors.New("api key not found")
	ErrInvalidMasterKey = errors.New("invalid master API key")
)

// owner recorded for keys that come from API_KEYS
const SharedOwner = "shared"

// KeyService owns the accepted-credential set used by the websocket handshake
// and the CDN routes: the configured API_KEYS plus any key issued at runtime.
type KeyService interface {
	websocket.Authorizer
	NewKey(ctx context.Context, owner string) (*models.APIKey, error)
	Invalidate(ctx context.Context, key string) error
	Owner(ctx context.Context, credential string) (string, error)
	VerifyMaster(master string) bool
	Count() int
}

type keyService struct {
	mu      sync.RWMutex
	keys    map[string]string // key -> owner
	repo    repository.APIKeyRepository // nil when no database is configured
	master  string
	envFile string
	logger  *slog.Logger
}

// NewKeyService loads the stored keys (if repo is set) on top of the
// configured ones. envFile, when non-empty, receives the full key list after
// every change so a restart without a database keeps issued keys.
func NewKeyService(
	ctx context.Context,
	configured []string,
	master string,
	repo repository.APIKeyRepository,
	envFile string,
	logger *slog.Logger,
) (KeyService, error) {
	s := &keyService{
		keys:    make(map[string]string, len(configured)),
		repo:    repo,
		master:  master,
		envFile: envFile,
		logger:  logger,
	}
	for _, k := range configured {
		s.keys[k] = SharedOwner
	}

	if repo != nil {
		stored, err := repo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load api keys: %w", err)
		}
		for _, k := range stored {
			s.keys[k.Key] = k.Owner
		}
	}

	logger.Info("api_keys_loaded", "count", len(s.keys))
	return s, nil
}

// Authorize accepts the raw key or "Bearer <key>".
func (s *keyService) Authorize(ctx context.Context, credential string) error {
	if _, err := s.Owner(ctx, credential); err != nil {
		return fmt.Errorf("%w: %v", websocket.ErrUnauthorized, err)
	}
	return nil
}

func (s *keyService) Owner(_ context.Context, credential string) (string, error) {
	key := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(credential), "Bearer "))
	if key == "" {
		return "", ErrKeyNotFound
	}
	s.mu.RLock()
	owner, ok := s.keys[key]
	s.mu.RUnlock()
	if !ok {
		return "", ErrKeyNotFound
	}
	return owner, nil
}

func (s *keyService) NewKey(ctx context.Context, owner string) (*models.APIKey, error) {
	if owner == "" {
		owner = "default"
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	apiKey := &models.APIKey{Key: hex.EncodeToString(buf), Owner: owner}

	if s.repo != nil {
		if err := s.repo.Create(ctx, apiKey); err != nil {
			return nil, fmt.Errorf("failed to store key: %w", err)
		}
	}

	s.mu.Lock()
	s.keys[apiKey.Key] = owner
	s.mu.Unlock()

	s.persist()
	s.logger.Info("api_key_created", "owner", owner)
	return apiKey, nil
}

func (s *keyService) Invalidate(ctx context.Context, key string) error {
	s.mu.Lock()
	_, ok := s.keys[key]
	delete(s.keys, key)
	s.mu.Unlock()

	if s.repo != nil {
		err := s.repo.DeleteByKey(ctx, key)
		switch {
		case err == nil:
			ok = true
		case errors.Is(err, repository.ErrAPIKeyNotFound):
		default:
			return fmt.Errorf("failed to delete key: %w", err)
		}
	}
	if !ok {
		return ErrKeyNotFound
	}

	s.persist()
	s.logger.Info("api_key_invalidated")
	return nil
}

func (s *keyService) VerifyMaster(master string) bool {
	return auth.VerifySecret(s.master, master)
}

func (s *keyService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// persist rewrites API_KEYS in the env file, keeping every other entry.
func (s *keyService) persist() {
	if s.envFile == "" {
		return
	}

	env, err := godotenv.Read(s.envFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("env_file_read_failed", "path", s.envFile, "error", err.Error())
			return
		}
		env = make(map[string]string)
	}

	s.mu.RLock()
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	slices.Sort(keys)

	env["API_KEYS"] = strings.Join(keys, ",")
	if err := godotenv.Write(env, s.envFile); err != nil {
		s.logger.Warn("env_file_write_failed", "path", s.envFile, "error", err.Error())
	}
}
