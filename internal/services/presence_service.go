package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aditya93941/project-management/internal/cache"
)

const (
	presenceKeyPrefix  = "task_view:"
	defaultPresenceTTL = 90 * time.Second
)

// PresenceOption customises the PresenceService.
type PresenceOption func(*PresenceService)

// WithPresenceTTL overrides how long a heartbeat keeps a viewer listed.
func WithPresenceTTL(ttl time.Duration) PresenceOption {
	return func(s *PresenceService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// PresenceService tracks which users are currently viewing a task, backed by
// a TTL-keyed cache. The data is transient by design: an entry disappears
// once heartbeats stop, and nothing here is durable state.
type PresenceService struct {
	store cache.Store
	ttl   time.Duration
}

// NewPresenceService constructs a PresenceService.
func NewPresenceService(store cache.Store, opts ...PresenceOption) (*PresenceService, error) {
	if store == nil {
		return nil, errors.New("presence service: cache store is required")
	}

	service := &PresenceService{
		store: store,
		ttl:   defaultPresenceTTL,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Heartbeat records that the user is viewing the task right now.
func (s *PresenceService) Heartbeat(ctx context.Context, taskID, userID string) error {
	ctx = ensureContext(ctx)
	if taskID == "" || userID == "" {
		return errors.New("presence service: task id and user id are required")
	}

	key := presenceKeyPrefix + taskID + ":" + userID
	value := []byte(strconv.FormatInt(time.Now().Unix(), 10))
	if err := s.store.Set(ctx, key, value, s.ttl); err != nil {
		return fmt.Errorf("presence service: heartbeat: %w", err)
	}
	return nil
}

// Viewers lists user ids with a live heartbeat on the task.
func (s *PresenceService) Viewers(ctx context.Context, taskID string) ([]string, error) {
	ctx = ensureContext(ctx)
	if taskID == "" {
		return nil, errors.New("presence service: task id is required")
	}

	prefix := presenceKeyPrefix + taskID + ":"
	keys, err := s.store.ListPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("presence service: list viewers: %w", err)
	}

	viewers := make([]string, 0, len(keys))
	for _, key := range keys {
		viewers = append(viewers, strings.TrimPrefix(key, prefix))
	}
	return viewers, nil
}
