package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/vidtube-api/internal/models"
	appErrors "github.com/noah-isme/vidtube-api/pkg/errors"
)

type channelStore interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// ChannelCache abstracts the read cache for channel profiles.
type ChannelCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ChannelService serves public channel pages with an optional Redis-backed
// read cache in front of the store.
type ChannelService struct {
	store   channelStore
	cache   ChannelCache
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewChannelService constructs a channel service. A nil cache disables
// caching entirely.
func NewChannelService(store channelStore, cache ChannelCache, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *ChannelService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelService{store: store, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

// Get returns the public channel profile for a username.
func (s *ChannelService) Get(ctx context.Context, username string) (*models.ChannelProfile, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "username is required")
	}

	key := cacheKey(username)
	if s.cache != nil {
		var cached models.ChannelProfile
		start := time.Now()
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			s.observeCache(true, time.Since(start))
			return &cached, nil
		}
		s.observeCache(false, time.Since(start))
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("channel cache read failed", zap.String("username", username), zap.Error(err))
		}
	}

	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "channel does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load channel")
	}

	profile := models.ChannelOf(user)
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, profile, s.ttl); err != nil {
			s.logger.Warn("channel cache write failed", zap.String("username", username), zap.Error(err))
		}
	}

	return &profile, nil
}

// Invalidate drops the cached profile for a username.
func (s *ChannelService) Invalidate(ctx context.Context, username string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, cacheKey(strings.ToLower(strings.TrimSpace(username))))
}

func (s *ChannelService) observeCache(hit bool, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit, d)
	}
}

func cacheKey(username string) string {
	return "channel:" + username
}
