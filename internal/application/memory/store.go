// Package memory 提供项目级记忆库：偏好事实与图片事实的统一读写入口
package memory

import (
	"context"
	"encoding/json"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-video-ai-api/internal/config"
	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
	infraredis "z-video-ai-api/internal/infrastructure/persistence/redis"
	"z-video-ai-api/pkg/logger"
)

var tracer = otel.Tracer("application.memory")

// Store 记忆库。所有偏好与图片事实的读写都经由这里，
// 读路径缓存优先，写路径先落库再失效缓存。
type Store struct {
	prefs repository.PreferenceRepository
	facts repository.ImageFactRepository
	cache *infraredis.Cache
	ttl   config.CacheTTLConfig
}

// NewStore 创建记忆库
func NewStore(
	prefs repository.PreferenceRepository,
	facts repository.ImageFactRepository,
	cache *infraredis.Cache,
	ttl config.CacheTTLConfig,
) *Store {
	return &Store{
		prefs: prefs,
		facts: facts,
		cache: cache,
		ttl:   ttl,
	}
}

// Get 读取单条偏好，不存在时返回 nil
func (s *Store) Get(ctx context.Context, projectID, userID, key string) (*entity.Preference, error) {
	ctx, span := tracer.Start(ctx, "memory.Get",
		trace.WithAttributes(attribute.String("pref.key", key)))
	defer span.End()

	return s.prefs.Get(ctx, projectID, userID, key)
}

// Put 写入或更新偏好，成功后立即失效该用户的画像缓存
func (s *Store) Put(ctx context.Context, pref *entity.Preference) error {
	ctx, span := tracer.Start(ctx, "memory.Put",
		trace.WithAttributes(attribute.String("pref.key", pref.Key)))
	defer span.End()

	pref.ClampConfidence()
	if err := s.prefs.Upsert(ctx, pref); err != nil {
		span.RecordError(err)
		return err
	}

	if s.cache != nil {
		if err := s.cache.InvalidatePreferences(ctx, pref.ProjectID, pref.UserID); err != nil {
			// 缓存失效失败不影响写入结果，TTL 兜底
			logger.FromContext(ctx).Warn("failed to invalidate preference cache", "error", err)
		}
	}
	return nil
}

// List 按前缀列出偏好。全量列表走缓存读透，带前缀的查询直查存储。
func (s *Store) List(ctx context.Context, projectID, userID, prefix string) ([]*entity.Preference, error) {
	ctx, span := tracer.Start(ctx, "memory.List",
		trace.WithAttributes(attribute.String("pref.prefix", prefix)))
	defer span.End()

	if strings.TrimSpace(prefix) != "" || s.cache == nil {
		return s.prefs.ListByPrefix(ctx, projectID, userID, prefix)
	}

	key := infraredis.PreferenceKey(projectID, userID)
	data, err := s.cache.GetOrLoadSafe(ctx, "preferences", key, s.ttl.Preferences, func() (interface{}, error) {
		return s.prefs.ListAll(ctx, projectID, userID)
	})
	if err != nil {
		// 缓存层故障时退回直查
		logger.FromContext(ctx).Warn("preference cache read failed, falling back to store", "error", err)
		return s.prefs.ListAll(ctx, projectID, userID)
	}

	var prefs []*entity.Preference
	if err := json.Unmarshal(data, &prefs); err != nil {
		return s.prefs.ListAll(ctx, projectID, userID)
	}
	return prefs, nil
}

// PutImageFact 写入图片分析事实
func (s *Store) PutImageFact(ctx context.Context, fact *entity.ImageFact) error {
	ctx, span := tracer.Start(ctx, "memory.PutImageFact")
	defer span.End()

	if err := s.facts.Create(ctx, fact); err != nil {
		span.RecordError(err)
		return err
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, infraredis.ImageFactsKey(fact.ProjectID)); err != nil {
			logger.FromContext(ctx).Warn("failed to invalidate image fact cache", "error", err)
		}
	}
	return nil
}

// ImageFacts 读取项目的图片事实，缓存读透
func (s *Store) ImageFacts(ctx context.Context, projectID string, limit int) ([]*entity.ImageFact, error) {
	ctx, span := tracer.Start(ctx, "memory.ImageFacts")
	defer span.End()

	if s.cache == nil {
		return s.facts.ListByProject(ctx, projectID, limit)
	}

	key := infraredis.ImageFactsKey(projectID)
	data, err := s.cache.GetOrLoad(ctx, "image_facts", key, s.ttl.ImageFacts, func() (interface{}, error) {
		return s.facts.ListByProject(ctx, projectID, limit)
	})
	if err != nil {
		logger.FromContext(ctx).Warn("image fact cache read failed, falling back to store", "error", err)
		return s.facts.ListByProject(ctx, projectID, limit)
	}

	var facts []*entity.ImageFact
	if err := json.Unmarshal(data, &facts); err != nil {
		return s.facts.ListByProject(ctx, projectID, limit)
	}
	return facts, nil
}
