// Package statesync 实现状态同步协议：每次变更产出 (载荷, 版本号) 二元组，
// 消费方只依据版本号变化重算派生视图。
package statesync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
	infraredis "z-video-ai-api/internal/infrastructure/persistence/redis"
	apperrors "z-video-ai-api/pkg/errors"
	"z-video-ai-api/pkg/logger"
	"z-video-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("application.statesync")

// Manager 状态同步管理器。同一实体的提交串行化（进程内锁 + 条件更新），
// 不同实体互不阻塞。提交成功即为终态：此后不回读慢存储做"校验"。
type Manager struct {
	scenes repository.SceneRepository
	cache  *infraredis.Cache

	mu       sync.Mutex
	inFlight map[string]struct{}

	// retryOnce 提交冲突时用最新版本号重试一次
	retryOnce bool
}

// NewManager 创建状态同步管理器
func NewManager(scenes repository.SceneRepository, cache *infraredis.Cache, retryOnce bool) *Manager {
	return &Manager{
		scenes:    scenes,
		cache:     cache,
		inFlight:  make(map[string]struct{}),
		retryOnce: retryOnce,
	}
}

// acquire 获取实体锁。已有在途变更时直接拒绝，绝不静默交错。
func (m *Manager) acquire(entityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inFlight[entityID]; busy {
		return apperrors.ErrEntityBusy.WithDetail("entity " + entityID + " has an in-flight mutation")
	}
	m.inFlight[entityID] = struct{}{}
	return nil
}

func (m *Manager) release(entityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, entityID)
}

// Commit 原子替换载荷并递增版本号。
// 冲突时用最新版本号重试一次，仍失败按 Busy 上抛。
func (m *Manager) Commit(ctx context.Context, entityID string, payload json.RawMessage) (*entity.VersionedArtifact, error) {
	ctx, span := tracer.Start(ctx, "statesync.Commit",
		trace.WithAttributes(attribute.String("entity_id", entityID)))
	defer span.End()

	if err := m.acquire(entityID); err != nil {
		metrics.CommitTotal.WithLabelValues("busy").Inc()
		return nil, err
	}
	defer m.release(entityID)

	artifact, err := m.commitLocked(ctx, entityID, payload)
	if err != nil {
		var conflict *repository.VersionConflictError
		if errors.As(err, &conflict) && m.retryOnce {
			// 条件更新失败说明有并发写者抢先，取最新版本号重试一次
			metrics.CommitConflictRetries.Inc()
			logger.FromContext(ctx).Warn("commit conflict, retrying with latest token",
				"entity_id", entityID)
			artifact, err = m.commitLocked(ctx, entityID, payload)
		}
	}
	if err != nil {
		span.RecordError(err)
		var conflict *repository.VersionConflictError
		if errors.As(err, &conflict) {
			metrics.CommitTotal.WithLabelValues("conflict").Inc()
			return nil, apperrors.ErrEntityBusy.WithError(err)
		}
		metrics.CommitTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.CommitTotal.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.Int64("version_token", artifact.VersionToken))
	return artifact, nil
}

func (m *Manager) commitLocked(ctx context.Context, entityID string, payload json.RawMessage) (*entity.VersionedArtifact, error) {
	// 提交前读一次拿到当前版本号和所属项目；提交成功后不再回读慢存储
	scene, err := m.scenes.GetByID(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if scene == nil {
		return nil, apperrors.ErrSceneNotFound
	}
	newToken := scene.VersionToken + 1

	if err := m.scenes.UpdatePayload(ctx, entityID, payload, scene.VersionToken, newToken); err != nil {
		return nil, err
	}

	// 提交成功立即失效场景列表缓存；TTL 只是兜底
	m.invalidate(ctx, scene.ProjectID, entityID)

	return &entity.VersionedArtifact{
		EntityID:     entityID,
		Payload:      payload,
		VersionToken: newToken,
	}, nil
}

// Observe 消费方唯一的读路径：返回当前 (载荷, 版本号) 二元组
func (m *Manager) Observe(ctx context.Context, entityID string) (*entity.VersionedArtifact, error) {
	ctx, span := tracer.Start(ctx, "statesync.Observe",
		trace.WithAttributes(attribute.String("entity_id", entityID)))
	defer span.End()

	scene, err := m.scenes.GetByID(ctx, entityID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if scene == nil {
		return nil, apperrors.ErrSceneNotFound
	}

	return &entity.VersionedArtifact{
		EntityID:     scene.ID,
		Payload:      scene.Payload,
		VersionToken: scene.VersionToken,
	}, nil
}

// Delete 逻辑删除同样经过提交协议：串行化并失效缓存
func (m *Manager) Delete(ctx context.Context, entityID string) error {
	ctx, span := tracer.Start(ctx, "statesync.Delete",
		trace.WithAttributes(attribute.String("entity_id", entityID)))
	defer span.End()

	if err := m.acquire(entityID); err != nil {
		metrics.CommitTotal.WithLabelValues("busy").Inc()
		return err
	}
	defer m.release(entityID)

	// 删除前读一次记下所属项目，已删除或不存在的实体直接视为成功
	scene, err := m.scenes.GetByID(ctx, entityID)
	if err != nil {
		span.RecordError(err)
		metrics.CommitTotal.WithLabelValues("error").Inc()
		return err
	}
	if scene == nil {
		return nil
	}

	if err := m.scenes.MarkDeleted(ctx, entityID); err != nil {
		span.RecordError(err)
		metrics.CommitTotal.WithLabelValues("error").Inc()
		return err
	}

	m.invalidate(ctx, scene.ProjectID, entityID)
	metrics.CommitTotal.WithLabelValues("ok").Inc()
	return nil
}

func (m *Manager) invalidate(ctx context.Context, projectID, entityID string) {
	if m.cache == nil || projectID == "" {
		return
	}
	if err := m.cache.InvalidateScene(ctx, projectID, entityID); err != nil {
		logger.FromContext(ctx).Warn("failed to invalidate scene cache",
			"entity_id", entityID, "error", err)
	}
}
