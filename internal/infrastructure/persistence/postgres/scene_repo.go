// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
)

// SceneRepository 场景仓储
type SceneRepository struct {
	client *Client
}

// NewSceneRepository 创建场景仓储
func NewSceneRepository(client *Client) *SceneRepository {
	return &SceneRepository{client: client}
}

func (r *SceneRepository) Create(ctx context.Context, scene *entity.Scene) error {
	ctx, span := tracer.Start(ctx, "postgres.SceneRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)

	// 位置未指定时追加到尾部
	if scene.Position <= 0 {
		var maxPos *int
		if err := db.Model(&entity.Scene{}).
			Where("project_id = ? AND status <> ?", scene.ProjectID, entity.SceneStatusDeleted).
			Select("MAX(position)").
			Scan(&maxPos).Error; err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to get max position: %w", err)
		}
		if maxPos == nil {
			scene.Position = 1
		} else {
			scene.Position = *maxPos + 1
		}
	}

	if err := db.Create(scene).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create scene: %w", err)
	}
	return nil
}

func (r *SceneRepository) GetByID(ctx context.Context, id string) (*entity.Scene, error) {
	ctx, span := tracer.Start(ctx, "postgres.SceneRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var scene entity.Scene
	if err := db.First(&scene, "id = ? AND status <> ?", id, entity.SceneStatusDeleted).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get scene: %w", err)
	}
	return &scene, nil
}

func (r *SceneRepository) ListByProject(ctx context.Context, projectID string) ([]*entity.Scene, error) {
	ctx, span := tracer.Start(ctx, "postgres.SceneRepository.ListByProject")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var scenes []*entity.Scene
	if err := db.Where("project_id = ? AND status <> ?", projectID, entity.SceneStatusDeleted).
		Order("position ASC").
		Find(&scenes).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	return scenes, nil
}

// UpdatePayload 条件更新载荷与版本号。
// WHERE version_token = expectedToken 保证并发提交时只有一个写者成功。
func (r *SceneRepository) UpdatePayload(ctx context.Context, id string, payload json.RawMessage, expectedToken, newToken int64) error {
	ctx, span := tracer.Start(ctx, "postgres.SceneRepository.UpdatePayload")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.Scene{}).
		Where("id = ? AND version_token = ?", id, expectedToken).
		Updates(map[string]interface{}{
			"payload":       payload,
			"version_token": newToken,
			"status":        entity.SceneStatusGenerated,
		})
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to update scene payload: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &repository.VersionConflictError{EntityID: id, ExpectedToken: expectedToken}
	}
	return nil
}

func (r *SceneRepository) MarkDeleted(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.SceneRepository.MarkDeleted")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var scene entity.Scene
	if err := db.First(&scene, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("failed to load scene for delete: %w", err)
	}

	if err := db.Model(&entity.Scene{}).Where("id = ?", id).
		Update("status", entity.SceneStatusDeleted).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to mark scene deleted: %w", err)
	}

	// 位置重排：后续场景前移，保证用户可见编号保持 1..N 连续
	if err := db.Model(&entity.Scene{}).
		Where("project_id = ? AND status <> ? AND position > ?", scene.ProjectID, entity.SceneStatusDeleted, scene.Position).
		Update("position", gorm.Expr("position - 1")).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to compact scene positions: %w", err)
	}
	return nil
}
