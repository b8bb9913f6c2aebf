package repository

import (
	"context"
	"encoding/json"

	"z-video-ai-api/internal/domain/entity"
)

// SceneRepository 场景仓储接口
type SceneRepository interface {
	Create(ctx context.Context, scene *entity.Scene) error
	GetByID(ctx context.Context, id string) (*entity.Scene, error)
	// ListByProject 按当前位置升序返回项目内全部未删除场景
	ListByProject(ctx context.Context, projectID string) ([]*entity.Scene, error)
	// UpdatePayload 条件更新：仅当存储中的版本号等于 expectedToken 时写入新载荷
	// 与新版本号，否则返回 *VersionConflictError。版本单调性的最后防线。
	UpdatePayload(ctx context.Context, id string, payload json.RawMessage, expectedToken, newToken int64) error
	// MarkDeleted 逻辑删除并重排后续位置
	MarkDeleted(ctx context.Context, id string) error
}

// VersionConflictError 由实现方在条件更新失败时返回
type VersionConflictError struct {
	EntityID      string
	ExpectedToken int64
}

func (e *VersionConflictError) Error() string {
	return "version conflict on entity " + e.EntityID
}
