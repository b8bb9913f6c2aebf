package repository

import (
	"context"

	"z-video-ai-api/internal/domain/entity"
)

// PreferenceRepository 偏好仓储接口（记忆库的持久层）
type PreferenceRepository interface {
	// Get 按作用域取单个偏好，未找到返回 (nil, nil)
	Get(ctx context.Context, projectID, userID, key string) (*entity.Preference, error)
	// Upsert 按 (scope, key) 幂等写入
	Upsert(ctx context.Context, pref *entity.Preference) error
	// ListByPrefix 按 key 前缀列出项目内偏好
	ListByPrefix(ctx context.Context, projectID, userID, prefix string) ([]*entity.Preference, error)
	// ListAll 列出项目 + 全局作用域的全部偏好
	ListAll(ctx context.Context, projectID, userID string) ([]*entity.Preference, error)
}

// ImageFactRepository 图片事实仓储接口
type ImageFactRepository interface {
	Create(ctx context.Context, fact *entity.ImageFact) error
	ListByProject(ctx context.Context, projectID string, limit int) ([]*entity.ImageFact, error)
}
