package repository

import (
	"context"

	"z-video-ai-api/internal/domain/entity"
)

// ConversationRepository 对话仓储接口
type ConversationRepository interface {
	CreateSession(ctx context.Context, session *entity.ConversationSession) error
	GetSession(ctx context.Context, id string) (*entity.ConversationSession, error)
	AppendTurn(ctx context.Context, turn *entity.ConversationTurn) error
	// RecentTurns 按时间倒序取最近 limit 轮，返回时恢复为时间正序
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]*entity.ConversationTurn, error)
	// TurnsIntroducingScenes 按对话时间正序返回引入过场景的轮次，
	// 序数引用的解析依据
	TurnsIntroducingScenes(ctx context.Context, projectID string) ([]*entity.ConversationTurn, error)
	CountTurns(ctx context.Context, sessionID string) (int64, error)
}
