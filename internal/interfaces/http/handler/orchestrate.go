// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"z-video-ai-api/internal/application/orchestration"
	"z-video-ai-api/internal/config"
	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
	"z-video-ai-api/internal/interfaces/http/dto"
	"z-video-ai-api/pkg/logger"
)

// OrchestrateHandler 编排入口处理器
type OrchestrateHandler struct {
	orch  *orchestration.Orchestrator
	convs repository.ConversationRepository
	cfg   config.OrchestrationConfig
}

// NewOrchestrateHandler 创建编排处理器
func NewOrchestrateHandler(
	orch *orchestration.Orchestrator,
	convs repository.ConversationRepository,
	cfg config.OrchestrationConfig,
) *OrchestrateHandler {
	return &OrchestrateHandler{
		orch:  orch,
		convs: convs,
		cfg:   cfg,
	}
}

// Orchestrate 执行一次编排。默认以 SSE 推送进度事件，
// ?stream=false 时同步返回最终结果。
func (h *OrchestrateHandler) Orchestrate(c *gin.Context) {
	var req dto.OrchestrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	projectID := c.Param("pid")
	userID := c.GetString("user_id")

	oreq := req.ToOrchestrationRequest(projectID, userID)
	oreq.RequestID = c.GetString("request_id")

	ctx := c.Request.Context()
	h.ensureSession(ctx, oreq)
	h.appendTurn(ctx, oreq, entity.RoleUser, oreq.Prompt, "")

	if c.Query("stream") == "false" {
		h.runSync(c, oreq)
		return
	}
	h.runStream(c, oreq)
}

func (h *OrchestrateHandler) runSync(c *gin.Context, oreq *orchestration.Request) {
	result, err := h.orch.Run(c.Request.Context(), oreq, nil)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	h.recordAssistantTurn(c.Request.Context(), oreq, result)
	dto.Success(c, dto.NewOrchestrateResult(oreq, result))
}

func (h *OrchestrateHandler) runStream(c *gin.Context, oreq *orchestration.Request) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	progress := orchestration.NewProgressStream(h.cfg.ProgressBufferSize)
	resultCh := make(chan *orchestration.Result, 1)

	ctx := c.Request.Context()
	go func() {
		result, err := h.orch.Run(ctx, oreq, progress)
		if err != nil {
			// 失败已通过 failed 终态事件送达
			close(resultCh)
			return
		}
		h.recordAssistantTurn(ctx, oreq, result)
		resultCh <- result
	}()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-progress.Events():
			if !ok {
				// 终态已送达，补发最终结果
				select {
				case result := <-resultCh:
					if result != nil {
						c.SSEvent("result", dto.NewOrchestrateResult(oreq, result))
					}
				case <-time.After(time.Second):
				}
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true

		case <-ctx.Done():
			// 客户端断开，编排随请求上下文取消
			return false
		}
	})
}

// ensureSession 会话缺失时新建，历史缺失时从服务端会话记录回填
func (h *OrchestrateHandler) ensureSession(ctx context.Context, oreq *orchestration.Request) {
	if h.convs == nil {
		return
	}

	if oreq.SessionID == "" {
		session := entity.NewConversationSession(oreq.ProjectID, oreq.UserID)
		session.ID = uuid.NewString()
		if err := h.convs.CreateSession(ctx, session); err != nil {
			logger.FromContext(ctx).Warn("failed to create conversation session", "error", err)
			return
		}
		oreq.SessionID = session.ID
		return
	}

	if len(oreq.ConversationHistory) > 0 {
		return
	}
	turns, err := h.convs.RecentTurns(ctx, oreq.SessionID, h.cfg.FullHistoryLimit)
	if err != nil {
		logger.FromContext(ctx).Warn("failed to load conversation history", "error", err)
		return
	}
	for _, turn := range turns {
		oreq.ConversationHistory = append(oreq.ConversationHistory, entity.Message{
			Role:              turn.Role,
			Content:           turn.Content,
			IntroducedSceneID: turn.IntroducedSceneID,
		})
	}
}

// appendTurn 轮次落盘尽力而为，失败只记日志
func (h *OrchestrateHandler) appendTurn(ctx context.Context, oreq *orchestration.Request, role entity.Role, content, introducedSceneID string) {
	if h.convs == nil || oreq.SessionID == "" || content == "" {
		return
	}

	turn := entity.NewConversationTurn(oreq.SessionID, oreq.ProjectID, role, content, nil)
	turn.ID = uuid.NewString()
	turn.IntroducedSceneID = introducedSceneID
	if err := h.convs.AppendTurn(ctx, turn); err != nil {
		logger.FromContext(ctx).Warn("failed to append conversation turn", "error", err)
	}
}

func (h *OrchestrateHandler) recordAssistantTurn(ctx context.Context, oreq *orchestration.Request, result *orchestration.Result) {
	content := result.Answer
	if content == "" && result.Selection != nil {
		content = result.Selection.Capability + " completed"
	}

	var introduced string
	if result.Selection != nil && result.Selection.Capability == orchestration.CapabilityCreateScene && result.Artifact != nil {
		introduced = result.Artifact.EntityID
	}
	h.appendTurn(ctx, oreq, entity.RoleAssistant, content, introduced)
}
