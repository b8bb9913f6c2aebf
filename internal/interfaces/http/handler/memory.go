// Package handler 提供 HTTP 请求处理器
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"z-video-ai-api/internal/application/memory"
	"z-video-ai-api/internal/infrastructure/messaging"
	"z-video-ai-api/internal/interfaces/http/dto"
)

// MemoryHandler 记忆库处理器：偏好与图片事实的只读视图，
// 以及图片分析任务的受理入口。
type MemoryHandler struct {
	store    *memory.Store
	producer *messaging.Producer
}

// NewMemoryHandler 创建记忆库处理器
func NewMemoryHandler(store *memory.Store, producer *messaging.Producer) *MemoryHandler {
	return &MemoryHandler{
		store:    store,
		producer: producer,
	}
}

// ListPreferences 列出当前用户在项目内的偏好，支持 prefix 过滤
func (h *MemoryHandler) ListPreferences(c *gin.Context) {
	prefs, err := h.store.List(c.Request.Context(), c.Param("pid"), c.GetString("user_id"), c.Query("prefix"))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.NewPreferenceViews(prefs))
}

// ListImageFacts 列出项目内的图片分析事实
func (h *MemoryHandler) ListImageFacts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	facts, err := h.store.ImageFacts(c.Request.Context(), c.Param("pid"), limit)
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, dto.NewImageFactViews(facts))
}

// AnalyzeImage 受理图片分析任务，分析在后台异步执行
func (h *MemoryHandler) AnalyzeImage(c *gin.Context) {
	var req dto.AnalyzeImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	job := &messaging.ImageAnalysisMessage{
		ImageID:   uuid.NewString(),
		UserID:    c.GetString("user_id"),
		ProjectID: c.Param("pid"),
		ImageURL:  req.ImageURL,
	}
	if _, err := h.producer.PublishImageAnalysis(c.Request.Context(), job); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Accepted(c, &dto.AnalyzeImageAccepted{ImageID: job.ImageID})
}
