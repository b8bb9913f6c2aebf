// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"z-video-ai-api/internal/application/statesync"
	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
	"z-video-ai-api/internal/interfaces/http/dto"
)

// SceneHandler 场景处理器。场景只读访问走仓储，
// 一切变更（包括直接删除）经状态同步层提交，保持版本号单调。
type SceneHandler struct {
	scenes  repository.SceneRepository
	manager *statesync.Manager
}

// NewSceneHandler 创建场景处理器
func NewSceneHandler(scenes repository.SceneRepository, manager *statesync.Manager) *SceneHandler {
	return &SceneHandler{
		scenes:  scenes,
		manager: manager,
	}
}

// ListScenes 按位置升序列出项目场景
func (h *SceneHandler) ListScenes(c *gin.Context) {
	scenes, err := h.scenes.ListByProject(c.Request.Context(), c.Param("pid"))
	if err != nil {
		dto.FromError(c, err)
		return
	}

	views := make([]*dto.SceneView, 0, len(scenes))
	for _, s := range scenes {
		views = append(views, dto.NewSceneView(s.Summary()))
	}
	dto.Success(c, views)
}

// GetScene 获取场景详情
func (h *SceneHandler) GetScene(c *gin.Context) {
	scene, err := h.scenes.GetByID(c.Request.Context(), c.Param("sid"))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	if scene == nil || scene.Status == entity.SceneStatusDeleted {
		dto.NotFound(c, "scene not found")
		return
	}
	dto.Success(c, dto.NewSceneDetailView(scene))
}

// ObserveScene 读取场景当前 (载荷, 版本号) 快照。
// 消费方只依据 version_token 变化判断是否重算，绝不做载荷比对。
func (h *SceneHandler) ObserveScene(c *gin.Context) {
	artifact, err := h.manager.Observe(c.Request.Context(), c.Param("sid"))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	dto.Success(c, &dto.ArtifactView{
		EntityID:     artifact.EntityID,
		VersionToken: artifact.VersionToken,
		Payload:      artifact.Payload,
	})
}

// DeleteScene 删除场景。经状态同步层执行，
// 与编排删除共用同一把实体锁和缓存失效路径。
func (h *SceneHandler) DeleteScene(c *gin.Context) {
	if err := h.manager.Delete(c.Request.Context(), c.Param("sid")); err != nil {
		dto.FromError(c, err)
		return
	}
	dto.NoContent(c)
}
