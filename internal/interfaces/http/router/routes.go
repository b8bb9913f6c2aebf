// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers) {
	// 项目管理
	projects := v1.Group("/projects")
	{
		projects.GET("", h.Project.ListProjects)
		projects.POST("", h.Project.CreateProject)
		projects.GET("/:pid", h.Project.GetProject)
		projects.PUT("/:pid", h.Project.UpdateProject)
		projects.DELETE("/:pid", h.Project.DeleteProject)
		projects.PUT("/:pid/brand-profile", h.Project.UpdateBrandProfile)

		// 编排入口（SSE 进度流）
		projects.POST("/:pid/orchestrate", h.Orchestrate.Orchestrate)

		// 项目下的场景
		projects.GET("/:pid/scenes", h.Scene.ListScenes)

		// 记忆库
		projects.GET("/:pid/preferences", h.Memory.ListPreferences)
		projects.GET("/:pid/image-facts", h.Memory.ListImageFacts)
		projects.POST("/:pid/images/analyze", h.Memory.AnalyzeImage)

		// 模板评分预览
		projects.POST("/:pid/templates/score", h.Template.ScorePreview)

		// 工具选择审计
		projects.GET("/:pid/decisions", h.Decision.ListDecisions)
	}

	// 场景管理
	scenes := v1.Group("/scenes")
	{
		scenes.GET("/:sid", h.Scene.GetScene)
		scenes.GET("/:sid/observe", h.Scene.ObserveScene)
		scenes.DELETE("/:sid", h.Scene.DeleteScene)
	}

	// 模板目录
	templates := v1.Group("/templates")
	{
		templates.GET("", h.Template.ListTemplates)
	}
}
