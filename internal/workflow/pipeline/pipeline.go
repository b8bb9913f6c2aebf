// Package pipeline 封装基于 Eino 的 LLM 调用流程
package pipeline

import (
	workflowprompt "z-video-ai-api/internal/workflow/prompt"
	"z-video-ai-api/internal/workflow/port"
)

var defaultPromptRegistry = workflowprompt.NewRegistry()

// Pipeline LLM 调用流程的公共依赖
type Pipeline struct {
	factory port.ChatModelFactory
}

// New 创建流程实例
func New(factory port.ChatModelFactory) *Pipeline {
	return &Pipeline{factory: factory}
}
