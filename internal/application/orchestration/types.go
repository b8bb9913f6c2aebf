// Package orchestration 实现编排核心：意图分类、上下文构建、
// 能力选择与执行，以及进度事件流。
package orchestration

import (
	"z-video-ai-api/internal/application/template"
	"z-video-ai-api/internal/domain/entity"
)

// Tier 上下文档位，决定构建 ContextBundle 时执行哪些子拉取
type Tier string

const (
	// TierTrivial 仅目标实体 + 最近两条消息，目标延迟几十毫秒
	TierTrivial Tier = "trivial"
	// TierModerate 实体列表 + 缓存偏好 + 最近五条消息
	TierModerate Tier = "moderate"
	// TierComplex 实体列表 + 偏好 + 全量历史
	TierComplex Tier = "complex"
	// TierAnalytical 在 Complex 基础上追加跨实体模式分析
	TierAnalytical Tier = "analytical"
)

// Complexity 编辑复杂度。这是路由决策而非展示标签：
// Surgical 走低成本快路径，Creative/Structural 走高质量慢路径。
type Complexity string

const (
	ComplexitySurgical   Complexity = "surgical"
	ComplexityCreative   Complexity = "creative"
	ComplexityStructural Complexity = "structural"
)

// 能力目录
const (
	CapabilityCreateScene     = "create_scene"
	CapabilityEditScene       = "edit_scene"
	CapabilityChangeAttribute = "change_attribute"
	CapabilityDeleteScene     = "delete_scene"
	CapabilityAnswerQuestion  = "answer_question"
)

// Request 单次编排请求，调用期间不可变
type Request struct {
	RequestID string
	ProjectID string
	UserID    string
	SessionID string
	Prompt    string
	// TargetEntityID 请求显式附带的目标实体引用，优先级最高
	TargetEntityID      string
	ConversationHistory []entity.Message
	AttachedImageRefs   []string
}

// ContextBundle 分档上下文包。内部的缓存子对象是不可变快照，
// 缓存后绝不修改。
type ContextBundle struct {
	Tier         Tier
	TargetEntity *entity.SceneSummary
	EntityList   []entity.SceneSummary
	Preferences  []*entity.Preference
	// BrandProfile 项目的品牌画像，模板评分输入
	BrandProfile  template.ProfileVector
	RecentHistory []entity.Message
	ImageFacts    []*entity.ImageFact
	// Patterns 跨历史的重复模式（Analytical 档才填充）
	Patterns []string
	// RelatedFacts 语义召回的相关记忆事实文本（Analytical 档且向量索引可用时填充）
	RelatedFacts []string
}

// ToolSelection 工具选择结果，每次请求恰好一个能力
type ToolSelection struct {
	Capability     string
	TargetEntityID string
	// Complexity 仅 edit_scene 变体携带
	Complexity Complexity
	// Attribute / Value 仅 change_attribute 变体携带
	Attribute  string
	Value      string
	Confidence float64
	Reason     string
}

// NeedsTarget 该能力是否必须解析出目标实体
func (s *ToolSelection) NeedsTarget() bool {
	switch s.Capability {
	case CapabilityEditScene, CapabilityChangeAttribute, CapabilityDeleteScene:
		return true
	}
	return false
}

// Result 编排结果
type Result struct {
	Selection *ToolSelection
	// Artifact 状态变更产物，answer_question 等只读能力为 nil
	Artifact *entity.VersionedArtifact
	// Answer 只读问答能力的回复文本
	Answer string
}
