package model

// IntentClassifyInput 意图分类输入
type IntentClassifyInput struct {
	Provider string
	Model    string
	// Utterance 用户原话
	Utterance string
	// HistoryBlock 近期对话拼接文本
	HistoryBlock string
	// SceneListBlock 当前场景清单拼接文本（编号 + 名称）
	SceneListBlock string
	// AttachedSceneID 请求显式指定的目标场景
	AttachedSceneID string

	Temperature *float32
	MaxTokens   *int
}

// IntentCandidate 单个意图候选
type IntentCandidate struct {
	// Capability 能力名：create_scene / edit_scene / change_attribute / delete_scene / answer_question
	Capability string `json:"capability"`
	// Complexity 编辑复杂度：surgical / creative / structural
	Complexity string `json:"complexity,omitempty"`
	// TargetOrdinal 用户用序数指代的场景号（"第三个场景" -> 3），0 表示未指代
	TargetOrdinal int `json:"target_ordinal,omitempty"`
	// TargetHint 用户对目标的文字描述（"开头那个"）
	TargetHint string `json:"target_hint,omitempty"`
	// Attribute 属性修改时的属性名
	Attribute string `json:"attribute,omitempty"`
	// Value 属性修改时的目标值
	Value      string  `json:"value,omitempty"`
	Confidence float64 `json:"confidence"`
}

// IntentClassifyOutput 意图分类输出
type IntentClassifyOutput struct {
	Candidates []IntentCandidate `json:"candidates"`
	// Ambiguous 模型无法在候选间裁决时为 true
	Ambiguous bool   `json:"ambiguous"`
	Reason    string `json:"reason,omitempty"`

	Raw  string
	Meta LLMUsageMeta
}
