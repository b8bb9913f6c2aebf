package model

// PreferenceExtractInput 偏好提取输入
type PreferenceExtractInput struct {
	Provider string
	Model    string
	// Utterance 触发学习的用户原话
	Utterance string
	// HistoryBlock 近期对话拼接文本，用于判断模式是否重复出现
	HistoryBlock string

	Temperature *float32
	MaxTokens   *int
}

// PreferenceSignal 单条偏好信号
type PreferenceSignal struct {
	// Key 偏好键，点分层级（style.pace / color.primary）
	Key   string `json:"key"`
	Value string `json:"value"`
	// Kind 信号类型：explicit（明确陈述）/ pattern（行为模式）
	Kind string `json:"kind"`
	// Repeats 模式在对话中出现的次数，explicit 信号为 1
	Repeats int `json:"repeats"`
	// Contradicts 与信号相反的既有偏好键（如有）
	Contradicts string `json:"contradicts,omitempty"`
	Evidence    string `json:"evidence,omitempty"`
}

// PreferenceExtractOutput 偏好提取输出
type PreferenceExtractOutput struct {
	Signals []PreferenceSignal `json:"signals"`

	Raw  string
	Meta LLMUsageMeta
}

// ImageAnalysisInput 图片分析输入
type ImageAnalysisInput struct {
	Provider string
	Model    string
	ImageURL string

	Temperature *float32
	MaxTokens   *int
}

// ImageAnalysisOutput 图片分析输出
type ImageAnalysisOutput struct {
	// Facts 从图片中提取的客观事实描述
	Facts []ImageFactItem `json:"facts"`

	Raw  string
	Meta LLMUsageMeta
}

// ImageFactItem 单条图片事实
type ImageFactItem struct {
	// Kind 事实类型：color / subject / layout / text / style
	Kind       string  `json:"kind"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}
