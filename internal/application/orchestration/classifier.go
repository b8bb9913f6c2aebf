package orchestration

import "strings"

// 复杂度词表。结构性动词优先于精确属性动词，
// "重新设计布局" 里同时出现 "设计" 和 "改" 时按结构性处理。
var (
	structuralHints = []string{
		"redesign", "restructure", "rearrange", "reorganize", "layout", "overhaul",
		"重新设计", "重构", "重排", "布局", "调整结构", "推倒重来",
	}
	surgicalHints = []string{
		"change the", "change to", "set the", "set to", "replace the",
		"color to", "size to", "font to", "text to",
		"改成", "换成", "设为", "调成", "颜色改", "字体改", "文字改",
	}
	creativeHints = []string{
		"modernize", "beautify", "polish", "refresh", "style", "vibe", "feel",
		"现代感", "美化", "润色", "风格", "质感", "更有",
	}
)

// 属性级编辑的识别词，用于档位判定：纯属性修改是 Trivial
var attributeHints = []string{
	"color", "font", "size", "text", "duration", "opacity",
	"颜色", "字体", "字号", "文字", "时长", "透明度",
}

// 分析型请求词表
var analyticalHints = []string{
	"analyze", "summary", "summarize", "compare", "why", "统计", "分析", "总结", "对比", "为什么",
}

// ClassifyComplexity 浅层词法启发式判定编辑复杂度。
// 模型分类结果是最终裁决，这里只提供先验；matched 为 false 时
// 下游必须以模型输出为准。
func ClassifyComplexity(prompt string) (Complexity, bool) {
	p := strings.ToLower(prompt)

	for _, hint := range structuralHints {
		if strings.Contains(p, hint) {
			return ComplexityStructural, true
		}
	}
	for _, hint := range surgicalHints {
		if strings.Contains(p, hint) {
			return ComplexitySurgical, true
		}
	}
	for _, hint := range creativeHints {
		if strings.Contains(p, hint) {
			return ComplexityCreative, true
		}
	}
	return ComplexityCreative, false
}

// ClassifyTier 按请求形态判定上下文档位：
//   - 带目标实体的纯属性修改 → Trivial
//   - 分析/总结类请求 → Analytical
//   - 结构性改动 → Complex
//   - 其余 → Moderate
func ClassifyTier(prompt, targetEntityID string) Tier {
	p := strings.ToLower(prompt)

	for _, hint := range analyticalHints {
		if strings.Contains(p, hint) {
			return TierAnalytical
		}
	}
	for _, hint := range structuralHints {
		if strings.Contains(p, hint) {
			return TierComplex
		}
	}

	if targetEntityID != "" {
		complexity, matched := ClassifyComplexity(prompt)
		if matched && complexity == ComplexitySurgical {
			return TierTrivial
		}
		for _, hint := range attributeHints {
			if strings.Contains(p, hint) {
				return TierTrivial
			}
		}
	}

	return TierModerate
}
