package template

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"z-video-ai-api/internal/config"
	"z-video-ai-api/pkg/metrics"
)

// ScoreBreakdown 三项子分，均在 [0,1]
type ScoreBreakdown struct {
	ProfileMatch        float64 `json:"profile_match"`
	KeywordMatch        float64 `json:"keyword_match"`
	ContentAvailability float64 `json:"content_availability"`
}

// ScoredTemplate 评分结果，逐次重算，不落任何存储
type ScoredTemplate struct {
	Candidate Candidate      `json:"candidate"`
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
	Reasoning string         `json:"reasoning"`
}

// Scorer 模板评分引擎。纯函数：同样输入必定给出同样的排序与分值。
type Scorer struct {
	weights    config.ScoringWeights
	penalties  map[string]float64
	keywordCap int
}

// NewScorer 创建评分引擎
func NewScorer(cfg *config.ScoringConfig) *Scorer {
	keywordCap := cfg.KeywordCap
	if keywordCap <= 0 {
		keywordCap = 3
	}
	return &Scorer{
		weights:    cfg.Weights,
		penalties:  cfg.Penalties,
		keywordCap: keywordCap,
	}
}

// Score 对候选模板评分并按分值降序返回。
// 空候选列表返回空结果而非错误；相同分值按目录序稳定排列。
func (s *Scorer) Score(profile ProfileVector, candidates []Candidate, promptKeywords []string, availableContent map[Requirement]bool) []ScoredTemplate {
	if len(candidates) == 0 {
		return []ScoredTemplate{}
	}

	normalized := normalizeKeywords(promptKeywords)

	results := make([]ScoredTemplate, 0, len(candidates))
	for _, cand := range candidates {
		breakdown := ScoreBreakdown{
			ProfileMatch:        s.profileMatch(profile, cand.TargetProfile),
			KeywordMatch:        s.keywordMatch(normalized, cand.Keywords),
			ContentAvailability: s.contentAvailability(cand.Requirements, availableContent),
		}

		score := breakdown.ProfileMatch*s.weights.ProfileMatch +
			breakdown.KeywordMatch*s.weights.KeywordMatch +
			breakdown.ContentAvailability*s.weights.ContentAvailability
		score = clamp01(score)

		results = append(results, ScoredTemplate{
			Candidate: cand,
			Score:     score,
			Breakdown: breakdown,
			Reasoning: buildReasoning(cand, breakdown),
		})
	}

	// 稳定排序：分值相同保持目录序，保证同输入同输出
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > 0 {
		metrics.TemplateScoringTotal.WithLabelValues(results[0].Candidate.ID).Inc()
	}
	return results
}

// profileMatch 对称距离：1 - 各维绝对差的均值。
// 不用相关性：调到完全相反画像的候选应得接近 0 分，而非 0.5。
func (s *Scorer) profileMatch(profile, target ProfileVector) float64 {
	var sum float64
	for d := 0; d < ProfileDimensions; d++ {
		sum += math.Abs(profile[d] - target[d])
	}
	return clamp01(1 - sum/ProfileDimensions)
}

// keywordMatch 命中数达到上限即满分，抑制关键词堆砌
func (s *Scorer) keywordMatch(promptKeywords map[string]struct{}, candidateKeywords []string) float64 {
	if len(promptKeywords) == 0 || len(candidateKeywords) == 0 {
		return 0
	}
	matched := 0
	for _, kw := range candidateKeywords {
		if _, ok := promptKeywords[strings.ToLower(strings.TrimSpace(kw))]; ok {
			matched++
		}
	}
	return clamp01(float64(matched) / float64(s.keywordCap))
}

// contentAvailability 从 1.0 起逐项扣减未满足的硬性要求，下限 0
func (s *Scorer) contentAvailability(requirements []Requirement, available map[Requirement]bool) float64 {
	score := 1.0
	for _, req := range requirements {
		if available[req] {
			continue
		}
		penalty, ok := s.penalties[string(req)]
		if !ok {
			penalty = 0.2
		}
		score -= penalty
	}
	if score < 0 {
		return 0
	}
	return score
}

func buildReasoning(cand Candidate, b ScoreBreakdown) string {
	parts := make([]string, 0, 3)
	switch {
	case b.ProfileMatch >= 0.8:
		parts = append(parts, "画像高度吻合")
	case b.ProfileMatch >= 0.5:
		parts = append(parts, "画像基本吻合")
	default:
		parts = append(parts, "画像差异较大")
	}
	if b.KeywordMatch >= 1 {
		parts = append(parts, "关键词完全命中")
	} else if b.KeywordMatch > 0 {
		parts = append(parts, "关键词部分命中")
	}
	if b.ContentAvailability < 1 {
		parts = append(parts, "存在未满足的内容要求")
	}
	return fmt.Sprintf("%s：%s", cand.Name, strings.Join(parts, "，"))
}

func normalizeKeywords(keywords []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		out[kw] = struct{}{}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
