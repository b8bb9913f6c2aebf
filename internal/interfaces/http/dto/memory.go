package dto

import (
	"encoding/json"
	"time"

	"z-video-ai-api/internal/domain/entity"
)

// PreferenceView 偏好视图
type PreferenceView struct {
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	Confidence float64   `json:"confidence"`
	Scope      string    `json:"scope"`
	Source     string    `json:"source"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewPreferenceViews 批量构建偏好视图
func NewPreferenceViews(prefs []*entity.Preference) []*PreferenceView {
	views := make([]*PreferenceView, 0, len(prefs))
	for _, p := range prefs {
		views = append(views, &PreferenceView{
			Key:        p.Key,
			Value:      p.Value,
			Confidence: p.Confidence,
			Scope:      string(p.Scope),
			Source:     string(p.Source),
			UpdatedAt:  p.UpdatedAt,
		})
	}
	return views
}

// ImageFactView 图片事实视图
type ImageFactView struct {
	ID        string          `json:"id"`
	ImageRef  string          `json:"image_ref"`
	Facts     json.RawMessage `json:"facts"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewImageFactViews 批量构建图片事实视图
func NewImageFactViews(facts []*entity.ImageFact) []*ImageFactView {
	views := make([]*ImageFactView, 0, len(facts))
	for _, f := range facts {
		views = append(views, &ImageFactView{
			ID:        f.ID,
			ImageRef:  f.ImageRef,
			Facts:     f.Facts,
			CreatedAt: f.CreatedAt,
		})
	}
	return views
}

// AnalyzeImageRequest 图片分析任务请求。
// 分析在后台进行，结果异步写入记忆库。
type AnalyzeImageRequest struct {
	ImageURL string `json:"image_url" binding:"required,url"`
}

// AnalyzeImageAccepted 图片分析受理响应
type AnalyzeImageAccepted struct {
	ImageID string `json:"image_id"`
}
