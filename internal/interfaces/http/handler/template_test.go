package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-video-ai-api/internal/application/template"
	"z-video-ai-api/internal/config"
	"z-video-ai-api/internal/domain/entity"
	"z-video-ai-api/internal/domain/repository"
	"z-video-ai-api/internal/interfaces/http/dto"
)

type fakeProjectRepo struct {
	project *entity.Project
}

func (f *fakeProjectRepo) Create(ctx context.Context, p *entity.Project) error { return nil }
func (f *fakeProjectRepo) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	return f.project, nil
}
func (f *fakeProjectRepo) List(ctx context.Context, ownerID string, p repository.Pagination) (*repository.PagedResult[*entity.Project], error) {
	return nil, nil
}
func (f *fakeProjectRepo) Update(ctx context.Context, p *entity.Project) error { return nil }
func (f *fakeProjectRepo) UpdateBrandProfile(ctx context.Context, id string, profile json.RawMessage) error {
	return nil
}
func (f *fakeProjectRepo) Delete(ctx context.Context, id string) error { return nil }

func newTemplateRouter(project *entity.Project) *gin.Engine {
	scorer := template.NewScorer(&config.ScoringConfig{
		Weights: config.ScoringWeights{ProfileMatch: 0.6, KeywordMatch: 0.25, ContentAvailability: 0.15},
	})
	h := NewTemplateHandler(scorer, template.DefaultCatalog(), &fakeProjectRepo{project: project})

	r := gin.New()
	r.GET("/v1/templates", h.ListTemplates)
	r.POST("/v1/projects/:pid/templates/score", h.ScorePreview)
	return r
}

func TestListTemplatesReturnsCatalog(t *testing.T) {
	r := newTemplateRouter(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/templates", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response[[]*dto.TemplateView]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data)
}

func TestScorePreviewRanksTemplates(t *testing.T) {
	project := &entity.Project{
		ID:           "p1",
		BrandProfile: json.RawMessage(`[0.6,0.5,0.6,0.4,0.7,0.5]`),
	}
	r := newTemplateRouter(project)

	body, _ := json.Marshal(dto.ScorePreviewRequest{
		Prompt:           "产品 展示 视频",
		AvailableContent: map[string]bool{"logo": true, "product_shot": true},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/projects/p1/templates/score", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response[[]*dto.ScoredTemplateView]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data)

	// 按总分降序
	for i := 1; i < len(resp.Data); i++ {
		assert.GreaterOrEqual(t, resp.Data[i-1].Total, resp.Data[i].Total)
	}
	assert.NotEmpty(t, resp.Data[0].Reasoning)
}

func TestScorePreviewMissingProjectReturns404(t *testing.T) {
	r := newTemplateRouter(nil)

	body, _ := json.Marshal(dto.ScorePreviewRequest{Prompt: "展示"})
	req := httptest.NewRequest(http.MethodPost, "/v1/projects/p1/templates/score", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
