// Package template 提供生成模板目录与评分引擎
package template

// ProfileDimensions 画像向量维度数
const ProfileDimensions = 6

// ProfileVector 品牌/风格画像向量，每维取值 [0,1]。
// 六个维度依次为：正式度、活力、简约、温暖、科技感、奢华感。
type ProfileVector [ProfileDimensions]float64

// Requirement 模板的硬性内容要求
type Requirement string

const (
	RequirementLogo        Requirement = "logo"
	RequirementSocialProof Requirement = "social_proof"
	RequirementProductShot Requirement = "product_shot"
	RequirementCallToAction Requirement = "call_to_action"
)

// Candidate 模板目录条目，请求期间只读
type Candidate struct {
	ID            string
	Name          string
	TargetProfile ProfileVector
	Keywords      []string
	// Requirements 缺失任一项都会按固定罚分扣减内容可用性
	Requirements []Requirement
	// Formats 模板支持的输出格式（16:9 / 9:16 / 1:1）
	Formats []string
}

// Catalog 模板目录。顺序即目录序，评分相同的候选按目录序稳定排列。
type Catalog struct {
	candidates []Candidate
}

// NewCatalog 创建模板目录
func NewCatalog(candidates []Candidate) *Catalog {
	return &Catalog{candidates: candidates}
}

// Candidates 返回目录全量候选（按目录序）
func (c *Catalog) Candidates() []Candidate {
	if c == nil {
		return nil
	}
	return c.candidates
}

// Get 按 ID 查找候选
func (c *Catalog) Get(id string) (Candidate, bool) {
	if c == nil {
		return Candidate{}, false
	}
	for _, cand := range c.candidates {
		if cand.ID == id {
			return cand, true
		}
	}
	return Candidate{}, false
}

// DefaultCatalog 内置模板目录
func DefaultCatalog() *Catalog {
	return NewCatalog([]Candidate{
		{
			ID:            "product_showcase",
			Name:          "产品展示",
			TargetProfile: ProfileVector{0.6, 0.5, 0.6, 0.4, 0.7, 0.5},
			Keywords:      []string{"产品", "展示", "功能", "product", "showcase", "feature"},
			Requirements:  []Requirement{RequirementProductShot, RequirementLogo},
			Formats:       []string{"16:9", "9:16", "1:1"},
		},
		{
			ID:            "brand_story",
			Name:          "品牌故事",
			TargetProfile: ProfileVector{0.5, 0.4, 0.4, 0.8, 0.3, 0.6},
			Keywords:      []string{"品牌", "故事", "使命", "brand", "story", "mission"},
			Requirements:  []Requirement{RequirementLogo},
			Formats:       []string{"16:9"},
		},
		{
			ID:            "social_promo",
			Name:          "社交推广",
			TargetProfile: ProfileVector{0.3, 0.9, 0.5, 0.6, 0.5, 0.3},
			Keywords:      []string{"推广", "促销", "活动", "social", "promo", "sale"},
			Requirements:  []Requirement{RequirementCallToAction},
			Formats:       []string{"9:16", "1:1"},
		},
		{
			ID:            "testimonial",
			Name:          "客户见证",
			TargetProfile: ProfileVector{0.7, 0.4, 0.5, 0.7, 0.4, 0.5},
			Keywords:      []string{"客户", "评价", "见证", "testimonial", "review", "customer"},
			Requirements:  []Requirement{RequirementSocialProof},
			Formats:       []string{"16:9", "1:1"},
		},
		{
			ID:            "tech_launch",
			Name:          "科技发布",
			TargetProfile: ProfileVector{0.7, 0.7, 0.8, 0.2, 0.95, 0.6},
			Keywords:      []string{"发布", "科技", "创新", "launch", "tech", "innovation"},
			Requirements:  []Requirement{RequirementProductShot},
			Formats:       []string{"16:9"},
		},
	})
}
