package types

import (
	"strings"
	"time"
)

// ExtractionMethod 标识最终产出文本的提取策略
type ExtractionMethod string

const (
	// ExtractionStructured 文档理解服务的结构化字段提取
	ExtractionStructured ExtractionMethod = "structured"
	// ExtractionReadModel 文档理解服务的OCR逐页文本（read结果）
	ExtractionReadModel ExtractionMethod = "read-model"
	// ExtractionLayoutModel 文档理解服务的版面分析文本
	ExtractionLayoutModel ExtractionMethod = "layout-model"
	// ExtractionDirectBinary 按文件格式直接解码二进制内容
	ExtractionDirectBinary ExtractionMethod = "direct-binary"
	// ExtractionHeuristicFallback 原始字节宽容解码 + 启发式解析
	ExtractionHeuristicFallback ExtractionMethod = "heuristic-fallback"
	// ExtractionErrorFallback 所有策略失败后的终态占位结果
	ExtractionErrorFallback ExtractionMethod = "error-fallback"
)

// ContactKeys contact_info 中必须存在的键，值可以为空字符串但键不可缺失
var ContactKeys = []string{"name", "email", "phone", "linkedin", "location"}

// ResumeMetadata 提取过程的元数据
type ResumeMetadata struct {
	ExtractedAt time.Time        `json:"extracted_at"`
	Method      ExtractionMethod `json:"extraction_method"`
	Confidence  float64          `json:"confidence,omitempty"`
	ErrorNote   string           `json:"error_note,omitempty"`
}

// Skill 单个技能及其置信度，置信度范围[0,1]
type Skill struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// WorkExperience 一段工作经历，顺序与简历排版一致（不保证时间序）
type WorkExperience struct {
	Company          string   `json:"company"`
	JobTitle         string   `json:"job_title"`
	Location         string   `json:"location"`
	StartDate        string   `json:"start_date"`
	EndDate          string   `json:"end_date"`
	Description      string   `json:"description"`
	Responsibilities []string `json:"responsibilities"`
}

// Education 一段教育经历
type Education struct {
	Institution  string `json:"institution"`
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"field_of_study"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	GPA          string `json:"gpa"`
}

// Section 一个识别出的章节，保持文档内的出现顺序
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// NormalizedResume 提取流水线的规范化输出
// 无论哪种策略产出，成功结果的RawText去除空白后必须非空
type NormalizedResume struct {
	Metadata       ResumeMetadata    `json:"metadata"`
	ContactInfo    map[string]string `json:"contact_info"`
	Skills         []Skill           `json:"skills"`
	WorkExperience []WorkExperience  `json:"work_experience"`
	Education      []Education       `json:"education"`
	Sections       []Section         `json:"sections"`
	RawText        string            `json:"raw_text"`
}

// NewNormalizedResume 构造一个空的规范化简历，保证contact_info五个键全部就位
func NewNormalizedResume(method ExtractionMethod) *NormalizedResume {
	contact := make(map[string]string, len(ContactKeys))
	for _, k := range ContactKeys {
		contact[k] = ""
	}
	return &NormalizedResume{
		Metadata: ResumeMetadata{
			ExtractedAt: time.Now(),
			Method:      method,
		},
		ContactInfo:    contact,
		Skills:         []Skill{},
		WorkExperience: []WorkExperience{},
		Education:      []Education{},
		Sections:       []Section{},
	}
}

// HasUsableText 判断RawText去除空白后是否非空
func (r *NormalizedResume) HasUsableText() bool {
	return r != nil && strings.TrimSpace(r.RawText) != ""
}

// IsErrorFallback 判断是否为提取链全部失败后的终态结果
func (r *NormalizedResume) IsErrorFallback() bool {
	return r != nil && r.Metadata.Method == ExtractionErrorFallback
}

// AddSkill 追加技能，按名称大小写不敏感去重，保持首次出现的顺序
func (r *NormalizedResume) AddSkill(name string, confidence float64) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, s := range r.Skills {
		if strings.ToLower(s.Name) == lower {
			return false
		}
	}
	r.Skills = append(r.Skills, Skill{Name: name, Confidence: confidence})
	return true
}

// SectionBody 按标题（大小写不敏感）查找章节正文，未找到返回空串
func (r *NormalizedResume) SectionBody(heading string) string {
	lower := strings.ToLower(heading)
	for _, s := range r.Sections {
		if strings.ToLower(s.Heading) == lower {
			return s.Body
		}
	}
	return ""
}

// RoleRequirements 某一角色在某一经验层级下的要求集合
type RoleRequirements struct {
	CoreSkills       []string `json:"core_skills"`
	PreferredSkills  []string `json:"preferred_skills"`
	Responsibilities []string `json:"responsibilities"`
}

// CandidateSummary 载荷中的候选人摘要
type CandidateSummary struct {
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	YearsExperience float64 `json:"years_experience"`
	DetectedLevel   string  `json:"detected_level"`
}

// RoleSummary 载荷中的目标角色摘要
type RoleSummary struct {
	Title        string           `json:"title"`
	Level        string           `json:"level"`
	Requirements RoleRequirements `json:"requirements"`
}

// SkillsAnalysis 按角色家族划分的技术桶与缺口
type SkillsAnalysis struct {
	RelevantTechnologies []string            `json:"relevant_technologies"`
	OtherTechnologies    []string            `json:"other_technologies"`
	Categorized          map[string][]string `json:"categorized"`
	MissingCoreSkills    []string            `json:"missing_core_skills"`
}

// ExperienceAnalysis 能力布尔标志及其支撑摘录
type ExperienceAnalysis struct {
	Flags    map[string]bool   `json:"flags"`
	Excerpts map[string]string `json:"excerpts"`
}

// AnalysisPayload 角色分析器的结构化输出，供LLM调用与审计留存
type AnalysisPayload struct {
	Candidate  CandidateSummary   `json:"candidate"`
	Role       RoleSummary        `json:"role"`
	Skills     SkillsAnalysis     `json:"skills_analysis"`
	Experience ExperienceAnalysis `json:"experience_analysis"`
}

// CandidateFields 上传时随文件提交的候选人字段
type CandidateFields struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	RoleTitle string `json:"role_title"`
	RoleLevel string `json:"role_level"`
	Filename  string `json:"filename"`
}
