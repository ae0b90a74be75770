package analyzer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"cv-agent-go/internal/logger"
	"cv-agent-go/internal/parser"
	"cv-agent-go/internal/types"
)

const (
	// defaultRawTextCap 用户提示中原始文本的默认字符上限
	// 下游模型调用有硬性token预算，无界嵌入会导致请求被拒
	defaultRawTextCap = 2000

	// truncationMarker 原始文本被截断时追加的标记，测试依赖该精确文案
	truncationMarker = "\n\n[Content truncated due to length]"

	maxExcerptHits = 3
	maxExcerptLen  = 500
)

// RoleAnalyzer 按角色画像参数化的简历分析器
// 三个角色家族共用同一份逻辑，差异全部收敛在RoleProfile中
type RoleAnalyzer struct {
	profile    RoleProfile
	level      string
	rawTextCap int
}

// Option RoleAnalyzer的可选配置
type Option func(*RoleAnalyzer)

// WithRawTextCap 覆盖用户提示中原始文本的字符上限
func WithRawTextCap(cap int) Option {
	return func(a *RoleAnalyzer) {
		if cap > 0 {
			a.rawTextCap = cap
		}
	}
}

// NewRoleAnalyzer 创建角色分析器，层级会被规范化到junior/mid/senior
func NewRoleAnalyzer(profile RoleProfile, level string, opts ...Option) *RoleAnalyzer {
	a := &RoleAnalyzer{
		profile:    profile,
		level:      NormalizeLevel(level),
		rawTextCap: defaultRawTextCap,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RoleName 返回画像的角色名
func (a *RoleAnalyzer) RoleName() string { return a.profile.Name }

// Level 返回规范化后的经验层级
func (a *RoleAnalyzer) Level() string { return a.level }

// NormalizeLevel 把任意层级输入规范化为junior/mid/senior
// 无法识别时回退mid并记录警告
func NormalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "junior", "entry", "beginner", "associate":
		return "junior"
	case "mid", "middle", "intermediate", "":
		return "mid"
	case "senior", "lead", "expert", "principal":
		return "senior"
	default:
		logger.Warn().Str("level", level).Msg("无法识别的经验层级，回退为mid")
		return "mid"
	}
}

// LoadRoleRequirements 按层级查找角色要求表
// 内置表缺失该层级时回退mid层级
func (a *RoleAnalyzer) LoadRoleRequirements() types.RoleRequirements {
	if reqs, ok := a.profile.Requirements[a.level]; ok {
		return reqs
	}
	logger.Warn().
		Str("role", a.profile.Name).
		Str("level", a.level).
		Msg("角色要求表缺失该层级，回退mid")
	return a.profile.Requirements["mid"]
}

// SystemPrompt 生成角色专属的系统提示
// JSON模板是与下游响应解析器的契约：跨家族结构逐字一致，仅类目名不同
func (a *RoleAnalyzer) SystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert technical recruiter specializing in %s.\n", a.profile.Specialty)
	fmt.Fprintf(&b, "Your task is to analyze a candidate's resume for a %s %s position.\n\n", a.level, a.profile.Name)

	b.WriteString("Focus on:\n")
	for i, area := range a.profile.FocusAreas {
		fmt.Fprintf(&b, "%d. %s\n", i+1, area)
	}
	if guidance, ok := a.profile.LevelGuidance[a.level]; ok {
		fmt.Fprintf(&b, "\nFor %s positions: %s\n", a.level, guidance)
	}

	b.WriteString("\nYou MUST respond with a valid JSON object in exactly this format:\n{\n")
	b.WriteString("    \"overall_score\": <number 0-100>,\n")
	b.WriteString("    \"categories\": [\n")
	for i, cat := range a.profile.Categories {
		fmt.Fprintf(&b, "        {\"name\": \"%s\", \"score\": <number 0-100>, \"feedback\": \"<%s>\", \"suggestions\": [\"improvement suggestion 1\", \"improvement suggestion 2\"]}", cat.Name, cat.Hint)
		if i < len(a.profile.Categories)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("    ],\n")
	b.WriteString("    \"keyword_analysis\": {\n")
	b.WriteString("        \"present_keywords\": [\"keyword1\", \"keyword2\"],\n")
	b.WriteString("        \"missing_keywords\": [\"keyword3\", \"keyword4\"],\n")
	b.WriteString("        \"recommended_additions\": [\"keyword5\", \"keyword6\"]\n")
	b.WriteString("    },\n")
	b.WriteString("    \"matrix_alignment\": {\n")
	b.WriteString("        \"current_level\": \"<junior|mid|senior>\",\n")
	b.WriteString("        \"target_level\": \"<junior|mid|senior>\",\n")
	b.WriteString("        \"gap_areas\": [\"gap area 1\", \"gap area 2\"]\n")
	b.WriteString("    },\n")
	b.WriteString("    \"summary\": \"<2-3 sentence overall assessment>\"\n")
	b.WriteString("}\n")
	return b.String()
}

// UserPrompt 生成用户提示，原始文本按上限截断并追加截断标记
func (a *RoleAnalyzer) UserPrompt(resume *types.NormalizedResume) string {
	reqs := a.LoadRoleRequirements()
	years := a.estimateYears(resume)

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this resume for a %s %s position.\n\n", strings.ToUpper(a.level), a.profile.Name)

	b.WriteString("CANDIDATE INFORMATION:\n")
	fmt.Fprintf(&b, "Name: %s\n", valueOr(resume.ContactInfo["name"], "Not specified"))
	fmt.Fprintf(&b, "Email: %s\n", valueOr(resume.ContactInfo["email"], "Not specified"))
	fmt.Fprintf(&b, "Estimated Years of Experience: %.1f\n\n", years)

	b.WriteString("TARGET ROLE:\n")
	fmt.Fprintf(&b, "Title: %s\n", a.profile.Name)
	fmt.Fprintf(&b, "Level: %s\n\n", a.level)

	b.WriteString("ROLE REQUIREMENTS:\n")
	fmt.Fprintf(&b, "Core Skills: %s\n", strings.Join(reqs.CoreSkills, ", "))
	fmt.Fprintf(&b, "Preferred Skills: %s\n", strings.Join(reqs.PreferredSkills, ", "))
	b.WriteString("Key Responsibilities:\n")
	for _, r := range reqs.Responsibilities {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	b.WriteString("\n")

	b.WriteString("SKILLS:\n")
	b.WriteString(formatSkills(resume.Skills))
	b.WriteString("\n\n")

	b.WriteString("WORK EXPERIENCE:\n")
	b.WriteString(formatWorkExperience(resume.WorkExperience))
	b.WriteString("\n\n")

	b.WriteString("EDUCATION:\n")
	b.WriteString(formatEducation(resume.Education))
	b.WriteString("\n\n")

	excerpts := a.extractExcerpts(resume)
	if len(excerpts) > 0 {
		b.WriteString("RELEVANT EXPERIENCE EXCERPTS:\n")
		for _, flag := range a.profile.Flags {
			if !flag.WithExcerpt {
				continue
			}
			key := excerptKey(flag.Name)
			fmt.Fprintf(&b, "%s: %s\n", excerptLabel(key), excerpts[key])
		}
		b.WriteString("\n")
	}

	b.WriteString("ADDITIONAL RESUME CONTENT:\n")
	b.WriteString(a.boundedRawText(resume.RawText))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Focus your analysis on %s.\n", a.profile.FocusSummary)
	return b.String()
}

// boundedRawText 截断到上限，命中上限时以截断标记结尾
// 截断点回退到rune边界，避免把多字节字符切成非法序列
func (a *RoleAnalyzer) boundedRawText(raw string) string {
	if len(raw) <= a.rawTextCap {
		return raw
	}
	cut := a.rawTextCap
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	return raw[:cut] + truncationMarker
}

// CreateAnalysisPayload 从简历计算结构化分析信号
func (a *RoleAnalyzer) CreateAnalysisPayload(resume *types.NormalizedResume) types.AnalysisPayload {
	years := a.estimateYears(resume)
	technologies := a.extractTechnologies(resume)

	var relevant, other []string
	for _, tech := range technologies {
		if a.isRelevantTech(tech) {
			relevant = append(relevant, tech)
		} else {
			other = append(other, tech)
		}
	}

	reqs := a.LoadRoleRequirements()
	payload := types.AnalysisPayload{
		Candidate: types.CandidateSummary{
			Name:            resume.ContactInfo["name"],
			Email:           resume.ContactInfo["email"],
			YearsExperience: years,
			DetectedLevel:   parser.EstimateLevelFromYears(years),
		},
		Role: types.RoleSummary{
			Title:        a.profile.Name,
			Level:        a.level,
			Requirements: reqs,
		},
		Skills: types.SkillsAnalysis{
			RelevantTechnologies: relevant,
			OtherTechnologies:    other,
			Categorized:          a.categorizeTechnologies(technologies),
			MissingCoreSkills:    a.missingCoreSkills(reqs.CoreSkills, technologies),
		},
		Experience: types.ExperienceAnalysis{
			Flags:    a.experienceFlags(resume),
			Excerpts: a.extractExcerpts(resume),
		},
	}

	logger.Debug().
		Str("role", a.profile.Name).
		Str("level", a.level).
		Float64("years", years).
		Int("relevant_tech", len(relevant)).
		Int("missing_core_skills", len(payload.Skills.MissingCoreSkills)).
		Msg("分析载荷构建完成")

	return payload
}

func (a *RoleAnalyzer) estimateYears(resume *types.NormalizedResume) float64 {
	years := parser.YearsOfExperience(resume.WorkExperience)
	if years == 0 {
		years = parser.EstimateYearsFromText(resume.RawText)
	}
	return years
}

// extractTechnologies 汇总技能表与原始文本中识别到的技术
// 文本匹配按整词命中，避免 "go" 命中 "mongodb" 之类的误判
func (a *RoleAnalyzer) extractTechnologies(resume *types.NormalizedResume) []string {
	seen := make(map[string]bool)
	var techs []string
	add := func(name string) {
		lower := strings.ToLower(strings.TrimSpace(name))
		if lower == "" || seen[lower] {
			return
		}
		seen[lower] = true
		techs = append(techs, strings.TrimSpace(name))
	}

	for _, s := range resume.Skills {
		add(s.Name)
	}
	rawLower := strings.ToLower(resume.RawText)
	for _, keyword := range commonTechKeywords {
		if containsWholeWord(rawLower, strings.ToLower(keyword)) {
			add(keyword)
		}
	}
	return techs
}

func (a *RoleAnalyzer) isRelevantTech(tech string) bool {
	lower := strings.ToLower(tech)
	if a.profile.RelevantTech[lower] {
		return true
	}
	for known := range a.profile.RelevantTech {
		if strings.Contains(lower, known) {
			return true
		}
	}
	return false
}

// categorizeTechnologies 把技术分到画像定义的分桶，桶键全部保留以稳定载荷结构
func (a *RoleAnalyzer) categorizeTechnologies(technologies []string) map[string][]string {
	lowered := make([]string, len(technologies))
	for i, t := range technologies {
		lowered[i] = strings.ToLower(t)
	}
	categorized := make(map[string][]string, len(a.profile.TechCategories))
	for bucket, keywords := range a.profile.TechCategories {
		matched := []string{}
		for i, tech := range lowered {
			for _, kw := range keywords {
				if tech == kw || strings.Contains(tech, kw) {
					matched = append(matched, technologies[i])
					break
				}
			}
		}
		categorized[bucket] = matched
	}
	return categorized
}

// missingCoreSkills 用斜杠或式匹配检查核心技能缺口
// "Python/JavaScript/Java" 只要命中任一备选即视为满足
func (a *RoleAnalyzer) missingCoreSkills(coreSkills, technologies []string) []string {
	lowered := make([]string, len(technologies))
	for i, t := range technologies {
		lowered[i] = strings.ToLower(t)
	}
	missing := []string{}
	for _, required := range coreSkills {
		if !skillMatch(required, lowered) {
			missing = append(missing, required)
		}
	}
	return missing
}

// skillMatch 判断一条要求是否被已识别技术满足
// 要求按"/"拆分为备选项，备选项与技术任一方向的包含都算命中
func skillMatch(required string, loweredTechs []string) bool {
	for _, alt := range strings.Split(required, "/") {
		alt = strings.ToLower(strings.TrimSpace(alt))
		if alt == "" {
			continue
		}
		for _, tech := range loweredTechs {
			if strings.Contains(tech, alt) || strings.Contains(alt, tech) {
				return true
			}
		}
	}
	return false
}

// experienceFlags 按关键词出现情况计算各布尔标志
func (a *RoleAnalyzer) experienceFlags(resume *types.NormalizedResume) map[string]bool {
	rawLower := strings.ToLower(resume.RawText)
	var skillsLower []string
	for _, s := range resume.Skills {
		skillsLower = append(skillsLower, strings.ToLower(s.Name))
	}

	flags := make(map[string]bool, len(a.profile.Flags))
	for _, flag := range a.profile.Flags {
		hit := false
		for _, kw := range flag.Keywords {
			if strings.Contains(rawLower, kw) {
				hit = true
				break
			}
			for _, skill := range skillsLower {
				if strings.Contains(skill, kw) {
					hit = true
					break
				}
			}
			if hit {
				break
			}
		}
		flags[flag.Name] = hit
	}
	return flags
}

// extractExcerpts 为带摘录的标志抽取支撑原文
// 优先取工作经历的描述与职责条目，没有命中再回退原始文本分句
func (a *RoleAnalyzer) extractExcerpts(resume *types.NormalizedResume) map[string]string {
	excerpts := make(map[string]string)
	for _, flag := range a.profile.Flags {
		if !flag.WithExcerpt {
			continue
		}
		key := excerptKey(flag.Name)

		var hits []string
		collect := func(text string) {
			text = strings.TrimSpace(text)
			if text == "" || len(hits) >= maxExcerptHits {
				return
			}
			if containsAnyKeyword(strings.ToLower(text), flag.Keywords) {
				hits = append(hits, text)
			}
		}

		for _, work := range resume.WorkExperience {
			collect(work.Description)
			for _, resp := range work.Responsibilities {
				collect(resp)
			}
		}
		if len(hits) == 0 {
			for _, sentence := range splitSentences(resume.RawText) {
				collect(sentence)
			}
		}

		if len(hits) == 0 {
			excerpts[key] = fmt.Sprintf("No specific %s experience identified.", excerptTopic(key))
			continue
		}
		joined := strings.Join(hits, "; ")
		if len(joined) > maxExcerptLen {
			joined = joined[:maxExcerptLen] + "..."
		}
		excerpts[key] = joined
	}
	return excerpts
}

func containsAnyKeyword(lowerText string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowerText, kw) {
			return true
		}
	}
	return false
}

// containsWholeWord 整词匹配，词两侧不能紧贴字母或数字
// 词内的 "#"、"+"、"." 等符号原样参与匹配，照顾 C#、C++、Node.js
func containsWholeWord(text, word string) bool {
	if word == "" {
		return false
	}
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		beforeOK := idx == 0 || !isWordChar(text[idx-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func splitSentences(text string) []string {
	var sentences []string
	for _, chunk := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n' || r == '•'
	}) {
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			sentences = append(sentences, chunk)
		}
	}
	return sentences
}

// excerptKey "has_database_experience" -> "database_experience"
func excerptKey(flagName string) string {
	return strings.TrimPrefix(flagName, "has_")
}

// excerptTopic "database_experience" -> "database"
func excerptTopic(key string) string {
	return strings.ReplaceAll(strings.TrimSuffix(key, "_experience"), "_", " ")
}

// excerptLabel "cloud_experience" -> "Cloud Experience"
func excerptLabel(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
