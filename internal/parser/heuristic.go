package parser

import (
	"regexp"
	"strings"

	"cv-agent-go/internal/types"
)

// 启发式解析全部基于纯文本和固定词表，只做尽力而为的抽取
// 约定：任何函数都不返回错误，抽不到就返回空结构

// FullTextHeading 没有任何标题命中时，整份文本归入该章节
const FullTextHeading = "Full Text"

// heuristicSkillConfidence 启发式阶段没有OCR置信度，统一使用固定值
const heuristicSkillConfidence = 0.9

var (
	emailRe    = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe    = regexp.MustCompile(`(?:\+\d{1,3}[\s.\-]?)?(?:\(\d{2,4}\)[\s.\-]?|\d{2,4}[\s.\-])?\d{3,4}[\s.\-]?\d{3,4}`)
	linkedinRe = regexp.MustCompile(`(?i)linkedin\.com/in/[A-Za-z0-9\-_%]+`)

	// 日期区间："Jan 2019 - Present"、"2019-2021"、"March 2020 to Now"
	dateRangeRe = regexp.MustCompile(`(?i)((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{4}|\d{4})\s*(?:-|–|—|to)\s*((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{4}|\d{4}|Present|Current|Now)`)

	// 学位及可选的专业方向
	degreeRe = regexp.MustCompile(`(?i)\b(Bachelor(?:'s)?|Master(?:'s)?|Ph\.?D\.?|Doctorate|B\.?Sc?\.?|M\.?Sc?\.?|B\.?A\.?|M\.?B\.?A\.?|B\.?E\.?|M\.?Tech\.?)\b(?:\s+(?:of|in)\s+([A-Za-z][A-Za-z &]{2,40}))?`)

	yearRangeRe = regexp.MustCompile(`(?i)\b((?:19|20)\d{2})\s*(?:[-–—]\s*((?:19|20)\d{2}|Present|Current))?\b`)

	gpaRe = regexp.MustCompile(`(?i)GPA[:\s]*([0-4]\.\d{1,2})`)
)

// skillVocabulary 技能词表，按出现顺序匹配，大小写不敏感，整词命中
var skillVocabulary = []string{
	// 语言
	"Python", "Java", "JavaScript", "TypeScript", "Go", "Golang", "C#", "C++",
	"Ruby", "PHP", "Swift", "Kotlin", "Rust", "Scala",
	// 前端
	"React", "Angular", "Vue", "Next.js", "Svelte", "HTML", "CSS", "Sass",
	"Redux", "Webpack", "jQuery", "Bootstrap", "Tailwind",
	// 后端
	"Node.js", "Django", "Flask", "FastAPI", "Spring Boot", "Spring", "Express",
	"Rails", "Laravel", ".NET", "ASP.NET", "GraphQL", "REST",
	// 云与DevOps
	"AWS", "Azure", "GCP", "Docker", "Kubernetes", "Terraform", "Ansible",
	"Jenkins", "GitLab CI", "GitHub Actions", "CircleCI", "Prometheus",
	"Grafana", "Linux", "Bash", "CI/CD", "Nginx", "Helm",
	// 数据库
	"MySQL", "PostgreSQL", "MongoDB", "Redis", "Elasticsearch", "Cassandra",
	"DynamoDB", "SQLite", "Oracle", "SQL",
	// 其他
	"Git", "Kafka", "RabbitMQ", "gRPC", "Microservices", "Agile", "Scrum",
}

// canonicalHeadings 章节标题词表，行首匹配，可带冒号
var canonicalHeadings = []string{
	"work experience", "professional experience", "employment history",
	"experience", "education", "technical skills", "skills", "projects",
	"certifications", "certificates", "summary", "objective", "profile",
	"awards", "publications", "languages", "interests", "references",
}

// titleIndicators 职位标题指示词
var titleIndicators = []string{
	"senior", "junior", "lead", "principal", "staff", "engineer", "developer",
	"architect", "manager", "analyst", "consultant", "director",
	"administrator", "specialist", "intern", "devops", "sre",
}

// institutionKeywords 教育机构关键词
var institutionKeywords = []string{
	"university", "college", "institute", "school", "academy", "polytechnic",
}

// ParseContactInfo 从原始文本抽取联系方式
// 五个约定键始终存在，抽不到时值为空串
func ParseContactInfo(text string) map[string]string {
	contact := make(map[string]string, len(types.ContactKeys))
	for _, k := range types.ContactKeys {
		contact[k] = ""
	}

	if m := emailRe.FindString(text); m != "" {
		contact["email"] = m
	}
	if m := findPhone(text); m != "" {
		contact["phone"] = m
	}
	if m := linkedinRe.FindString(text); m != "" {
		contact["linkedin"] = m
	}
	contact["name"] = guessName(text)

	return contact
}

// yearSpanLikeRe 形如"2019-2021"的年份区间，电话匹配需要排除
var yearSpanLikeRe = regexp.MustCompile(`^\s*(?:19|20)\d{2}\s*[-–—.]?\s*(?:19|20)\d{2}\s*$`)

// findPhone 电话匹配要求7到15位数字，避免把年份区间当成号码
func findPhone(text string) string {
	for _, m := range phoneRe.FindAllString(text, 10) {
		if yearSpanLikeRe.MatchString(m) {
			continue
		}
		digits := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= 7 && digits <= 15 {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

// guessName 名字启发：前100个字符内第一条2到40字符、
// 且不含 @ / : http 的短行
func guessName(text string) string {
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		if offset > 100 {
			break
		}
		offset += len(line) + 1

		candidate := strings.TrimSpace(line)
		if len(candidate) < 2 || len(candidate) > 40 {
			continue
		}
		if strings.ContainsAny(candidate, "@/:") || strings.Contains(strings.ToLower(candidate), "http") {
			continue
		}
		return candidate
	}
	return ""
}

// ParseSkills 按词表整词匹配技能，大小写不敏感，先到先得不重复
func ParseSkills(text string) []types.Skill {
	lower := strings.ToLower(text)
	var skills []types.Skill
	seen := make(map[string]bool)

	for _, keyword := range skillVocabulary {
		key := strings.ToLower(keyword)
		if seen[key] {
			continue
		}
		if containsWholeWord(lower, key) {
			skills = append(skills, types.Skill{Name: keyword, Confidence: heuristicSkillConfidence})
			seen[key] = true
		}
	}
	return skills
}

// containsWholeWord 整词包含判断：命中位置前后都不能是字母或数字
// 词表中带符号的条目（C++、.NET、Node.js）也适用
func containsWholeWord(lowerText, lowerWord string) bool {
	start := 0
	for {
		idx := strings.Index(lowerText[start:], lowerWord)
		if idx == -1 {
			return false
		}
		idx += start

		beforeOK := idx == 0 || !isAlnum(lowerText[idx-1])
		afterIdx := idx + len(lowerWord)
		afterOK := afterIdx >= len(lowerText) || !isAlnum(lowerText[afterIdx])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// ParseSections 按标题词表切分章节
// 标题行 = 行内容（去掉可选冒号后）与词表条目相等；一个标题的正文
// 延伸到下一个标题或文本结尾。零命中时整份文本归入 FullTextHeading
func ParseSections(text string) []types.Section {
	lines := strings.Split(text, "\n")

	type headingPos struct {
		lineIdx int
		heading string
	}
	var positions []headingPos

	for i, line := range lines {
		if h, ok := matchHeading(line); ok {
			positions = append(positions, headingPos{lineIdx: i, heading: h})
		}
	}

	if len(positions) == 0 {
		return []types.Section{{Heading: FullTextHeading, Body: text}}
	}

	var sections []types.Section
	for i, pos := range positions {
		endLine := len(lines)
		if i+1 < len(positions) {
			endLine = positions[i+1].lineIdx
		}
		body := strings.TrimSpace(strings.Join(lines[pos.lineIdx+1:endLine], "\n"))
		sections = append(sections, types.Section{Heading: pos.heading, Body: body})
	}
	return sections
}

// matchHeading 判断一行是否是章节标题，返回原始标题文本
func matchHeading(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	candidate := strings.TrimSuffix(trimmed, ":")
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", false
	}
	lower := strings.ToLower(candidate)
	for _, h := range canonicalHeadings {
		if lower == h {
			return candidate, true
		}
	}
	return "", false
}

// ParseWorkExperience 基于日期区间锚点抽取工作经历
// 优先限定在经历章节内扫描；锚点周围的有限窗口内寻找职位与公司；
// 标题或公司、起始日期或描述都缺失的噪声命中直接丢弃
func ParseWorkExperience(text string, sections []types.Section) []types.WorkExperience {
	searchText := text
	for _, s := range sections {
		lower := strings.ToLower(s.Heading)
		if strings.Contains(lower, "experience") && !strings.Contains(lower, "education") && s.Body != "" {
			searchText = s.Body
			break
		}
	}

	lines := strings.Split(searchText, "\n")
	var entries []types.WorkExperience

	for i, line := range lines {
		m := dateRangeRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		startDate, endDate := m[1], m[2]

		title, company := findTitleAndCompany(lines, i)
		description := collectDescription(lines, i)

		// 丢弃规则：信号不足不猜测
		if title == "" && company == "" {
			continue
		}
		if startDate == "" && description == "" {
			continue
		}

		entries = append(entries, types.WorkExperience{
			Company:          company,
			JobTitle:         title,
			StartDate:        startDate,
			EndDate:          endDate,
			Description:      description,
			Responsibilities: []string{},
		})
	}
	return entries
}

// findTitleAndCompany 在日期行前后至多3行内找职位与公司
// 距离日期行近的优先
func findTitleAndCompany(lines []string, dateIdx int) (title, company string) {
	candidateIdxs := []int{dateIdx}
	for offset := 1; offset <= 3; offset++ {
		if dateIdx-offset >= 0 {
			candidateIdxs = append(candidateIdxs, dateIdx-offset)
		}
		if dateIdx+offset < len(lines) {
			candidateIdxs = append(candidateIdxs, dateIdx+offset)
		}
	}

	for _, idx := range candidateIdxs {
		line := strings.TrimSpace(lines[idx])
		if idx == dateIdx {
			// 日期行本身也可能携带职位，剥掉日期部分再看
			line = strings.TrimSpace(dateRangeRe.ReplaceAllString(line, ""))
		}
		if line == "" || len(line) > 120 {
			continue
		}
		if !containsTitleIndicator(line) {
			continue
		}

		t, c := splitTitleLine(line)
		if t != "" || c != "" {
			return t, c
		}
	}
	return "", ""
}

// containsTitleIndicator 是否包含职位指示词
func containsTitleIndicator(line string) bool {
	lower := strings.ToLower(line)
	for _, ind := range titleIndicators {
		if containsWholeWord(lower, ind) {
			return true
		}
	}
	return false
}

// splitTitleLine 按常见分隔符把一行拆成职位和公司
// "Senior Engineer at Acme Corp" / "Engineer | Acme" / "Engineer - Acme"
func splitTitleLine(line string) (title, company string) {
	for _, sep := range []string{" at ", " with ", " | ", " - ", ", "} {
		if idx := strings.Index(line, sep); idx > 0 {
			return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+len(sep):])
		}
	}
	return strings.TrimSpace(line), ""
}

// collectDescription 收集日期行之后的描述，至多4行或300个字符，
// 遇到空行或下一个日期锚点即停止
func collectDescription(lines []string, dateIdx int) string {
	var parts []string
	total := 0
	for i := dateIdx + 1; i < len(lines) && i <= dateIdx+4; i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || dateRangeRe.MatchString(line) {
			break
		}
		parts = append(parts, line)
		total += len(line)
		if total > 300 {
			break
		}
	}
	return strings.Join(parts, " ")
}

// ParseEducation 基于学位模式抽取教育经历
func ParseEducation(text string) []types.Education {
	lines := strings.Split(text, "\n")
	var entries []types.Education

	for i, line := range lines {
		m := degreeRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		entry := types.Education{
			Degree:       strings.TrimSpace(m[1]),
			FieldOfStudy: strings.TrimSpace(m[2]),
		}

		// 学位行前后2行内找机构名
		for offset := 0; offset <= 2 && entry.Institution == ""; offset++ {
			for _, idx := range []int{i - offset, i + offset} {
				if idx < 0 || idx >= len(lines) {
					continue
				}
				candidate := strings.TrimSpace(lines[idx])
				if candidate == "" || len(candidate) > 120 {
					continue
				}
				lower := strings.ToLower(candidate)
				for _, kw := range institutionKeywords {
					if strings.Contains(lower, kw) {
						entry.Institution = candidate
						break
					}
				}
				if entry.Institution != "" {
					break
				}
			}
		}

		// 学位行前2行到后3行内找年份区间和GPA
		windowStart := max(0, i-2)
		windowEnd := min(len(lines), i+4)
		window := strings.Join(lines[windowStart:windowEnd], "\n")
		if ym := yearRangeRe.FindStringSubmatch(window); ym != nil {
			entry.StartDate = ym[1]
			entry.EndDate = ym[2]
		}
		if gm := gpaRe.FindStringSubmatch(window); gm != nil {
			entry.GPA = gm[1]
		}

		entries = append(entries, entry)
	}
	return entries
}

// EnrichResume 用启发式结果回填规范化简历中缺失的字段
// 已有的结构化字段不覆盖
func EnrichResume(resume *types.NormalizedResume) {
	if resume == nil || strings.TrimSpace(resume.RawText) == "" {
		return
	}
	text := resume.RawText

	if resume.ContactInfo == nil {
		resume.ContactInfo = make(map[string]string, len(types.ContactKeys))
	}
	heuristicContact := ParseContactInfo(text)
	for _, k := range types.ContactKeys {
		if resume.ContactInfo[k] == "" {
			resume.ContactInfo[k] = heuristicContact[k]
		}
	}

	if len(resume.Skills) == 0 {
		for _, s := range ParseSkills(text) {
			resume.AddSkill(s.Name, s.Confidence)
		}
	}

	if len(resume.Sections) == 0 {
		resume.Sections = ParseSections(text)
	}

	if len(resume.WorkExperience) == 0 {
		resume.WorkExperience = ParseWorkExperience(text, resume.Sections)
	}

	if len(resume.Education) == 0 {
		resume.Education = ParseEducation(text)
	}
}
