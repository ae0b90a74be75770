package parser

import (
	"fmt"
	"strings"
	"testing"

	"cv-agent-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResumeText = `John Smith
Senior Backend Engineer
john.smith@example.com | +1 (555) 123-4567
linkedin.com/in/johnsmith

Summary
Backend engineer with a focus on distributed systems.

Work Experience
Senior Engineer at Acme Corp
Jan 2019 - Present
Led migration of the payment platform to Kubernetes.
Built REST and gRPC services in Go with PostgreSQL and Redis.

Software Developer at Initech
2015 - 2018
Maintained Django services on AWS.

Education
Bachelor of Computer Science
State University
2011 - 2015
GPA: 3.8

Skills
Go, Python, Docker, Kubernetes, PostgreSQL, Redis, AWS
`

// TestParseContactInfo 联系方式抽取：五个键始终存在
func TestParseContactInfo(t *testing.T) {
	contact := ParseContactInfo(sampleResumeText)

	for _, k := range types.ContactKeys {
		_, ok := contact[k]
		assert.True(t, ok, "缺少约定键 %s", k)
	}

	assert.Equal(t, "john.smith@example.com", contact["email"])
	assert.Contains(t, contact["phone"], "555")
	assert.Equal(t, "linkedin.com/in/johnsmith", contact["linkedin"])
	assert.Equal(t, "John Smith", contact["name"])
}

// TestGuessNameSkipsNoisyLines 含 @ / : http 的行不会被当成名字
func TestGuessNameSkipsNoisyLines(t *testing.T) {
	text := "https://example.com/profile\njane@example.com\nJane Doe\nEngineer"
	contact := ParseContactInfo(text)
	assert.Equal(t, "Jane Doe", contact["name"])
}

// TestParseSkillsNoDuplicates 技能按词表整词匹配且大小写不敏感去重
func TestParseSkillsNoDuplicates(t *testing.T) {
	text := "Expert in GO, go, Golang and python. Also PYTHON, docker and Dockerfile tooling."
	skills := ParseSkills(text)

	seen := make(map[string]bool)
	for _, s := range skills {
		lower := strings.ToLower(s.Name)
		assert.False(t, seen[lower], "技能重复: %s", s.Name)
		seen[lower] = true
		assert.Equal(t, heuristicSkillConfidence, s.Confidence)
	}

	assert.True(t, seen["go"])
	assert.True(t, seen["python"])
	assert.True(t, seen["docker"])
}

// TestContainsWholeWord 整词匹配：Java不命中JavaScript
func TestContainsWholeWord(t *testing.T) {
	assert.True(t, containsWholeWord("worked with java daily", "java"))
	assert.False(t, containsWholeWord("worked with javascript daily", "java"))
	assert.True(t, containsWholeWord("knows c++ well", "c++"))
	assert.False(t, containsWholeWord("c++11 features", "c++"))
}

// TestParseSections 标题词表切分章节
func TestParseSections(t *testing.T) {
	sections := ParseSections(sampleResumeText)

	headings := make([]string, 0, len(sections))
	for _, s := range sections {
		headings = append(headings, strings.ToLower(s.Heading))
	}

	assert.Contains(t, headings, "summary")
	assert.Contains(t, headings, "work experience")
	assert.Contains(t, headings, "education")
	assert.Contains(t, headings, "skills")

	// 经历章节的正文应包含条目内容
	for _, s := range sections {
		if strings.ToLower(s.Heading) == "work experience" {
			assert.Contains(t, s.Body, "Acme Corp")
		}
	}
}

// TestParseSectionsNoHeadings 零标题命中时整份文本归入Full Text
func TestParseSectionsNoHeadings(t *testing.T) {
	text := "just a plain paragraph with no recognizable headings at all"
	sections := ParseSections(text)

	require.Len(t, sections, 1)
	assert.Equal(t, FullTextHeading, sections[0].Heading)
	assert.Equal(t, text, sections[0].Body)
}

// TestParseSectionsIdempotence 用章节重建的文本再切分，标题集合不变
func TestParseSectionsIdempotence(t *testing.T) {
	sections := ParseSections(sampleResumeText)
	require.NotEmpty(t, sections)

	var sb strings.Builder
	for i, s := range sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("%s\n%s", s.Heading, s.Body))
	}

	again := ParseSections(sb.String())
	require.Len(t, again, len(sections))
	for i := range sections {
		assert.Equal(t, sections[i].Heading, again[i].Heading)
	}
}

// TestParseWorkExperienceScenario 日期锚点 + 职位行 → 完整条目
func TestParseWorkExperienceScenario(t *testing.T) {
	text := "Senior Engineer at Acme Corp\nJan 2019 - Present\nLed migration of the billing system."
	entries := ParseWorkExperience(text, nil)

	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Contains(t, entry.StartDate, "2019")
	assert.Regexp(t, "(?i)present|current|now", entry.EndDate)
	assert.NotEmpty(t, entry.JobTitle)
	assert.Equal(t, "Acme Corp", entry.Company)
	assert.NotEmpty(t, entry.Description)
}

// TestParseWorkExperienceDropRule 只有年份区间、无职位公司信号时不产出条目
func TestParseWorkExperienceDropRule(t *testing.T) {
	entries := ParseWorkExperience("2019-2021", nil)
	assert.Empty(t, entries)
}

// TestParseWorkExperiencePrefersExperienceSection 限定在经历章节内扫描
func TestParseWorkExperiencePrefersExperienceSection(t *testing.T) {
	sections := ParseSections(sampleResumeText)
	entries := ParseWorkExperience(sampleResumeText, sections)

	require.NotEmpty(t, entries)
	assert.Equal(t, "Acme Corp", entries[0].Company)
}

// TestParseEducation 学位、机构、年份与GPA
func TestParseEducation(t *testing.T) {
	entries := ParseEducation(sampleResumeText)

	require.NotEmpty(t, entries)
	entry := entries[0]
	assert.Contains(t, entry.Degree, "Bachelor")
	assert.Equal(t, "Computer Science", entry.FieldOfStudy)
	assert.Contains(t, entry.Institution, "University")
	assert.Equal(t, "2011", entry.StartDate)
	assert.Equal(t, "2015", entry.EndDate)
	assert.Equal(t, "3.8", entry.GPA)
}

// TestEnrichResumeBackfillsOnly 已有结构化字段不被启发式覆盖
func TestEnrichResumeBackfills(t *testing.T) {
	resume := types.NewNormalizedResume(types.ExtractionHeuristicFallback)
	resume.RawText = sampleResumeText
	resume.ContactInfo["email"] = "structured@example.com"

	EnrichResume(resume)

	assert.Equal(t, "structured@example.com", resume.ContactInfo["email"], "已有字段不应被覆盖")
	assert.NotEmpty(t, resume.Skills)
	assert.NotEmpty(t, resume.Sections)
	assert.NotEmpty(t, resume.WorkExperience)
	assert.NotEmpty(t, resume.Education)
}

// TestEnrichResumeNilContactMap 零值字面量构造的简历也能安全回填
func TestEnrichResumeNilContactMap(t *testing.T) {
	resume := &types.NormalizedResume{RawText: sampleResumeText}

	assert.NotPanics(t, func() { EnrichResume(resume) })
	assert.NotEmpty(t, resume.ContactInfo["email"])
}
