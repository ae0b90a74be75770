package analyzer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-agent-go/internal/types"
)

func backendResume() *types.NormalizedResume {
	resume := types.NewNormalizedResume(types.ExtractionStructured)
	resume.ContactInfo["name"] = "Jane Doe"
	resume.ContactInfo["email"] = "jane@example.com"
	resume.AddSkill("Python", 0.9)
	resume.AddSkill("PostgreSQL", 0.9)
	resume.AddSkill("Docker", 0.8)
	resume.WorkExperience = []types.WorkExperience{
		{
			Company:   "Acme Corp",
			JobTitle:  "Backend Engineer",
			StartDate: "2019-03",
			EndDate:   "2023-06",
			Description: "Designed REST APIs and optimized PostgreSQL queries " +
				"for a high-traffic billing platform.",
			Responsibilities: []string{
				"Built gRPC microservices handling 10k rps",
				"Introduced Redis caching for hot paths",
			},
		},
	}
	resume.Education = []types.Education{
		{Institution: "State University", Degree: "BSc", FieldOfStudy: "Computer Science", EndDate: "2018"},
	}
	resume.RawText = "Jane Doe. Backend Engineer with Python and Django experience. " +
		"Designed REST APIs, optimized PostgreSQL, deployed with Docker on AWS."
	return resume
}

func TestNormalizeLevel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"junior", "junior"},
		{"Entry", "junior"},
		{"beginner", "junior"},
		{"associate", "junior"},
		{"mid", "mid"},
		{"Middle", "mid"},
		{"intermediate", "mid"},
		{"senior", "senior"},
		{"Lead", "senior"},
		{"expert", "senior"},
		{"principal", "senior"},
		{"", "mid"},
		{"wizard", "mid"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeLevel(tc.in), "input %q", tc.in)
	}
}

func TestLoadRoleRequirementsPerLevel(t *testing.T) {
	junior := NewRoleAnalyzer(BackendProfile(), "junior").LoadRoleRequirements()
	senior := NewRoleAnalyzer(BackendProfile(), "senior").LoadRoleRequirements()

	assert.Contains(t, junior.CoreSkills, "SQL Fundamentals")
	assert.Contains(t, senior.CoreSkills, "System Architecture")
	assert.NotEqual(t, junior.CoreSkills, senior.CoreSkills)
}

// 三个家族的响应JSON模板必须结构一致，仅类目名不同
func TestSystemPromptSchemaStableAcrossProfiles(t *testing.T) {
	skeleton := func(profile RoleProfile) []string {
		prompt := NewRoleAnalyzer(profile, "mid").SystemPrompt()
		start := strings.Index(prompt, "You MUST respond")
		require.GreaterOrEqual(t, start, 0)
		var lines []string
		for _, line := range strings.Split(prompt[start:], "\n") {
			if strings.Contains(line, `"name": "`) {
				lines = append(lines, "<category>")
				continue
			}
			lines = append(lines, line)
		}
		return lines
	}

	backend := skeleton(BackendProfile())
	frontend := skeleton(FrontendProfile())
	devops := skeleton(DevOpsProfile())

	assert.Equal(t, backend, frontend)
	assert.Equal(t, backend, devops)
}

func TestSystemPromptContainsCategories(t *testing.T) {
	prompt := NewRoleAnalyzer(DevOpsProfile(), "senior").SystemPrompt()

	for _, name := range []string{
		"Infrastructure & Cloud",
		"CI/CD & Deployment",
		"Containerization & Orchestration",
		"Automation & Scripting",
		"Monitoring & Observability",
	} {
		assert.Contains(t, prompt, name)
	}
	assert.Contains(t, prompt, `"overall_score"`)
	assert.Contains(t, prompt, `"keyword_analysis"`)
	assert.Contains(t, prompt, `"matrix_alignment"`)
	assert.Contains(t, prompt, "senior DevOps Engineer")
}

func TestUserPromptEmbedsResume(t *testing.T) {
	a := NewRoleAnalyzer(BackendProfile(), "mid")
	prompt := a.UserPrompt(backendResume())

	assert.Contains(t, prompt, "Analyze this resume for a MID Backend Developer position.")
	assert.Contains(t, prompt, "Name: Jane Doe")
	assert.Contains(t, prompt, "Email: jane@example.com")
	assert.Contains(t, prompt, "Core Skills:")
	assert.Contains(t, prompt, "Position 1: Backend Engineer at Acme Corp")
	assert.Contains(t, prompt, "- Built gRPC microservices handling 10k rps")
	assert.Contains(t, prompt, "BSc in Computer Science, State University (2018)")
	assert.NotContains(t, prompt, truncationMarker)
}

func TestUserPromptTruncatesRawText(t *testing.T) {
	a := NewRoleAnalyzer(BackendProfile(), "mid", WithRawTextCap(120))
	resume := backendResume()
	resume.RawText = strings.Repeat("backend systems design ", 20)

	prompt := a.UserPrompt(resume)

	assert.Contains(t, prompt, truncationMarker)
	assert.Contains(t, prompt, resume.RawText[:120])
	assert.NotContains(t, prompt, resume.RawText)
}

// 截断点落在多字节字符中间时必须回退到rune边界，不能产出非法UTF-8
func TestUserPromptTruncationKeepsRuneBoundary(t *testing.T) {
	a := NewRoleAnalyzer(BackendProfile(), "mid", WithRawTextCap(100))
	resume := backendResume()
	// "后端" 每个字符占3字节，任意字节上限都必然切在某个字符中间
	resume.RawText = strings.Repeat("后端", 200)

	prompt := a.UserPrompt(resume)

	assert.True(t, utf8.ValidString(prompt))
	assert.Contains(t, prompt, truncationMarker)
}

func TestCreateAnalysisPayloadBucketsTechnologies(t *testing.T) {
	a := NewRoleAnalyzer(BackendProfile(), "junior")
	payload := a.CreateAnalysisPayload(backendResume())

	assert.Equal(t, "Jane Doe", payload.Candidate.Name)
	assert.Equal(t, "Backend Developer", payload.Role.Title)
	assert.Equal(t, "junior", payload.Role.Level)

	assert.Contains(t, payload.Skills.RelevantTechnologies, "Python")
	assert.Contains(t, payload.Skills.RelevantTechnologies, "PostgreSQL")
	assert.Contains(t, payload.Skills.Categorized["databases"], "PostgreSQL")
	assert.Contains(t, payload.Skills.Categorized["programming_languages"], "Python")
}

func TestMissingCoreSkillsSlashAlternation(t *testing.T) {
	a := NewRoleAnalyzer(BackendProfile(), "junior")
	payload := a.CreateAnalysisPayload(backendResume())

	// "Python/JavaScript/Java/.NET" 命中Python即满足
	assert.NotContains(t, payload.Skills.MissingCoreSkills, "Python/JavaScript/Java/.NET")
	// 简历中没有任何认证授权相关内容
	assert.Contains(t, payload.Skills.MissingCoreSkills, "Basic Authentication")
}

func TestExperienceFlagsAndExcerpts(t *testing.T) {
	resume := types.NewNormalizedResume(types.ExtractionStructured)
	resume.WorkExperience = []types.WorkExperience{
		{
			Company:     "CloudOps Ltd",
			JobTitle:    "DevOps Engineer",
			Description: "Built CI/CD pipelines with Jenkins and deployed workloads to AWS.",
		},
	}
	resume.RawText = "Built CI/CD pipelines with Jenkins and deployed workloads to AWS."

	a := NewRoleAnalyzer(DevOpsProfile(), "mid")
	payload := a.CreateAnalysisPayload(resume)

	assert.True(t, payload.Experience.Flags["has_cicd_experience"])
	assert.True(t, payload.Experience.Flags["has_cloud_experience"])
	assert.False(t, payload.Experience.Flags["has_container_experience"])

	assert.Contains(t, payload.Experience.Excerpts["cicd_experience"], "Jenkins")
	assert.Contains(t, payload.Experience.Excerpts["cloud_experience"], "AWS")
	assert.Equal(t, "No specific container experience identified.",
		payload.Experience.Excerpts["container_experience"])
}

// "Django" 不应整词命中 "Go"
func TestExtractTechnologiesWholeWordMatching(t *testing.T) {
	resume := types.NewNormalizedResume(types.ExtractionStructured)
	resume.RawText = "Shipped Django applications in production."

	a := NewRoleAnalyzer(BackendProfile(), "mid")
	techs := a.extractTechnologies(resume)

	assert.Contains(t, techs, "Django")
	assert.NotContains(t, techs, "Go")
}

func TestFormatHelpersEmptyInputs(t *testing.T) {
	assert.Equal(t, "Not specified", formatSkills(nil))
	assert.Equal(t, "Not specified", formatWorkExperience(nil))
	assert.Equal(t, "Not specified", formatEducation(nil))
}
