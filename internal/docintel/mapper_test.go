package docintel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-agent-go/internal/types"
)

func structuredResult() *AnalyzeResult {
	return &AnalyzeResult{
		Content: "Jane Doe\njane@example.com\nBackend Engineer at Initech",
		Documents: []AnalyzedDocument{
			{
				DocType:    "resume",
				Confidence: 0.92,
				Fields: map[string]Field{
					"name":  {Type: "string", ValueString: "Jane Doe", Confidence: 0.95},
					"email": {Type: "string", ValueString: "jane@example.com", Confidence: 0.99},
					"phone": {Type: "string", ValueString: "+1 555 010 2000"},
					"skills": {
						Type:       "array",
						Confidence: 0.8,
						ValueArray: []Field{
							{ValueString: "Go", Confidence: 0.9},
							{ValueString: "PostgreSQL", Confidence: 0.85},
							{ValueString: "go"}, // 大小写重复，应被去重
						},
					},
					"work_experience": {
						Type: "array",
						ValueArray: []Field{
							{
								ValueObject: map[string]Field{
									"company":    {ValueString: "Initech"},
									"job_title":  {ValueString: "Backend Engineer"},
									"start_date": {ValueString: "Jan 2020"},
									"end_date":   {ValueString: "Present"},
									"responsibilities": {
										ValueArray: []Field{
											{ValueString: "Built billing APIs"},
											{ValueString: "  "},
										},
									},
								},
							},
							{ValueObject: map[string]Field{}}, // 全空条目，应被丢弃
						},
					},
					"education": {
						Type: "array",
						ValueArray: []Field{
							{
								ValueObject: map[string]Field{
									"institution": {ValueString: "State University"},
									"degree":      {ValueString: "BSc"},
									"gpa":         {ValueString: "3.7"},
								},
							},
						},
					},
				},
			},
		},
		Pages: []Page{
			{PageNumber: 1, Lines: []Line{{Content: "Jane Doe"}, {Content: "Backend Engineer"}}},
			{PageNumber: 2, Lines: []Line{{Content: "   "}}},
			{PageNumber: 3, Lines: []Line{{Content: "Education"}}},
		},
		Paragraphs: []Paragraph{
			{Role: "title", Content: "Jane Doe"},
			{Role: "sectionHeading", Content: "Experience"},
			{Content: "Backend Engineer at Initech"},
			{Role: "pageNumber", Content: "1"},
			{Role: "sectionHeading", Content: "Education"},
			{Content: "BSc, State University"},
		},
	}
}

func TestMapStructured(t *testing.T) {
	resume := MapStructured(structuredResult())

	assert.Equal(t, types.ExtractionStructured, resume.Metadata.Method)
	assert.InDelta(t, 0.92, resume.Metadata.Confidence, 0.001)
	assert.Equal(t, "Jane Doe", resume.ContactInfo["name"])
	assert.Equal(t, "jane@example.com", resume.ContactInfo["email"])
	assert.Equal(t, "+1 555 010 2000", resume.ContactInfo["phone"])
	assert.Equal(t, "", resume.ContactInfo["linkedin"], "缺失字段保持空串")

	require.Len(t, resume.Skills, 2, "大小写重复的技能应被去重")
	assert.Equal(t, "Go", resume.Skills[0].Name)
	assert.InDelta(t, 0.9, resume.Skills[0].Confidence, 0.001)

	require.Len(t, resume.WorkExperience, 1)
	work := resume.WorkExperience[0]
	assert.Equal(t, "Initech", work.Company)
	assert.Equal(t, "Present", work.EndDate)
	assert.Equal(t, []string{"Built billing APIs"}, work.Responsibilities)

	require.Len(t, resume.Education, 1)
	assert.Equal(t, "State University", resume.Education[0].Institution)
	assert.Equal(t, "3.7", resume.Education[0].GPA)

	assert.True(t, resume.HasUsableText())
}

func TestReadModelTextSkipsEmptyPages(t *testing.T) {
	text := ReadModelText(structuredResult())
	assert.Equal(t, "Jane Doe\nBackend Engineer\n\nEducation", text)
}

func TestLayoutTextBuildsSections(t *testing.T) {
	text, sections := LayoutText(structuredResult())

	assert.Contains(t, text, "Backend Engineer at Initech")
	assert.NotContains(t, text, "\n1\n", "页码段落不进入正文")

	require.Len(t, sections, 2)
	assert.Equal(t, "Experience", sections[0].Heading)
	assert.Equal(t, "Backend Engineer at Initech", sections[0].Body)
	assert.Equal(t, "Education", sections[1].Heading)
}

func TestMapStructuredNilResult(t *testing.T) {
	resume := MapStructured(nil)
	assert.False(t, resume.HasUsableText())
	assert.Len(t, resume.ContactInfo, 5)
}
