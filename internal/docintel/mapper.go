package docintel

import (
	"strings"

	"cv-agent-go/internal/logger"
	"cv-agent-go/internal/types"
)

// 结构化文档中约定的字段名
const (
	fieldName           = "name"
	fieldEmail          = "email"
	fieldPhone          = "phone"
	fieldLinkedIn       = "linkedin"
	fieldLocation       = "location"
	fieldSkills         = "skills"
	fieldWorkExperience = "work_experience"
	fieldEducation      = "education"
)

// HasStructuredFields 判断结果是否携带可用的结构化字段
func HasStructuredFields(result *AnalyzeResult) bool {
	return result != nil && len(result.Documents) > 0 && len(result.Documents[0].Fields) > 0
}

// HasParagraphs 判断结果是否携带布局段落
func HasParagraphs(result *AnalyzeResult) bool {
	return result != nil && len(result.Paragraphs) > 0
}

// HasPages 判断结果是否携带逐页OCR文本
func HasPages(result *AnalyzeResult) bool {
	return result != nil && len(result.Pages) > 0
}

// MapStructured 把结构化字段映射为规范化简历
// 原始文本优先取整体content，为空时调用方应降级到read结果
func MapStructured(result *AnalyzeResult) *types.NormalizedResume {
	resume := types.NewNormalizedResume(types.ExtractionStructured)
	if result == nil {
		return resume
	}

	resume.RawText = result.Content

	if len(result.Documents) == 0 {
		return resume
	}
	doc := result.Documents[0]
	resume.Metadata.Confidence = doc.Confidence

	for _, key := range types.ContactKeys {
		if field, ok := doc.Fields[key]; ok {
			resume.ContactInfo[key] = strings.TrimSpace(field.Text())
		}
	}

	if skills, ok := doc.Fields[fieldSkills]; ok {
		for _, item := range skills.ValueArray {
			name := strings.TrimSpace(item.Text())
			if name == "" {
				continue
			}
			confidence := item.Confidence
			if confidence <= 0 {
				confidence = skills.Confidence
			}
			resume.AddSkill(name, confidence)
		}
	}

	if work, ok := doc.Fields[fieldWorkExperience]; ok {
		for _, item := range work.ValueArray {
			entry := mapWorkEntry(item.ValueObject)
			if entry.Company == "" && entry.JobTitle == "" && entry.Description == "" {
				continue
			}
			resume.WorkExperience = append(resume.WorkExperience, entry)
		}
	}

	if edu, ok := doc.Fields[fieldEducation]; ok {
		for _, item := range edu.ValueArray {
			entry := mapEducationEntry(item.ValueObject)
			if entry.Institution == "" && entry.Degree == "" {
				continue
			}
			resume.Education = append(resume.Education, entry)
		}
	}

	return resume
}

func mapWorkEntry(fields map[string]Field) types.WorkExperience {
	entry := types.WorkExperience{
		Company:          fieldText(fields, "company"),
		JobTitle:         fieldText(fields, "job_title"),
		Location:         fieldText(fields, "location"),
		StartDate:        fieldText(fields, "start_date"),
		EndDate:          fieldText(fields, "end_date"),
		Description:      fieldText(fields, "description"),
		Responsibilities: []string{},
	}
	if resp, ok := fields["responsibilities"]; ok {
		for _, item := range resp.ValueArray {
			if text := strings.TrimSpace(item.Text()); text != "" {
				entry.Responsibilities = append(entry.Responsibilities, text)
			}
		}
	}
	return entry
}

func mapEducationEntry(fields map[string]Field) types.Education {
	return types.Education{
		Institution:  fieldText(fields, "institution"),
		Degree:       fieldText(fields, "degree"),
		FieldOfStudy: fieldText(fields, "field_of_study"),
		StartDate:    fieldText(fields, "start_date"),
		EndDate:      fieldText(fields, "end_date"),
		GPA:          fieldText(fields, "gpa"),
	}
}

func fieldText(fields map[string]Field, key string) string {
	if field, ok := fields[key]; ok {
		return strings.TrimSpace(field.Text())
	}
	return ""
}

// ReadModelText 从OCR逐页结果拼接文本，页间以空行分隔
// 空页记一条非致命日志后跳过
func ReadModelText(result *AnalyzeResult) string {
	if result == nil {
		return ""
	}
	var pages []string
	for _, page := range result.Pages {
		var lines []string
		for _, line := range page.Lines {
			if text := strings.TrimSpace(line.Content); text != "" {
				lines = append(lines, text)
			}
		}
		if len(lines) == 0 {
			logger.Debug().Int("page_number", page.PageNumber).Msg("OCR结果中该页无文本")
			continue
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return strings.Join(pages, "\n\n")
}

// LayoutText 从布局段落拼接文本，并把标题段落转为章节
func LayoutText(result *AnalyzeResult) (string, []types.Section) {
	if result == nil {
		return "", nil
	}

	var builder strings.Builder
	var sections []types.Section
	var currentHeading string
	var currentBody []string

	flush := func() {
		if currentHeading != "" && len(currentBody) > 0 {
			sections = append(sections, types.Section{
				Heading: currentHeading,
				Body:    strings.Join(currentBody, "\n"),
			})
		}
		currentBody = nil
	}

	for _, para := range result.Paragraphs {
		content := strings.TrimSpace(para.Content)
		if content == "" {
			continue
		}
		// 页码等装饰性段落不进入正文
		if para.Role == "pageNumber" || para.Role == "pageHeader" || para.Role == "pageFooter" {
			continue
		}

		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(content)

		if para.Role == "sectionHeading" || para.Role == "title" {
			flush()
			currentHeading = content
		} else if currentHeading != "" {
			currentBody = append(currentBody, content)
		}
	}
	flush()

	return builder.String(), sections
}
