package analyzer

import (
	"fmt"
	"strings"

	"cv-agent-go/internal/types"
)

const entrySeparator = "----------------------------------------"

// formatSkills 技能按逗号拼接，空表返回占位文案
func formatSkills(skills []types.Skill) string {
	if len(skills) == 0 {
		return "Not specified"
	}
	names := make([]string, len(skills))
	for i, s := range skills {
		names[i] = s.Name
	}
	return strings.Join(names, ", ")
}

// formatWorkExperience 逐段格式化工作经历，段间用分隔线
func formatWorkExperience(entries []types.WorkExperience) string {
	if len(entries) == 0 {
		return "Not specified"
	}
	var b strings.Builder
	for i, entry := range entries {
		title := valueOr(entry.JobTitle, "Unknown position")
		company := valueOr(entry.Company, "Unknown company")
		fmt.Fprintf(&b, "Position %d: %s at %s\n", i+1, title, company)
		if entry.StartDate != "" || entry.EndDate != "" {
			fmt.Fprintf(&b, "Duration: %s - %s\n",
				valueOr(entry.StartDate, "?"), valueOr(entry.EndDate, "Present"))
		}
		if entry.Location != "" {
			fmt.Fprintf(&b, "Location: %s\n", entry.Location)
		}
		if entry.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", entry.Description)
		}
		if len(entry.Responsibilities) > 0 {
			b.WriteString("Responsibilities:\n")
			for _, resp := range entry.Responsibilities {
				fmt.Fprintf(&b, "- %s\n", resp)
			}
		}
		if i < len(entries)-1 {
			b.WriteString(entrySeparator)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatEducation 逐段格式化教育经历
func formatEducation(entries []types.Education) string {
	if len(entries) == 0 {
		return "Not specified"
	}
	var b strings.Builder
	for i, entry := range entries {
		degree := valueOr(entry.Degree, "Degree not specified")
		if entry.FieldOfStudy != "" {
			degree = degree + " in " + entry.FieldOfStudy
		}
		fmt.Fprintf(&b, "%s, %s", degree, valueOr(entry.Institution, "Institution not specified"))
		if entry.EndDate != "" {
			fmt.Fprintf(&b, " (%s)", entry.EndDate)
		}
		if entry.GPA != "" {
			fmt.Fprintf(&b, ", GPA: %s", entry.GPA)
		}
		if i < len(entries)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
