package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cv-agent-go/internal/types"
)

// 经验年限估算：结构化工作经历优先，失败时逐级退回文本启发式

var (
	fourDigitYearRe = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	monthAbbrRe     = regexp.MustCompile(`(?i)\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\b`)
	presentRe       = regexp.MustCompile(`(?i)\b(Present|Current|Now)\b`)

	// "5 years of experience" / "5+ years experience"
	explicitYearsRe = regexp.MustCompile(`(?i)\b(\d{1,2}(?:\.\d)?)\s*\+?\s*years?(?:\s+of)?\s+experience\b`)

	// 任意位置的年份区间，用于无结构化经历时的求和
	textYearSpanRe = regexp.MustCompile(`(?i)\b((?:19|20)\d{2})\s*[-–—]\s*((?:19|20)\d{2}|Present|Current|Now)\b`)
)

var monthIndex = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// YearsOfExperience 按工作经历累加月跨度，月数除以12保留1位小数
// 解析不出年份的条目直接跳过，不计零宽度也不扣分
func YearsOfExperience(entries []types.WorkExperience) float64 {
	return YearsOfExperienceAt(entries, time.Now())
}

// YearsOfExperienceAt 同YearsOfExperience，注入当前时间便于测试
func YearsOfExperienceAt(entries []types.WorkExperience, now time.Time) float64 {
	totalMonths := 0
	for _, entry := range entries {
		start, ok := parseDateToMonths(entry.StartDate, now)
		if !ok {
			continue
		}
		end, ok := parseDateToMonths(entry.EndDate, now)
		if !ok {
			continue
		}
		if end > start {
			totalMonths += end - start
		}
	}
	return roundOneDecimal(float64(totalMonths) / 12.0)
}

// parseDateToMonths 把日期串折算成绝对月数（年*12+月）
// "Present/Current/Now"按now解析；月份缺失时按1月计
func parseDateToMonths(dateStr string, now time.Time) (int, bool) {
	if strings.TrimSpace(dateStr) == "" {
		return 0, false
	}
	if presentRe.MatchString(dateStr) {
		return now.Year()*12 + int(now.Month()), true
	}

	ym := fourDigitYearRe.FindStringSubmatch(dateStr)
	if ym == nil {
		return 0, false
	}
	year, err := strconv.Atoi(ym[1])
	if err != nil {
		return 0, false
	}

	month := 1
	if mm := monthAbbrRe.FindStringSubmatch(dateStr); mm != nil {
		if idx, ok := monthIndex[strings.ToLower(mm[1])]; ok {
			month = idx
		}
	}
	return year*12 + month, true
}

// EstimateLevelFromYears 年限到层级：<2 junior，<5 mid，其余 senior
func EstimateLevelFromYears(years float64) string {
	switch {
	case years < 2:
		return "junior"
	case years < 5:
		return "mid"
	default:
		return "senior"
	}
}

// EstimateYearsFromText 无结构化经历时的文本估算
// 1. 显式的"N years of experience"表述
// 2. 全文年份区间求和
// 3. 文本长度与词汇的粗略推断
func EstimateYearsFromText(text string) float64 {
	return EstimateYearsFromTextAt(text, time.Now())
}

// EstimateYearsFromTextAt 同EstimateYearsFromText，注入当前时间便于测试
func EstimateYearsFromTextAt(text string, now time.Time) float64 {
	if m := explicitYearsRe.FindStringSubmatch(text); m != nil {
		if years, err := strconv.ParseFloat(m[1], 64); err == nil {
			return roundOneDecimal(years)
		}
	}

	totalMonths := 0
	for _, m := range textYearSpanRe.FindAllStringSubmatch(text, -1) {
		start, ok := parseDateToMonths(m[1], now)
		if !ok {
			continue
		}
		end, ok := parseDateToMonths(m[2], now)
		if !ok {
			continue
		}
		if end > start {
			totalMonths += end - start
		}
	}
	if totalMonths > 0 {
		return roundOneDecimal(float64(totalMonths) / 12.0)
	}

	return roughYearsGuess(text)
}

// roughYearsGuess 最后一档的粗略推断：教育词汇密集的短文本按应届，
// 很长的文本按资深，其余按中级
func roughYearsGuess(text string) float64 {
	lower := strings.ToLower(text)
	educationMentions := strings.Count(lower, "education") +
		strings.Count(lower, "university") +
		strings.Count(lower, "degree") +
		strings.Count(lower, "gpa")

	switch {
	case len(text) < 1500 && educationMentions >= 2:
		return 1.0
	case len(text) > 6000:
		return 6.0
	default:
		return 3.0
	}
}

func roundOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
