package analyzer

import (
	"strings"

	"cv-agent-go/internal/logger"
)

// GetRoleAnalyzer 按角色名子串选择画像并构建分析器
// 匹配顺序固定：frontend类 > backend类 > devops类，全部未命中回退后端画像
func GetRoleAnalyzer(roleTitle, level string, opts ...Option) *RoleAnalyzer {
	lower := strings.ToLower(roleTitle)
	switch {
	case containsAnyKeyword(lower, []string{"frontend", "front-end", "ui"}):
		return NewRoleAnalyzer(FrontendProfile(), level, opts...)
	case containsAnyKeyword(lower, []string{"backend", "back-end", "api"}):
		return NewRoleAnalyzer(BackendProfile(), level, opts...)
	case containsAnyKeyword(lower, []string{"devops", "sre", "platform"}):
		return NewRoleAnalyzer(DevOpsProfile(), level, opts...)
	default:
		logger.Warn().Str("role", roleTitle).Msg("未匹配到角色家族，使用默认后端画像")
		return NewRoleAnalyzer(BackendProfile(), level, opts...)
	}
}
