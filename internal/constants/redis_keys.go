package constants

// Redis Key 前缀和格式常量
// 统一命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// AnalysisModulePrefix 分析模块
	AnalysisModulePrefix = "analysis"

	// EntityStatus 状态镜像实体
	EntityStatus = "status"

	// KeyAnalysisStatus 分析状态镜像 (JSON字符串: status, progress, error)
	// 格式: app:analysis:status:{analysisID}
	KeyAnalysisStatus = AppPrefix + ":" + AnalysisModulePrefix + ":" + EntityStatus + ":%s"
)
