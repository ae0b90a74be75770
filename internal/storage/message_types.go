package storage

// AnalysisTaskMessage 投递到分析队列的任务消息
// 上传接口发布，处理流水线消费
type AnalysisTaskMessage struct {
	AnalysisID       string `json:"analysis_id"`
	ObjectKey        string `json:"object_key"`
	SourceURL        string `json:"source_url,omitempty"`
	OriginalFilename string `json:"original_filename"`
	CandidateName    string `json:"candidate_name,omitempty"`
	CandidateEmail   string `json:"candidate_email,omitempty"`
	RoleTitle        string `json:"role_title"`
	RoleLevel        string `json:"role_level"`
	SubmittedAt      int64  `json:"submitted_at"` // Unix秒
}
