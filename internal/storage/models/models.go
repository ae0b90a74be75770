package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// AnalysisRecord 简历分析任务主表
// 一行对应一次上传，贯穿取回、提取、分析到模型结论的完整生命周期
type AnalysisRecord struct {
	AnalysisID       string         `gorm:"type:char(36);primaryKey"`
	Status           string         `gorm:"type:varchar(50);not null;default:'processing';index:idx_ar_status"`
	Progress         float64        `gorm:"type:float;default:0"`
	CandidateName    string         `gorm:"type:varchar(255)"`
	CandidateEmail   string         `gorm:"type:varchar(255);index:idx_ar_candidate_email"`
	RoleTitle        string         `gorm:"type:varchar(255)"`
	RoleLevel        string         `gorm:"type:varchar(50)"`
	OriginalFilename string         `gorm:"type:varchar(255)"`
	ObjectKey        string         `gorm:"type:varchar(1024)"`
	SourceURL        string         `gorm:"type:varchar(1024)"`
	FileMD5          string         `gorm:"type:char(32);index:idx_ar_file_md5"`
	ExtractionMethod string         `gorm:"type:varchar(50)"`
	PayloadJSON      datatypes.JSON `gorm:"type:json"`
	ResultJSON       datatypes.JSON `gorm:"type:json"`
	ErrorMessage     string         `gorm:"type:text"`
	CreatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
	CompletedAt      *time.Time     `gorm:"type:datetime(6)"`
}

func (AnalysisRecord) TableName() string {
	return "analysis_records"
}

// MapToJSON 把map转为datatypes.JSON列值
func MapToJSON(m map[string]interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// StringToJSON 把JSON字符串原样作为列值
func StringToJSON(s string) datatypes.JSON {
	return datatypes.JSON(s)
}
