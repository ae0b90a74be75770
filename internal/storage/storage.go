package storage

import (
	"fmt"

	"cv-agent-go/internal/config"
	"cv-agent-go/internal/logger"
)

// Storage 聚合所有外部存储依赖
type Storage struct {
	MySQL    *MySQL
	Redis    *Redis
	MinIO    *MinIO
	RabbitMQ *RabbitMQ
}

// NewStorage 按配置初始化全部存储组件
// 任一组件失败则整体失败，并关闭已建立的连接
func NewStorage(cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{}

	mysql, err := NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}
	s.MySQL = mysql

	redis, err := NewRedisAdapter(&cfg.Redis)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化Redis失败: %w", err)
	}
	s.Redis = redis

	minio, err := NewMinIO(&cfg.MinIO)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化MinIO失败: %w", err)
	}
	s.MinIO = minio

	rabbitmq, err := NewRabbitMQ(&cfg.RabbitMQ)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("初始化RabbitMQ失败: %w", err)
	}
	s.RabbitMQ = rabbitmq

	if err := rabbitmq.SetupAnalysisTopology(); err != nil {
		s.Close()
		return nil, fmt.Errorf("声明消息拓扑失败: %w", err)
	}

	logger.Info().Msg("所有存储组件初始化完成")
	return s, nil
}

// Close 关闭全部已建立的连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
}
