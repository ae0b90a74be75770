package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"cv-agent-go/internal/config"
	"cv-agent-go/internal/constants"
)

// ErrNotFound 键不存在，包装redis.Nil以便上层用errors.Is判断
var ErrNotFound = redis.Nil

// AnalysisStatusSnapshot Redis中缓存的状态镜像
// MySQL是权威来源，这里只是状态查询的快速路径
type AnalysisStatusSnapshot struct {
	AnalysisID string    `json:"analysis_id"`
	Status     string    `json:"status"`
	Progress   float64   `json:"progress"`
	Error      string    `json:"error,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Redis 封装go-redis客户端
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端连接
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// OpenTelemetry钩子，记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查连接可用性
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// statusKey 构建状态镜像的键
func statusKey(analysisID string) string {
	return fmt.Sprintf(constants.KeyAnalysisStatus, analysisID)
}

// SetAnalysisStatus 写入状态镜像并刷新其有效期
func (r *Redis) SetAnalysisStatus(ctx context.Context, snapshot *AnalysisStatusSnapshot) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	if snapshot == nil || snapshot.AnalysisID == "" {
		return fmt.Errorf("状态快照或分析ID不能为空")
	}

	snapshot.UpdatedAt = time.Now()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("序列化状态快照失败: %w", err)
	}

	return r.Client.Set(ctx, statusKey(snapshot.AnalysisID), data, constants.StatusCacheTTL).Err()
}

// GetAnalysisStatus 读取状态镜像，未命中返回ErrNotFound
func (r *Redis) GetAnalysisStatus(ctx context.Context, analysisID string) (*AnalysisStatusSnapshot, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("redis client is not initialized")
	}

	data, err := r.Client.Get(ctx, statusKey(analysisID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("读取状态快照失败: %w", err)
	}

	var snapshot AnalysisStatusSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("反序列化状态快照失败: %w", err)
	}
	return &snapshot, nil
}

// DeleteAnalysisStatus 删除状态镜像
func (r *Redis) DeleteAnalysisStatus(ctx context.Context, analysisID string) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Del(ctx, statusKey(analysisID)).Err()
}
