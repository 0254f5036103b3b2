package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SelectionMode 策略选择模式
type SelectionMode string

const (
	// SelectStrict 严格模式：按优先级找到第一个可用策略
	SelectStrict SelectionMode = "strict"
	// SelectWeighted 加权模式：所有可用策略评分后取最高分
	SelectWeighted SelectionMode = "weighted"
)

// ChunkConfig 分块器配置
// Validate会自动修正不一致的参数组合，只对越界标量返回错误
type ChunkConfig struct {
	MaxChunkSize    int `mapstructure:"max_chunk_size" json:"max_chunk_size"`       // 块大小上限（字符数）
	MinChunkSize    int `mapstructure:"min_chunk_size" json:"min_chunk_size"`       // 块大小下限
	TargetChunkSize int `mapstructure:"target_chunk_size" json:"target_chunk_size"` // 目标块大小

	EnableOverlap     bool    `mapstructure:"enable_overlap" json:"enable_overlap"`         // 是否启用块间重叠
	OverlapSize       int     `mapstructure:"overlap_size" json:"overlap_size"`             // 重叠大小上限（字符数）
	OverlapPercentage float64 `mapstructure:"overlap_percentage" json:"overlap_percentage"` // 重叠占块大小的比例上限

	// 各策略的适用阈值
	CodeRatioThreshold   float64 `mapstructure:"code_ratio_threshold" json:"code_ratio_threshold"`
	MinCodeBlocks        int     `mapstructure:"min_code_blocks" json:"min_code_blocks"`
	ListRatioThreshold   float64 `mapstructure:"list_ratio_threshold" json:"list_ratio_threshold"`
	MinListItems         int     `mapstructure:"min_list_items" json:"min_list_items"`
	TableRatioThreshold  float64 `mapstructure:"table_ratio_threshold" json:"table_ratio_threshold"`
	MinTables            int     `mapstructure:"min_tables" json:"min_tables"`
	HeaderCountThreshold int     `mapstructure:"header_count_threshold" json:"header_count_threshold"`
	MinComplexity        float64 `mapstructure:"min_complexity" json:"min_complexity"`

	PreserveAtomicBlocks bool          `mapstructure:"preserve_atomic_blocks" json:"preserve_atomic_blocks"` // 保护原子块不被拆分
	EnableFallback       bool          `mapstructure:"enable_fallback" json:"enable_fallback"`               // 启用策略降级
	MaxFallbackLevel     int           `mapstructure:"max_fallback_level" json:"max_fallback_level"`         // 最大降级层数
	OversizeTolerance    float64       `mapstructure:"oversize_tolerance" json:"oversize_tolerance"`         // 非原子块的超限容忍比例
	Mode                 SelectionMode `mapstructure:"selection_mode" json:"selection_mode"`                 // 策略选择模式
}

// DefaultChunkConfig 返回默认分块配置
func DefaultChunkConfig() *ChunkConfig {
	return &ChunkConfig{
		MaxChunkSize:         2000,
		MinChunkSize:         200,
		TargetChunkSize:      1000,
		EnableOverlap:        false,
		OverlapSize:          200,
		OverlapPercentage:    0.15,
		CodeRatioThreshold:   0.3,
		MinCodeBlocks:        1,
		ListRatioThreshold:   0.6,
		MinListItems:         5,
		TableRatioThreshold:  0.4,
		MinTables:            1,
		HeaderCountThreshold: 3,
		MinComplexity:        0.3,
		PreserveAtomicBlocks: true,
		EnableFallback:       true,
		MaxFallbackLevel:     3,
		OversizeTolerance:    0.05,
		Mode:                 SelectStrict,
	}
}

// Validate 校验并自动修正配置
// 不一致的参数对会被修正而非报错，越界标量返回ConfigurationError
func (c *ChunkConfig) Validate() error {
	if c.MaxChunkSize < 0 || c.MinChunkSize < 0 || c.TargetChunkSize < 0 {
		return fmt.Errorf("%w: chunk sizes must not be negative", ErrInvalidConfig)
	}
	if c.OverlapSize < 0 {
		return fmt.Errorf("%w: overlap size must not be negative", ErrInvalidConfig)
	}
	if c.OverlapPercentage < 0 || c.OverlapPercentage > 1 {
		return fmt.Errorf("%w: overlap percentage must be in [0,1]", ErrInvalidConfig)
	}
	if c.OversizeTolerance < 0 || c.OversizeTolerance > 1 {
		return fmt.Errorf("%w: oversize tolerance must be in [0,1]", ErrInvalidConfig)
	}
	for _, ratio := range []float64{c.CodeRatioThreshold, c.ListRatioThreshold, c.TableRatioThreshold, c.MinComplexity} {
		if ratio < 0 || ratio > 1 {
			return fmt.Errorf("%w: ratio thresholds must be in [0,1]", ErrInvalidConfig)
		}
	}

	// 自动修正不一致的组合
	defaults := DefaultChunkConfig()
	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = defaults.MaxChunkSize
	}
	if c.MinChunkSize > c.MaxChunkSize {
		c.MinChunkSize = c.MaxChunkSize / 10
	}
	if c.TargetChunkSize == 0 || c.TargetChunkSize > c.MaxChunkSize {
		c.TargetChunkSize = c.MaxChunkSize / 2
	}
	if c.TargetChunkSize < c.MinChunkSize {
		c.TargetChunkSize = c.MinChunkSize
	}
	if c.OverlapSize >= c.MaxChunkSize {
		c.OverlapSize = c.MaxChunkSize / 10
	}
	if c.MaxFallbackLevel <= 0 {
		c.MaxFallbackLevel = defaults.MaxFallbackLevel
	}
	if c.Mode != SelectStrict && c.Mode != SelectWeighted {
		c.Mode = SelectStrict
	}
	return nil
}

// Hash 计算配置的稳定哈希
// 用作分块器实例缓存的键，相同参数的重复调用可复用实例
func (c *ChunkConfig) Hash() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// Clone 返回配置的深拷贝
func (c *ChunkConfig) Clone() *ChunkConfig {
	clone := *c
	return &clone
}
