package chunker

import "errors"

// 分块器错误分类
// 可恢复的问题以结果中的warnings/errors形式返回，只有配置错误会同步拒绝
var (
	// ErrInvalidConfig 非法配置，自动修正无法解决
	ErrInvalidConfig = errors.New("invalid chunk config")
	// ErrChunkingFailed 所有策略（含降级）均失败
	ErrChunkingFailed = errors.New("chunking failed")
	// ErrEmptyStrategyResult 策略对非空输入返回了空结果
	ErrEmptyStrategyResult = errors.New("strategy produced no chunks for non-empty input")
	// ErrUnknownStrategy 指定的策略名称不存在
	ErrUnknownStrategy = errors.New("unknown strategy")
)
