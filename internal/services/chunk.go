package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/cache"
	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/chunker"
	"github.com/sirupsen/logrus"
)

// ChunkService Markdown分块服务
// 负责配置解析、结果缓存和分块器调用
type ChunkService struct {
	cache    cache.Cache    // 结果缓存，可为nil
	cacheTTL time.Duration  // 缓存过期时间
	logger   *logrus.Logger // 日志记录器
}

// ChunkServiceOption 分块服务配置选项
type ChunkServiceOption func(*ChunkService)

// WithChunkCache 设置结果缓存
func WithChunkCache(c cache.Cache, ttl time.Duration) ChunkServiceOption {
	return func(s *ChunkService) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithChunkLogger 设置日志记录器
func WithChunkLogger(logger *logrus.Logger) ChunkServiceOption {
	return func(s *ChunkService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewChunkService 创建分块服务
func NewChunkService(opts ...ChunkServiceOption) *ChunkService {
	srv := &ChunkService{
		cacheTTL: time.Hour,
		logger:   logrus.New(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// ChunkOptions 单次分块请求的选项
type ChunkOptions struct {
	Preset   string               // 预设配置名称，空表示默认配置
	Config   *chunker.ChunkConfig // 完整配置覆盖，优先于Preset
	Strategy string               // 策略覆盖，空表示自动选择
}

// ResolveConfig 解析请求级配置
// 优先级：显式配置 > 预设名称 > 默认配置
func (s *ChunkService) ResolveConfig(opts ChunkOptions) (*chunker.ChunkConfig, error) {
	if opts.Config != nil {
		cfg := opts.Config.Clone()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if opts.Preset != "" {
		cfg := chunker.PresetByName(opts.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s", opts.Preset)
		}
		return cfg, nil
	}

	return chunker.DefaultChunkConfig(), nil
}

// ChunkMarkdown 对Markdown文本执行分块
func (s *ChunkService) ChunkMarkdown(ctx context.Context, content string, opts ChunkOptions) (*chunker.ChunkingResult, error) {
	cfg, err := s.ResolveConfig(opts)
	if err != nil {
		return nil, err
	}

	// 先查缓存
	key := s.resultCacheKey(content, cfg, opts.Strategy)
	if cached, ok := s.lookupResult(key); ok {
		s.logger.WithField("cache_key", key).Debug("Chunk result cache hit")
		return cached, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c, err := chunker.GetChunker(cfg)
	if err != nil {
		return nil, err
	}

	var result *chunker.ChunkingResult
	if opts.Strategy != "" {
		result, err = c.ChunkWithStrategy(content, opts.Strategy)
	} else {
		result, err = c.Chunk(content)
	}
	if err != nil {
		return nil, err
	}

	s.storeResult(key, result)

	s.logger.WithFields(logrus.Fields{
		"strategy":    result.StrategyUsed,
		"chunk_count": len(result.Chunks),
		"total_chars": result.TotalChars,
	}).Debug("Markdown chunking completed")

	return result, nil
}

// ChunkHierarchical 对Markdown文本执行层级分块
func (s *ChunkService) ChunkHierarchical(ctx context.Context, content string, opts ChunkOptions) (*chunker.HierarchyResult, error) {
	cfg, err := s.ResolveConfig(opts)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c, err := chunker.GetChunker(cfg)
	if err != nil {
		return nil, err
	}

	return c.ChunkHierarchical(content)
}

// Presets 返回所有可用的预设配置名称
func (s *ChunkService) Presets() []string {
	return chunker.PresetNames()
}

// resultCacheKey 生成结果缓存键
func (s *ChunkService) resultCacheKey(content string, cfg *chunker.ChunkConfig, strategy string) string {
	sum := sha256.Sum256([]byte(content))
	contentHash := hex.EncodeToString(sum[:8])
	return cache.ChunkResultKey(contentHash, cfg.Hash(), strategy)
}

// lookupResult 从缓存读取分块结果
func (s *ChunkService) lookupResult(key string) (*chunker.ChunkingResult, bool) {
	if s.cache == nil {
		return nil, false
	}

	result, found, err := cache.GetChunkResult(s.cache, key)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read cached chunk result")
		return nil, false
	}
	return result, found
}

// storeResult 将分块结果写入缓存
func (s *ChunkService) storeResult(key string, result *chunker.ChunkingResult) {
	if s.cache == nil {
		return
	}

	if err := cache.SetChunkResult(s.cache, key, result, s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache chunk result")
	}
}
