package chunker

import (
	"fmt"
	"io"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Chunker Markdown分块器
// 流水线：解析 → 分析 → 选择 → 打包 → 重叠 → （可选）层级
// 单文档内严格串行，多文档之间无共享可变状态，可安全并行
type Chunker struct {
	cfg       *ChunkConfig
	parser    *Parser
	analyzer  *Analyzer
	selector  *StrategySelector
	fallback  *fallbackManager
	hierarchy *HierarchyBuilder
	logger    *logrus.Logger
}

// Option 分块器的可选配置项
type Option func(*Chunker)

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Chunker) {
		c.logger = logger
	}
}

// NewChunker 创建分块器
// 配置在此同步校验，非法配置立即拒绝，流水线内不再抛出配置错误
func NewChunker(cfg *ChunkConfig, opts ...Option) (*Chunker, error) {
	if cfg == nil {
		cfg = DefaultChunkConfig()
	} else {
		cfg = cfg.Clone()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c := &Chunker{
		cfg:       cfg,
		parser:    NewParser(),
		analyzer:  NewAnalyzer(),
		selector:  NewStrategySelector(),
		hierarchy: NewHierarchyBuilder(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.fallback = newFallbackManager(c.selector, c.logger)
	return c, nil
}

// instanceCache 按配置哈希缓存的分块器实例
// 只为摊销重复调用的配置校验开销，对正确性没有影响
var instanceCache = gocache.New(30*time.Minute, 10*time.Minute)

// GetChunker 获取或创建指定配置的分块器实例
// 相同参数的重复调用复用缓存的实例
func GetChunker(cfg *ChunkConfig) (*Chunker, error) {
	if cfg == nil {
		cfg = DefaultChunkConfig()
	}
	key := cfg.Hash()
	if cached, found := instanceCache.Get(key); found {
		if c, ok := cached.(*Chunker); ok {
			return c, nil
		}
	}
	c, err := NewChunker(cfg)
	if err != nil {
		return nil, err
	}
	instanceCache.Set(key, c, gocache.DefaultExpiration)
	return c, nil
}

// Config 返回校验后的配置副本
func (c *Chunker) Config() *ChunkConfig {
	return c.cfg.Clone()
}

// Chunk 对文本执行完整的分块流水线
// 可恢复的问题记录在结果的errors/warnings中，结果总是尽力而为地返回
func (c *Chunker) Chunk(text string) (*ChunkingResult, error) {
	return c.chunk(text, "")
}

// ChunkWithStrategy 以显式指定的策略执行分块
// 这是使用受限的列表策略的唯一途径
func (c *Chunker) ChunkWithStrategy(text, strategy string) (*ChunkingResult, error) {
	if strategy != "" {
		if _, err := c.selector.ByName(strategy); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
		}
	}
	return c.chunk(text, strategy)
}

func (c *Chunker) chunk(text, override string) (*ChunkingResult, error) {
	start := time.Now()

	result := &ChunkingResult{
		Chunks:   []*Chunk{},
		Errors:   []string{},
		Warnings: []string{},
	}

	if strings.TrimSpace(text) == "" {
		result.Warnings = append(result.Warnings, "input text is empty")
		result.ProcessingTime = time.Since(start).Seconds()
		return result, nil
	}

	// 解析：换行规范化在解析器内最先发生
	parsed := c.parser.Parse(text)
	for _, d := range parsed.Diagnostics {
		result.Warnings = append(result.Warnings, fmt.Sprintf("parse: line %d: %s", d.Line, d.Message))
	}

	// 分析
	analysis := c.analyzer.Analyze(parsed)
	result.TotalChars = analysis.TotalChars
	result.TotalLines = analysis.TotalLines
	result.ContentType = analysis.ContentType
	result.ComplexityScore = analysis.ComplexityScore

	// 选择与打包（带降级重试）
	outcome, err := c.fallback.run(parsed, analysis, c.cfg, override)
	result.Warnings = append(result.Warnings, outcome.warnings...)
	if err != nil {
		// 所有策略均失败：结果携带错误返回而非抛出
		result.Errors = append(result.Errors, err.Error())
		result.ProcessingTime = time.Since(start).Seconds()
		return result, nil
	}
	result.StrategyUsed = outcome.strategy
	result.FallbackLevel = outcome.level
	result.FallbackUsed = outcome.level > 0

	chunks := outcome.chunks

	// 重叠后处理
	chunks = newOverlapManager(c.cfg, parsed.Spans).apply(chunks)

	// 最终校验：排序、完整性、大小、不变量
	warnings, errs := validateChunks(chunks, parsed, c.cfg)
	result.Warnings = append(result.Warnings, warnings...)
	result.Errors = append(result.Errors, errs...)

	result.Chunks = chunks
	result.ProcessingTime = time.Since(start).Seconds()

	c.logger.WithFields(logrus.Fields{
		"strategy":       result.StrategyUsed,
		"chunks":         len(chunks),
		"fallback_level": result.FallbackLevel,
		"content_type":   result.ContentType,
	}).Debug("Chunking completed")

	return result, nil
}

// ChunkHierarchical 执行分块并构建层级树
func (c *Chunker) ChunkHierarchical(text string) (*HierarchyResult, error) {
	result, err := c.Chunk(text)
	if err != nil {
		return nil, err
	}
	return c.hierarchy.Build(result.Chunks, text)
}
