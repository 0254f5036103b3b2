package services

import (
	"context"
	"testing"
	"time"

	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/cache"
	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/chunker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMarkdown = "# Guide\n\nThis is the introduction paragraph with enough text to matter.\n\n## Install\n\nRun the installer and follow the prompts to finish setup.\n\n## Usage\n\nCall the library from your code and check the results carefully.\n"

func newTestChunkService(t *testing.T) *ChunkService {
	memCache, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err, "Failed to create memory cache")

	return NewChunkService(WithChunkCache(memCache, time.Minute))
}

// TestChunkService_ChunkMarkdown 测试基本分块流程
func TestChunkService_ChunkMarkdown(t *testing.T) {
	svc := newTestChunkService(t)
	ctx := context.Background()

	result, err := svc.ChunkMarkdown(ctx, sampleMarkdown, ChunkOptions{})
	require.NoError(t, err, "Chunking should succeed")
	require.NotNil(t, result)

	assert.NotEmpty(t, result.Chunks, "Chunks should not be empty")
	assert.NotEmpty(t, result.StrategyUsed, "A strategy should be selected")
	assert.Equal(t, len(sampleMarkdown), result.TotalChars, "Total chars should match input")

	t.Logf("strategy=%s chunks=%d", result.StrategyUsed, len(result.Chunks))
}

// TestChunkService_CacheHit 测试相同输入命中缓存
func TestChunkService_CacheHit(t *testing.T) {
	svc := newTestChunkService(t)
	ctx := context.Background()

	first, err := svc.ChunkMarkdown(ctx, sampleMarkdown, ChunkOptions{})
	require.NoError(t, err)

	second, err := svc.ChunkMarkdown(ctx, sampleMarkdown, ChunkOptions{})
	require.NoError(t, err)

	assert.Equal(t, first.StrategyUsed, second.StrategyUsed, "Cached result should match")
	assert.Equal(t, len(first.Chunks), len(second.Chunks), "Cached chunk count should match")
}

// TestChunkService_ResolveConfig 测试配置解析优先级
func TestChunkService_ResolveConfig(t *testing.T) {
	svc := NewChunkService()

	// 默认配置
	cfg, err := svc.ResolveConfig(ChunkOptions{})
	require.NoError(t, err)
	assert.Equal(t, chunker.DefaultChunkConfig().MaxChunkSize, cfg.MaxChunkSize)

	// 预设配置
	cfg, err = svc.ResolveConfig(ChunkOptions{Preset: "code-heavy"})
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 未知预设报错
	_, err = svc.ResolveConfig(ChunkOptions{Preset: "no-such-preset"})
	assert.Error(t, err, "Unknown preset should fail")

	// 显式配置优先于预设
	override := chunker.DefaultChunkConfig()
	override.MaxChunkSize = 512
	cfg, err = svc.ResolveConfig(ChunkOptions{Preset: "code-heavy", Config: override})
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.MaxChunkSize)

	// 非法配置被拒绝
	bad := chunker.DefaultChunkConfig()
	bad.MaxChunkSize = -1
	_, err = svc.ResolveConfig(ChunkOptions{Config: bad})
	assert.Error(t, err, "Invalid config should fail validation")
}

// TestChunkService_StrategyOverride 测试策略覆盖
func TestChunkService_StrategyOverride(t *testing.T) {
	svc := newTestChunkService(t)
	ctx := context.Background()

	result, err := svc.ChunkMarkdown(ctx, sampleMarkdown, ChunkOptions{Strategy: "sentence"})
	require.NoError(t, err)
	assert.Equal(t, "sentence", result.StrategyUsed, "Override strategy should be used")
}

// TestChunkService_Hierarchical 测试层级分块
func TestChunkService_Hierarchical(t *testing.T) {
	svc := newTestChunkService(t)
	ctx := context.Background()

	result, err := svc.ChunkHierarchical(ctx, sampleMarkdown, ChunkOptions{})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.RootID, "Hierarchy should have a root")
	require.NotEmpty(t, result.Chunks)

	// 根块存在且标记正确
	foundRoot := false
	for _, ch := range result.Chunks {
		if ch.Metadata.ChunkID == result.RootID {
			foundRoot = true
			assert.True(t, ch.Metadata.IsRoot, "Root chunk should be flagged")
		}
	}
	assert.True(t, foundRoot, "Root chunk should be present in chunk list")
}

// TestChunkService_Presets 测试预设列表
func TestChunkService_Presets(t *testing.T) {
	svc := NewChunkService()

	presets := svc.Presets()
	assert.NotEmpty(t, presets, "Preset list should not be empty")
	assert.Contains(t, presets, "rag", "rag preset should be available")
}

// TestChunkService_CancelledContext 测试取消的上下文
func TestChunkService_CancelledContext(t *testing.T) {
	svc := NewChunkService()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ChunkMarkdown(ctx, sampleMarkdown, ChunkOptions{})
	assert.ErrorIs(t, err, context.Canceled, "Cancelled context should abort chunking")
}
