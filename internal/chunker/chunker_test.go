package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewChunker_Defaults 测试nil配置使用默认值且配置不共享
func TestNewChunker_Defaults(t *testing.T) {
	c, err := NewChunker(nil)
	require.NoError(t, err)

	cfg := c.Config()
	assert.Equal(t, 2000, cfg.MaxChunkSize)

	// 调用方拿到的是副本
	cfg.MaxChunkSize = 1
	assert.Equal(t, 2000, c.Config().MaxChunkSize)

	// 传入的配置同样被拷贝
	mine := DefaultChunkConfig()
	c, err = NewChunker(mine)
	require.NoError(t, err)
	mine.MaxChunkSize = 1
	assert.Equal(t, 2000, c.Config().MaxChunkSize)
}

// TestNewChunker_InvalidConfig 测试非法配置被同步拒绝
func TestNewChunker_InvalidConfig(t *testing.T) {
	cfg := DefaultChunkConfig()
	cfg.MaxChunkSize = -1

	_, err := NewChunker(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// TestChunker_EmptyInput 测试空输入返回警告而非错误
func TestChunker_EmptyInput(t *testing.T) {
	c, err := NewChunker(nil)
	require.NoError(t, err)

	for _, input := range []string{"", "   \n\t  \n"} {
		result, err := c.Chunk(input)
		require.NoError(t, err)
		assert.Empty(t, result.Chunks)
		assert.Contains(t, result.Warnings, "input text is empty")
		assert.Empty(t, result.Errors)
	}
}

// TestChunker_StructuredDocument 测试标题文档的完整流水线
func TestChunker_StructuredDocument(t *testing.T) {
	c, err := NewChunker(nil)
	require.NoError(t, err)

	result, err := c.Chunk(structuredDoc)
	require.NoError(t, err)
	require.NotEmpty(t, result.Chunks)

	assert.Equal(t, StrategyStructural, result.StrategyUsed)
	assert.False(t, result.FallbackUsed)
	assert.Empty(t, result.Errors, "A well-formed document should chunk without errors")
	assert.Equal(t, len(structuredDoc), result.TotalChars)
	assert.Equal(t, ContentTypePrimary, result.ContentType)

	for i, ch := range result.Chunks {
		assert.Equal(t, i, ch.Metadata.ChunkIndex)
		assert.GreaterOrEqual(t, ch.StartLine, 1)
		assert.GreaterOrEqual(t, ch.EndLine, ch.StartLine)
		assert.NotEmpty(t, strings.TrimSpace(ch.Content))
		if i > 0 {
			assert.Greater(t, ch.StartLine, result.Chunks[i-1].EndLine, "Chunks should be ordered and disjoint")
		}
		// 内容是输入的原样切片
		assert.Contains(t, structuredDoc, ch.Content)
	}

	// 结构化策略在标题边界截断，section id来自标题路径
	assert.Equal(t, "guide", result.Chunks[0].Metadata.SectionID)
	assert.Equal(t, "guide/install", result.Chunks[1].Metadata.SectionID)
}

// TestChunker_StrategyOverride 测试显式策略覆盖
func TestChunker_StrategyOverride(t *testing.T) {
	c, err := NewChunker(nil)
	require.NoError(t, err)

	// 未知策略同步报错
	_, err = c.ChunkWithStrategy(structuredDoc, "bogus")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	// 空策略名等价于自动选择
	result, err := c.ChunkWithStrategy(structuredDoc, "")
	require.NoError(t, err)
	assert.Equal(t, StrategyStructural, result.StrategyUsed)

	// 句子策略可以强制指定
	result, err = c.ChunkWithStrategy(structuredDoc, StrategySentence)
	require.NoError(t, err)
	assert.Equal(t, StrategySentence, result.StrategyUsed)
}

// TestChunker_ListStrategyExplicitOnly 测试列表策略只能显式使用
func TestChunker_ListStrategyExplicitOnly(t *testing.T) {
	items := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		items = append(items, fmt.Sprintf("- list item number %d with some supporting text", i))
	}
	doc := strings.Join(items, "\n") + "\n"

	c, err := NewChunker(nil)
	require.NoError(t, err)

	auto, err := c.Chunk(doc)
	require.NoError(t, err)
	assert.NotEqual(t, StrategyList, auto.StrategyUsed, "Auto selection must not pick the list strategy")

	forced, err := c.ChunkWithStrategy(doc, StrategyList)
	require.NoError(t, err)
	assert.Equal(t, StrategyList, forced.StrategyUsed)
	assert.NotEmpty(t, forced.Chunks)
}

// TestChunker_OversizeCodeBlock 测试原子代码块超限时整体保留并标记
func TestChunker_OversizeCodeBlock(t *testing.T) {
	cfg := DefaultChunkConfig()
	cfg.MaxChunkSize = 120
	cfg.MinChunkSize = 10
	cfg.TargetChunkSize = 60

	c, err := NewChunker(cfg)
	require.NoError(t, err)

	doc := "# Code\n\nshort intro\n\n```go\n" +
		strings.Repeat("callSomething(arg1, arg2)\n", 8) +
		"```\n"

	result, err := c.Chunk(doc)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)

	var oversize *Chunk
	for _, ch := range result.Chunks {
		if ch.Metadata.AllowOversize {
			oversize = ch
		}
	}
	require.NotNil(t, oversize, "The oversized code block should surface as a flagged chunk")
	assert.Equal(t, OversizeCodeBlock, oversize.Metadata.OversizeReason)
	assert.Equal(t, "go", oversize.Metadata.Language)
	assert.Greater(t, oversize.Size(), cfg.MaxChunkSize)
	assert.Contains(t, oversize.Content, "```go", "The fence must stay intact inside one chunk")
}

// TestChunker_OversizeToleranceGate 测试非原子块的超限容差判定
func TestChunker_OversizeToleranceGate(t *testing.T) {
	// 单行段落不会被句子策略拆分，长度168，上限100
	doc := strings.Repeat("words keep flowing here ", 7) + "\n"

	base := DefaultChunkConfig()
	base.MaxChunkSize = 100
	base.MinChunkSize = 10
	base.TargetChunkSize = 50

	// 容差内：允许超限并标记对齐原因
	tolerant := base.Clone()
	tolerant.OversizeTolerance = 0.7

	c, err := NewChunker(tolerant)
	require.NoError(t, err)
	result, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, result.Chunks, 1)
	assert.True(t, result.Chunks[0].Metadata.AllowOversize)
	assert.Equal(t, OversizeBlockAlignment, result.Chunks[0].Metadata.OversizeReason)
	for _, w := range result.Warnings {
		assert.NotContains(t, w, "exceeds max size")
	}

	// 超出容差：不打超限标记，校验器记录警告
	strict := base.Clone()
	strict.OversizeTolerance = 0.05

	c, err = NewChunker(strict)
	require.NoError(t, err)
	result, err = c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, result.Chunks, 1)
	assert.False(t, result.Chunks[0].Metadata.AllowOversize)
	assert.Empty(t, result.Chunks[0].Metadata.OversizeReason)

	warned := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "exceeds max size") {
			warned = true
		}
	}
	assert.True(t, warned, "An overflow beyond the tolerance must surface as a validation warning")
}

// TestChunker_TargetSizePacking 测试打包器在目标大小处截断
func TestChunker_TargetSizePacking(t *testing.T) {
	paras := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		paras = append(paras, fmt.Sprintf("paragraph %d ", i)+strings.Repeat("target sizing words ", 5))
	}
	doc := strings.Join(paras, "\n\n") + "\n"

	cfg := DefaultChunkConfig()
	cfg.MaxChunkSize = 2000
	cfg.MinChunkSize = 20
	cfg.TargetChunkSize = 150

	c, err := NewChunker(cfg)
	require.NoError(t, err)
	result, err := c.Chunk(doc)
	require.NoError(t, err)

	// 每块在跨过目标大小后的下一个块边界截断，远小于上限
	assert.GreaterOrEqual(t, len(result.Chunks), 4, "Packing should cut at the target size, not fill toward the max")
	for _, ch := range result.Chunks {
		assert.LessOrEqual(t, ch.Size(), 400)
	}

	// 目标等于上限时退化为按上限填充
	wide := cfg.Clone()
	wide.TargetChunkSize = 2000

	c, err = NewChunker(wide)
	require.NoError(t, err)
	single, err := c.Chunk(doc)
	require.NoError(t, err)
	assert.Len(t, single.Chunks, 1)
}

// TestChunker_Overlap 测试块间重叠的附加与标记
func TestChunker_Overlap(t *testing.T) {
	cfg := DefaultChunkConfig()
	cfg.MaxChunkSize = 200
	cfg.MinChunkSize = 20
	cfg.TargetChunkSize = 100
	cfg.EnableOverlap = true
	cfg.OverlapSize = 50
	cfg.OverlapPercentage = 0.5

	paras := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		paras = append(paras, fmt.Sprintf("paragraph %d ", i)+strings.Repeat("overlap words flow here ", 5))
	}
	doc := strings.Join(paras, "\n\n") + "\n"

	c, err := NewChunker(cfg)
	require.NoError(t, err)

	result, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Greater(t, len(result.Chunks), 1)

	first := result.Chunks[0]
	assert.False(t, first.Metadata.HasOverlap, "The first chunk never gets an overlap")

	second := result.Chunks[1]
	assert.True(t, second.Metadata.HasOverlap)
	assert.Equal(t, "previous_tail", second.Metadata.OverlapType)
	assert.Greater(t, second.Metadata.OverlapSize, 0)
	assert.True(t, strings.HasSuffix(second.Content, paras[1]), "Overlap is prepended, original content stays")
	assert.Empty(t, result.Errors)

	// 重叠默认关闭
	plain, err := NewChunker(nil)
	require.NoError(t, err)
	disabled, err := plain.Chunk(doc)
	require.NoError(t, err)
	for _, ch := range disabled.Chunks {
		assert.False(t, ch.Metadata.HasOverlap)
	}
}

// TestChunker_Hierarchical 测试层级分块的端到端结果
func TestChunker_Hierarchical(t *testing.T) {
	c, err := NewChunker(nil)
	require.NoError(t, err)

	result, err := c.ChunkHierarchical(structuredDoc)
	require.NoError(t, err)
	require.NotEmpty(t, result.Chunks)
	require.NotEmpty(t, result.RootID)

	byID := make(map[string]*Chunk, len(result.Chunks))
	for _, ch := range result.Chunks {
		require.NotEmpty(t, ch.Metadata.ChunkID)
		byID[ch.Metadata.ChunkID] = ch
	}

	root, ok := byID[result.RootID]
	require.True(t, ok, "Root chunk must be present")
	assert.True(t, root.Metadata.IsRoot)

	for _, ch := range result.Chunks {
		if ch.Metadata.IsRoot {
			continue
		}
		parent, ok := byID[ch.Metadata.ParentID]
		require.True(t, ok, "Every chunk needs a resolvable parent")
		assert.Contains(t, parent.Metadata.ChildrenIDs, ch.Metadata.ChunkID, "Parent must link back to child")
		assert.Equal(t, parent.Metadata.HierarchyLevel+1, ch.Metadata.HierarchyLevel)
	}
}

// TestChunker_CRLFInput 测试CRLF输入与LF输入产出一致
func TestChunker_CRLFInput(t *testing.T) {
	c, err := NewChunker(nil)
	require.NoError(t, err)

	lf, err := c.Chunk(structuredDoc)
	require.NoError(t, err)
	crlf, err := c.Chunk(strings.ReplaceAll(structuredDoc, "\n", "\r\n"))
	require.NoError(t, err)

	require.Len(t, crlf.Chunks, len(lf.Chunks))
	for i := range lf.Chunks {
		assert.Equal(t, lf.Chunks[i].Content, crlf.Chunks[i].Content)
		assert.Equal(t, lf.Chunks[i].StartLine, crlf.Chunks[i].StartLine)
	}
}

// TestChunker_UnclosedFenceWarning 测试未闭合围栏以警告形式上报
func TestChunker_UnclosedFenceWarning(t *testing.T) {
	c, err := NewChunker(nil)
	require.NoError(t, err)

	result, err := c.Chunk("# Doc\n\n```go\ncode without a closing fence\n")
	require.NoError(t, err)
	require.NotEmpty(t, result.Chunks)

	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "never closed") {
			found = true
		}
	}
	assert.True(t, found, "Parse diagnostics should surface as warnings")
	assert.Empty(t, result.Errors, "Malformed input still chunks without content loss")
}

// TestGetChunker_InstanceReuse 测试实例缓存按配置哈希复用
func TestGetChunker_InstanceReuse(t *testing.T) {
	a, err := GetChunker(DefaultChunkConfig())
	require.NoError(t, err)
	b, err := GetChunker(DefaultChunkConfig())
	require.NoError(t, err)
	assert.Same(t, a, b, "Equal configs should share one instance")

	other := DefaultChunkConfig()
	other.MaxChunkSize = 512
	d, err := GetChunker(other)
	require.NoError(t, err)
	assert.NotSame(t, a, d)

	bad := DefaultChunkConfig()
	bad.OverlapPercentage = 2.0
	_, err = GetChunker(bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
