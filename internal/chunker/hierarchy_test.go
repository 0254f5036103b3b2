package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hierarchyDoc = "# Guide\nintro\n## Install\nsteps\n## Usage\nusage notes\n"

func hierarchyChunks(t *testing.T) []*Chunk {
	t.Helper()
	mk := func(content string, start, end int, path ...string) *Chunk {
		c, err := NewChunk(content, start, end, ChunkMetadata{SectionPath: path})
		require.NoError(t, err)
		return c
	}
	return []*Chunk{
		mk("# Guide\nintro", 1, 2, "Guide"),
		mk("## Install\nsteps", 3, 4, "Guide", "Install"),
		mk("## Usage\nusage notes", 5, 6, "Guide", "Usage"),
	}
}

// TestHierarchyBuilder_Build 测试层级树的链接结构
func TestHierarchyBuilder_Build(t *testing.T) {
	chunks := hierarchyChunks(t)

	result, err := NewHierarchyBuilder().Build(chunks, hierarchyDoc)
	require.NoError(t, err)
	require.Len(t, result.Chunks, 4, "Root plus three section chunks")
	require.NotEmpty(t, result.RootID)

	root := result.Chunks[0]
	assert.True(t, root.Metadata.IsRoot)
	assert.Equal(t, result.RootID, root.Metadata.ChunkID)
	assert.Equal(t, -1, root.Metadata.ChunkIndex)
	assert.Equal(t, 0, root.Metadata.HierarchyLevel)

	guide, install, usage := chunks[0], chunks[1], chunks[2]

	// 父链接：章节前缀决定归属，顶层章节挂到根
	assert.Equal(t, result.RootID, guide.Metadata.ParentID)
	assert.Equal(t, guide.Metadata.ChunkID, install.Metadata.ParentID)
	assert.Equal(t, guide.Metadata.ChunkID, usage.Metadata.ParentID)

	// 兄弟链按start_line排序
	assert.Equal(t, usage.Metadata.ChunkID, install.Metadata.NextSiblingID)
	assert.Equal(t, install.Metadata.ChunkID, usage.Metadata.PrevSiblingID)
	assert.Empty(t, install.Metadata.PrevSiblingID)

	// 层级是树深度
	assert.Equal(t, 1, guide.Metadata.HierarchyLevel)
	assert.Equal(t, 2, install.Metadata.HierarchyLevel)

	// 叶节点标记
	assert.False(t, guide.Metadata.IsLeaf)
	assert.True(t, install.Metadata.IsLeaf)
	assert.True(t, usage.Metadata.IsLeaf)

	// 根的子节点指回顶层章节
	assert.Equal(t, []string{guide.Metadata.ChunkID}, root.Metadata.ChildrenIDs)
}

// TestHierarchyBuilder_DeterministicIDs 测试相同输入产生相同ID
func TestHierarchyBuilder_DeterministicIDs(t *testing.T) {
	builder := NewHierarchyBuilder()

	first, err := builder.Build(hierarchyChunks(t), hierarchyDoc)
	require.NoError(t, err)
	second, err := builder.Build(hierarchyChunks(t), hierarchyDoc)
	require.NoError(t, err)

	require.Len(t, second.Chunks, len(first.Chunks))
	assert.Equal(t, first.RootID, second.RootID)
	for i := range first.Chunks {
		assert.Equal(t, first.Chunks[i].Metadata.ChunkID, second.Chunks[i].Metadata.ChunkID)
	}
}

// TestHierarchyBuilder_OrphanFallsToRoot 测试无前缀归属的块挂到根下
func TestHierarchyBuilder_OrphanFallsToRoot(t *testing.T) {
	orphan, err := NewChunk("standalone text", 1, 1, ChunkMetadata{SectionPath: []string{"Other", "Deep"}})
	require.NoError(t, err)

	result, err := NewHierarchyBuilder().Build([]*Chunk{orphan}, "standalone text\n")
	require.NoError(t, err)
	assert.Equal(t, result.RootID, orphan.Metadata.ParentID)
}

// TestHierarchyBuilder_RootSummaryFromPreamble 测试根摘要取自完整前导区
// 围栏代码里的"#"行不是标题，不应截断摘要
func TestHierarchyBuilder_RootSummaryFromPreamble(t *testing.T) {
	doc := "intro paragraph before any heading\n\n" +
		"```sh\n# shell comment\necho hi\n```\n\n" +
		"more intro after the fence\n\n" +
		"# Real Heading\n\nbody text under the heading\n"

	body, err := NewChunk("# Real Heading\n\nbody text under the heading", 10, 12, ChunkMetadata{SectionPath: []string{"Real Heading"}})
	require.NoError(t, err)

	result, err := NewHierarchyBuilder().Build([]*Chunk{body}, doc)
	require.NoError(t, err)

	root := result.Chunks[0]
	require.True(t, root.Metadata.IsRoot)
	assert.Contains(t, root.Content, "intro paragraph before any heading")
	assert.Contains(t, root.Content, "more intro after the fence")
}

// TestHierarchyBuilder_Empty 测试空分块序列
func TestHierarchyBuilder_Empty(t *testing.T) {
	result, err := NewHierarchyBuilder().Build(nil, "")
	require.NoError(t, err)
	assert.Empty(t, result.Chunks)
	assert.Empty(t, result.RootID)
}
