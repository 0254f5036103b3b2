package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// HierarchyBuilder 层级构建器
// 把最终的分块序列组织为可导航的树：ID、父子链接、兄弟链、广度优先深度
type HierarchyBuilder struct{}

// NewHierarchyBuilder 创建层级构建器
func NewHierarchyBuilder() *HierarchyBuilder {
	return &HierarchyBuilder{}
}

// chunkID 由内容和下标生成确定性的短ID
func chunkID(content string, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", index, content)))
	return hex.EncodeToString(sum[:6])
}

// Build 构建分块层级树
// 合成一个根“document”块，摘要取自前导区；
// 父节点按section path的严格前缀匹配解析，孤儿块挂到根下
func (h *HierarchyBuilder) Build(chunks []*Chunk, text string) (*HierarchyResult, error) {
	text = normalizeLineEndings(text)

	if len(chunks) == 0 {
		return &HierarchyResult{Chunks: []*Chunk{}}, nil
	}

	// 分配确定性ID
	for i, c := range chunks {
		c.Metadata.ChunkID = chunkID(c.Content, i)
	}

	root := h.makeRoot(chunks, text)
	all := append([]*Chunk{root}, chunks...)

	// 解析父节点：最近的前驱块中section path是本块严格前缀的那个
	for i, c := range chunks {
		parentID := root.Metadata.ChunkID
		for j := i - 1; j >= 0; j-- {
			if isStrictPrefix(chunks[j].Metadata.SectionPath, c.Metadata.SectionPath) {
				parentID = chunks[j].Metadata.ChunkID
				break
			}
		}
		c.Metadata.ParentID = parentID
	}

	// 按父节点分组构建兄弟链，组内按start_line排序
	byID := make(map[string]*Chunk, len(all))
	for _, c := range all {
		byID[c.Metadata.ChunkID] = c
	}
	children := make(map[string][]*Chunk)
	for _, c := range chunks {
		children[c.Metadata.ParentID] = append(children[c.Metadata.ParentID], c)
	}
	for parentID, group := range children {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].StartLine < group[j].StartLine
		})
		ids := make([]string, len(group))
		for i, c := range group {
			ids[i] = c.Metadata.ChunkID
			if i > 0 {
				c.Metadata.PrevSiblingID = group[i-1].Metadata.ChunkID
				group[i-1].Metadata.NextSiblingID = c.Metadata.ChunkID
			}
		}
		if parent, ok := byID[parentID]; ok {
			parent.Metadata.ChildrenIDs = ids
		}
	}

	// 广度优先遍历赋层级：根为0
	// 层级是树深度而非标题级别，标题级别可以跳跃
	level := 0
	queue := []*Chunk{root}
	for len(queue) > 0 {
		var next []*Chunk
		for _, c := range queue {
			c.Metadata.HierarchyLevel = level
			c.Metadata.IsLeaf = len(c.Metadata.ChildrenIDs) == 0
			for _, id := range c.Metadata.ChildrenIDs {
				if child, ok := byID[id]; ok {
					next = append(next, child)
				}
			}
		}
		queue = next
		level++
	}

	if err := h.validate(all, byID); err != nil {
		return nil, err
	}

	return &HierarchyResult{
		Chunks: all,
		RootID: root.Metadata.ChunkID,
	}, nil
}

// makeRoot 合成根document块
// 摘要取自前导区的纯文本形式，避免与子块内容重复
func (h *HierarchyBuilder) makeRoot(chunks []*Chunk, text string) *Chunk {
	endLine := 1
	for _, c := range chunks {
		if c.EndLine > endLine {
			endLine = c.EndLine
		}
	}

	// 前导区由解析器的元素树界定，围栏内的"#"行不会被当作标题截断摘要
	summary := ""
	if pre := NewAnalyzer().detectPreamble(NewParser().Parse(text)); pre != nil {
		summary = markdownToPlain(pre.Content)
	}
	summary = truncateRunes(summary, 200)
	if strings.TrimSpace(summary) == "" {
		summary = fmt.Sprintf("Document with %d chunks", len(chunks))
	}

	root := &Chunk{
		Content:   summary,
		StartLine: 1,
		EndLine:   endLine,
		Metadata: ChunkMetadata{
			Strategy:       chunks[0].Metadata.Strategy,
			ContentType:    chunks[0].Metadata.ContentType,
			ChunkIndex:     -1,
			IsRoot:         true,
			HierarchyLevel: 0,
		},
	}
	root.Metadata.ChunkID = chunkID(summary, -1)
	return root
}

// validate 校验层级结构
// 子节点数与实际链接一致，每条兄弟链无环且完整
func (h *HierarchyBuilder) validate(all []*Chunk, byID map[string]*Chunk) error {
	for _, c := range all {
		// 沿next指针走完整条兄弟链，步数超过总数即有环
		seen := 0
		cur := c
		for cur.Metadata.NextSiblingID != "" {
			next, ok := byID[cur.Metadata.NextSiblingID]
			if !ok {
				return fmt.Errorf("hierarchy: dangling sibling link %s", cur.Metadata.NextSiblingID)
			}
			cur = next
			seen++
			if seen > len(all) {
				return fmt.Errorf("hierarchy: sibling chain cycle detected at %s", c.Metadata.ChunkID)
			}
		}
		// 子节点的parent_id必须指回本节点
		for _, id := range c.Metadata.ChildrenIDs {
			child, ok := byID[id]
			if !ok {
				return fmt.Errorf("hierarchy: dangling child link %s", id)
			}
			if child.Metadata.ParentID != c.Metadata.ChunkID {
				return fmt.Errorf("hierarchy: child %s does not link back to parent %s", id, c.Metadata.ChunkID)
			}
		}
	}
	return nil
}

// isStrictPrefix 判断a是否为b的严格前缀
func isStrictPrefix(a, b []string) bool {
	if len(a) >= len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
