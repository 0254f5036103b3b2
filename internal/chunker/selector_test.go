package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const structuredDoc = "# Guide\n\nintro text for the guide\n\n## Install\n\ninstall steps described here\n\n## Usage\n\nusage explained here\n\n### Advanced\n\nadvanced notes\n"

// TestSelector_ByName 测试按名称查找策略
func TestSelector_ByName(t *testing.T) {
	s := NewStrategySelector()

	for _, name := range []string{StrategyCode, StrategyTable, StrategyStructural, StrategyMixed, StrategyList, StrategySentence} {
		st, err := s.ByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, st.Name())
	}

	_, err := s.ByName("bogus")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

// TestSelector_StrictPrefersStructural 测试标题结构文档选中结构化策略
func TestSelector_StrictPrefersStructural(t *testing.T) {
	a := analyzeDoc(t, structuredDoc)
	cfg := DefaultChunkConfig()

	st := NewStrategySelector().Select(a, cfg)
	assert.Equal(t, StrategyStructural, st.Name())
}

// TestSelector_StrictPrefersCode 测试代码文档选中代码策略
func TestSelector_StrictPrefersCode(t *testing.T) {
	block := "```go\n" + strings.Repeat("a line of code content right here\n", 6) + "```\n"
	a := analyzeDoc(t, "# C\n\n"+block+"\n"+block)
	cfg := DefaultChunkConfig()

	st := NewStrategySelector().Select(a, cfg)
	assert.Equal(t, StrategyCode, st.Name())
}

// TestSelector_ListExcludedFromStrictOnly 测试列表策略只在严格模式下被排除
func TestSelector_ListExcludedFromStrictOnly(t *testing.T) {
	items := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		items = append(items, "- a list item with plenty of content in it")
	}
	a := analyzeDoc(t, strings.Join(items, "\n")+"\n")
	cfg := DefaultChunkConfig()
	s := NewStrategySelector()

	assert.NotEqual(t, StrategyList, s.Select(a, cfg).Name(), "Strict mode must skip the list strategy")

	// 加权模式不排除列表策略，列表为主的文档凭评分胜出
	cfg.Mode = SelectWeighted
	assert.Equal(t, StrategyList, s.Select(a, cfg).Name(), "Weighted mode scores the list strategy like any other")
}

// TestSelector_WeightedReturnsCandidate 测试加权模式总能选出策略
func TestSelector_WeightedReturnsCandidate(t *testing.T) {
	a := analyzeDoc(t, "short text\n")
	cfg := DefaultChunkConfig()
	cfg.Mode = SelectWeighted

	st := NewStrategySelector().Select(a, cfg)
	require.NotNil(t, st)
	assert.NotEqual(t, StrategyList, st.Name())
}

// TestSelector_Candidates 测试降级候选序列的构成
func TestSelector_Candidates(t *testing.T) {
	a := analyzeDoc(t, structuredDoc)
	cfg := DefaultChunkConfig()
	s := NewStrategySelector()

	candidates := s.Candidates(a, cfg, "")
	require.NotEmpty(t, candidates)
	assert.Equal(t, StrategyStructural, candidates[0].Name(), "Preferred strategy should lead")
	assert.Equal(t, StrategySentence, candidates[len(candidates)-1].Name(), "Sentence strategy should anchor the tail")
	for _, st := range candidates {
		assert.NotEqual(t, StrategyList, st.Name(), "List strategy never joins the fallback chain")
	}

	// 显式override排在首位，包括受限的列表策略
	withOverride := s.Candidates(a, cfg, StrategyList)
	assert.Equal(t, StrategyList, withOverride[0].Name())
}
