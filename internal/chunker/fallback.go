package chunker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// attemptOutcome 一次分块尝试的结果
// 显式的重试状态机：每个策略返回结果或失败原因，降级循环在类型层面可见
type attemptOutcome struct {
	chunks   []*Chunk
	strategy string
	level    int // 降级层数，0表示首选策略直接成功
	warnings []string
}

// fallbackManager 降级管理器
// 策略执行失败或返回空结果时按优先级降级重试，句子策略保证兜底
type fallbackManager struct {
	selector *StrategySelector
	logger   *logrus.Logger
}

func newFallbackManager(selector *StrategySelector, logger *logrus.Logger) *fallbackManager {
	return &fallbackManager{selector: selector, logger: logger}
}

// run 执行带降级的分块尝试
// 降级层数受max_fallback_level约束；全部失败返回ErrChunkingFailed
func (f *fallbackManager) run(parsed *ParseResult, analysis *ContentAnalysis, cfg *ChunkConfig, override string) (*attemptOutcome, error) {
	// 显式override（包括受限的列表策略）由Candidates放在首位
	candidates := f.selector.Candidates(analysis, cfg, override)

	maxAttempts := 1
	if cfg.EnableFallback {
		maxAttempts = cfg.MaxFallbackLevel + 1
	}
	if maxAttempts > len(candidates) {
		maxAttempts = len(candidates)
	}

	outcome := &attemptOutcome{}
	for level := 0; level < maxAttempts; level++ {
		st := candidates[level]
		chunks, err := f.attempt(st, parsed, analysis, cfg)
		if err != nil {
			msg := fmt.Sprintf("strategy %s failed at level %d: %v", st.Name(), level, err)
			outcome.warnings = append(outcome.warnings, msg)
			f.logger.WithFields(logrus.Fields{
				"strategy": st.Name(),
				"level":    level,
			}).Warn("Chunking strategy failed, falling back")
			continue
		}
		outcome.chunks = chunks
		outcome.strategy = st.Name()
		outcome.level = level
		return outcome, nil
	}

	return outcome, fmt.Errorf("%w: exhausted %d fallback levels", ErrChunkingFailed, maxAttempts)
}

// attempt 执行单次策略尝试
// 策略内部的panic被捕获并转换为错误，由降级循环处理
func (f *fallbackManager) attempt(st Strategy, parsed *ParseResult, analysis *ContentAnalysis, cfg *ChunkConfig) (chunks []*Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", st.Name(), r)
		}
	}()

	chunks, err = st.Apply(parsed, analysis, cfg)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 && strings.TrimSpace(parsed.Text) != "" {
		return nil, ErrEmptyStrategyResult
	}
	return chunks, nil
}

// validateChunks 最终校验器
// 依次检查：内容完整性、大小上限、排序、Chunk不变量
// 校验失败以warnings/errors形式报告，调用方始终拿到尽力而为的分块序列
func validateChunks(chunks []*Chunk, parsed *ParseResult, cfg *ChunkConfig) (warnings []string, errs []string) {
	if len(chunks) == 0 {
		return nil, nil
	}

	// 并行策略分支可能乱序产出，先确保按start_line排序
	sorted := sort.SliceIsSorted(chunks, func(i, j int) bool {
		return chunks[i].StartLine < chunks[j].StartLine
	})
	if !sorted {
		sort.SliceStable(chunks, func(i, j int) bool {
			return chunks[i].StartLine < chunks[j].StartLine
		})
		warnings = append(warnings, "chunks were out of order and have been resorted by start_line")
	}

	// 内容完整性：未被任何块覆盖的非空行即为内容丢失
	covered := make([]bool, parsed.TotalLines()+1)
	for _, c := range chunks {
		for n := c.StartLine; n <= c.EndLine && n < len(covered); n++ {
			covered[n] = true
		}
	}
	lost := 0
	for n := 1; n < len(covered); n++ {
		if !covered[n] && strings.TrimSpace(parsed.Index.line(n)) != "" {
			lost++
		}
	}
	if lost > 0 {
		errs = append(errs, fmt.Sprintf("content loss detected: %d non-blank lines are not covered by any chunk", lost))
	}

	// 字符数核算：保留字符（扣除重叠前缀）不得超出输入长度
	retained := 0
	for _, c := range chunks {
		retained += c.Size() - c.Metadata.OverlapSize
	}
	if retained > len(parsed.Text) {
		warnings = append(warnings, fmt.Sprintf("retained %d chars exceeds input length %d", retained, len(parsed.Text)))
	}

	for i, c := range chunks {
		// 大小上限：未带超限标记的块不得超过max_chunk_size
		limit := cfg.MaxChunkSize
		if c.Metadata.HasOverlap {
			limit += c.Metadata.OverlapSize
		}
		if c.Size() > limit && !c.Metadata.AllowOversize {
			warnings = append(warnings, fmt.Sprintf("chunk %d exceeds max size %d without oversize flag (size=%d)", i, cfg.MaxChunkSize, c.Size()))
		}

		// Chunk构造不变量
		if c.StartLine < 1 || c.EndLine < c.StartLine {
			errs = append(errs, fmt.Sprintf("chunk %d has invalid line range [%d, %d]", i, c.StartLine, c.EndLine))
		}
		if strings.TrimSpace(c.Content) == "" {
			errs = append(errs, fmt.Sprintf("chunk %d has empty content", i))
		}
	}
	return warnings, errs
}
