package chunker

import "sort"

// StrategySelector 策略选择器
// 持有固定的策略集合，按严格或加权模式选择
type StrategySelector struct {
	strategies []Strategy // 按优先级升序排列
}

// NewStrategySelector 创建带有完整策略集合的选择器
func NewStrategySelector() *StrategySelector {
	return &StrategySelector{
		strategies: []Strategy{
			&codeStrategy{},
			&tableStrategy{},
			&structuralStrategy{},
			&mixedStrategy{},
			&listStrategy{},
			&sentenceStrategy{},
		},
	}
}

// ByName 按名称查找策略
func (s *StrategySelector) ByName(name string) (Strategy, error) {
	for _, st := range s.strategies {
		if st.Name() == name {
			return st, nil
		}
	}
	return nil, ErrUnknownStrategy
}

// preferredStrategy 按密度提示推导偏好策略名称
// 占比最高的内容类型对应的策略作为优先尝试的候选
func (s *StrategySelector) preferredStrategy(a *ContentAnalysis) string {
	best := StrategySentence
	bestRatio := a.TextRatio
	if a.CodeRatio > bestRatio {
		best = StrategyCode
		bestRatio = a.CodeRatio
	}
	if a.TableRatio > bestRatio {
		best = StrategyTable
		bestRatio = a.TableRatio
	}
	if a.ListRatio > bestRatio {
		best = StrategyList
		bestRatio = a.ListRatio
	}
	// 文本为主且有标题结构时偏好结构化策略
	if best == StrategySentence && a.HeaderCount > 1 {
		best = StrategyStructural
	}
	return best
}

// Select 根据配置的模式选择一个策略
// 兜底的句子策略永远可用，选择不可能失败
func (s *StrategySelector) Select(a *ContentAnalysis, cfg *ChunkConfig) Strategy {
	if cfg.Mode == SelectWeighted {
		return s.selectWeighted(a, cfg)
	}
	return s.selectStrict(a, cfg)
}

// selectStrict 严格模式：偏好策略优先，然后按优先级取第一个可用策略
// 通用列表策略会丢弃非列表内容，自动选择时跳过，只能显式指定
func (s *StrategySelector) selectStrict(a *ContentAnalysis, cfg *ChunkConfig) Strategy {
	preferred := s.preferredStrategy(a)
	if preferred != StrategyList {
		if st, err := s.ByName(preferred); err == nil && st.CanHandle(a, cfg) {
			return st
		}
	}
	for _, st := range s.strategies {
		if st.Name() == StrategyList {
			continue
		}
		if st.CanHandle(a, cfg) {
			return st
		}
	}
	// 不可达：句子策略的CanHandle恒为true
	last, _ := s.ByName(StrategySentence)
	return last
}

// selectWeighted 加权模式：所有可用策略按 0.5×(1/priority) + 0.5×quality 评分
// 偏好策略获得+0.2加分，最高分胜出；列表策略参与评分，只有严格模式排除它
func (s *StrategySelector) selectWeighted(a *ContentAnalysis, cfg *ChunkConfig) Strategy {
	preferred := s.preferredStrategy(a)

	var best Strategy
	bestScore := -1.0
	for _, st := range s.strategies {
		if !st.CanHandle(a, cfg) {
			continue
		}
		score := 0.5*(1.0/float64(st.Priority())) + 0.5*st.Quality(a)
		if st.Name() == preferred {
			score += 0.2
		}
		if score > bestScore {
			bestScore = score
			best = st
		}
	}
	if best == nil {
		best, _ = s.ByName(StrategySentence)
	}
	return best
}

// Candidates 返回降级重试用的候选策略序列
// 首选策略排第一，其余可用策略按优先级排列，句子策略保证垫底
func (s *StrategySelector) Candidates(a *ContentAnalysis, cfg *ChunkConfig, override string) []Strategy {
	var first Strategy
	if override != "" {
		if st, err := s.ByName(override); err == nil {
			first = st
		}
	}
	if first == nil {
		first = s.Select(a, cfg)
	}

	candidates := []Strategy{first}
	var rest []Strategy
	for _, st := range s.strategies {
		if st.Name() == first.Name() || st.Name() == StrategyList {
			continue
		}
		if st.Name() != StrategySentence && !st.CanHandle(a, cfg) {
			continue
		}
		rest = append(rest, st)
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].Priority() < rest[j].Priority()
	})
	return append(candidates, rest...)
}
