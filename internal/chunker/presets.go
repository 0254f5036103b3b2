package chunker

// 命名预设只是参数组合，核心流水线对它们没有任何特殊逻辑

// CodeHeavyConfig 代码为主的文档（API文档、技术手册）
func CodeHeavyConfig() *ChunkConfig {
	cfg := DefaultChunkConfig()
	cfg.MaxChunkSize = 3000
	cfg.TargetChunkSize = 1500
	cfg.CodeRatioThreshold = 0.2
	cfg.PreserveAtomicBlocks = true
	return cfg
}

// StructuredDocsConfig 结构化文档（规范、教程、层级分明的手册）
func StructuredDocsConfig() *ChunkConfig {
	cfg := DefaultChunkConfig()
	cfg.MaxChunkSize = 1500
	cfg.TargetChunkSize = 800
	cfg.HeaderCountThreshold = 2
	return cfg
}

// RAGConfig 检索增强生成场景，带重叠提升召回
func RAGConfig() *ChunkConfig {
	cfg := DefaultChunkConfig()
	cfg.MaxChunkSize = 1000
	cfg.MinChunkSize = 100
	cfg.TargetChunkSize = 500
	cfg.EnableOverlap = true
	cfg.OverlapSize = 100
	cfg.OverlapPercentage = 0.2
	return cfg
}

// ChatContextConfig 对话上下文窗口填充
func ChatContextConfig() *ChunkConfig {
	cfg := DefaultChunkConfig()
	cfg.MaxChunkSize = 4000
	cfg.TargetChunkSize = 2000
	cfg.EnableOverlap = true
	cfg.OverlapSize = 200
	return cfg
}

// SearchIndexingConfig 搜索索引场景，块小且无重叠
func SearchIndexingConfig() *ChunkConfig {
	cfg := DefaultChunkConfig()
	cfg.MaxChunkSize = 800
	cfg.MinChunkSize = 50
	cfg.TargetChunkSize = 400
	cfg.EnableOverlap = false
	return cfg
}

// FastProcessingConfig 快速处理场景，关闭降级重试
func FastProcessingConfig() *ChunkConfig {
	cfg := DefaultChunkConfig()
	cfg.MaxChunkSize = 2000
	cfg.EnableFallback = false
	cfg.Mode = SelectStrict
	return cfg
}

// PresetNames 返回所有可用预设的名称
func PresetNames() []string {
	return []string{"code-heavy", "structured-docs", "rag", "chat-context", "search-indexing", "fast-processing"}
}

// PresetByName 按名称返回预设配置，未知名称返回nil
func PresetByName(name string) *ChunkConfig {
	switch name {
	case "code-heavy":
		return CodeHeavyConfig()
	case "structured-docs":
		return StructuredDocsConfig()
	case "rag":
		return RAGConfig()
	case "chat-context":
		return ChatContextConfig()
	case "search-indexing":
		return SearchIndexingConfig()
	case "fast-processing":
		return FastProcessingConfig()
	default:
		return nil
	}
}
