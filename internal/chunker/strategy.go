package chunker

// Strategy 分块策略接口
// 策略集合是封闭的：新增策略需要扩展selector的优先级表，而非运行时注册
type Strategy interface {
	// Name 策略名称
	Name() string
	// Priority 优先级，1为最高
	Priority() int
	// CanHandle 判断策略是否适用于该文档
	CanHandle(analysis *ContentAnalysis, cfg *ChunkConfig) bool
	// Quality 策略对该文档的适配质量评分，[0,1]
	Quality(analysis *ContentAnalysis) float64
	// Apply 执行分块
	Apply(parsed *ParseResult, analysis *ContentAnalysis, cfg *ChunkConfig) ([]*Chunk, error)
}

// 策略名称常量
const (
	StrategyCode       = "code"
	StrategyTable      = "table"
	StrategyStructural = "structural"
	StrategyMixed      = "mixed"
	StrategyList       = "list"
	StrategySentence   = "sentence"
)

// applyPacked 内容感知策略共用的打包流程
func applyPacked(parsed *ParseResult, analysis *ContentAnalysis, cfg *ChunkConfig, name string, sectionFlush bool) ([]*Chunk, error) {
	blocks := extractBlocks(parsed, cfg)
	packer := newBlockPacker(cfg, parsed.Index)
	return packer.pack(blocks, packOptions{
		strategy:     name,
		contentType:  analysis.ContentType,
		sectionFlush: sectionFlush,
	})
}

// clamp01 把值钳位到[0,1]
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
