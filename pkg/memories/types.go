package memories

// MemoryType classifies a stored memory.
type MemoryType string

const (
	MemoryTypeRule     MemoryType = "rule"
	MemoryTypeDecision MemoryType = "decision"
	MemoryTypeFact     MemoryType = "fact"
	MemoryTypeNote     MemoryType = "note"
	MemoryTypeSkill    MemoryType = "skill"
)

// MemoryTypes lists every accepted memory type.
var MemoryTypes = []MemoryType{
	MemoryTypeRule,
	MemoryTypeDecision,
	MemoryTypeFact,
	MemoryTypeNote,
	MemoryTypeSkill,
}

// Layer is the retention layer a memory lives in.
type Layer string

const (
	LayerRule     Layer = "rule"
	LayerWorking  Layer = "working"
	LayerLongTerm Layer = "long_term"
)

var Layers = []Layer{LayerRule, LayerWorking, LayerLongTerm}

// Mode selects which layers context retrieval draws from.
type Mode string

const (
	ModeAll       Mode = "all"
	ModeWorking   Mode = "working"
	ModeLongTerm  Mode = "long_term"
	ModeRulesOnly Mode = "rules_only"
)

var Modes = []Mode{ModeAll, ModeWorking, ModeLongTerm, ModeRulesOnly}

// Strategy selects the context retrieval algorithm.
type Strategy string

const (
	StrategyBaseline    Strategy = "baseline"
	StrategyHybridGraph Strategy = "hybrid_graph"
)

var Strategies = []Strategy{StrategyBaseline, StrategyHybridGraph}

// Defaults and bounds for retrieval parameters.
const (
	DefaultMemoryType = MemoryTypeNote
	DefaultMode       = ModeAll
	DefaultStrategy   = StrategyBaseline

	DefaultLimit      = 8
	DefaultGraphDepth = 1
	DefaultGraphLimit = 8

	MinLimit      = 1
	MaxLimit      = 50
	MaxGraphDepth = 2
)

func oneOf[T ~string](v T, allowed []T) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
