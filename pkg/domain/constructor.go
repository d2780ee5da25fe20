package domain

// Constructor holds the registration parameters of one reverse callback.
// The set of implementations is closed and matches the Call kinds.
type Constructor interface {
	Kind() CallKind
	isConstructor()
}

// BranchruleConstructor registers the reverse branching rule.
type BranchruleConstructor struct {
	Priority         int     `mapstructure:"priority" yaml:"priority"`
	MaxDepth         int     `mapstructure:"max_depth" yaml:"max_depth" validate:"gte=-1"`
	MaxBoundDistance float64 `mapstructure:"max_bound_distance" yaml:"max_bound_distance" validate:"gte=0,lte=1"`
}

func (BranchruleConstructor) Kind() CallKind { return KindBranchrule }
func (BranchruleConstructor) isConstructor() {}

// DefaultBranchrule returns parameters that make the reverse rule preempt every built-in rule.
func DefaultBranchrule() BranchruleConstructor {
	return BranchruleConstructor{Priority: 536870911, MaxDepth: -1, MaxBoundDistance: 1}
}

// HeuristicConstructor registers the reverse primal heuristic.
type HeuristicConstructor struct {
	Priority        int        `mapstructure:"priority" yaml:"priority"`
	Frequency       int        `mapstructure:"frequency" yaml:"frequency" validate:"gte=-1"`
	FrequencyOffset int        `mapstructure:"frequency_offset" yaml:"frequency_offset" validate:"gte=0"`
	MaxDepth        int        `mapstructure:"max_depth" yaml:"max_depth" validate:"gte=-1"`
	TimingMask      HeurTiming `mapstructure:"timing_mask" yaml:"timing_mask"`
}

func (HeuristicConstructor) Kind() CallKind { return KindHeuristic }
func (HeuristicConstructor) isConstructor() {}

// DefaultHeuristic returns parameters that run the reverse heuristic after every LP node.
func DefaultHeuristic() HeuristicConstructor {
	return HeuristicConstructor{Priority: 536870911, Frequency: 1, MaxDepth: -1, TimingMask: TimingAfterLPNode}
}

// NodeselConstructor registers the reverse node selector.
type NodeselConstructor struct {
	StdPriority     int `mapstructure:"std_priority" yaml:"std_priority"`
	MemsavePriority int `mapstructure:"memsave_priority" yaml:"memsave_priority"`
}

func (NodeselConstructor) Kind() CallKind { return KindNodesel }
func (NodeselConstructor) isConstructor() {}

// DefaultNodesel returns parameters that make the reverse selector the active one.
func DefaultNodesel() NodeselConstructor {
	return NodeselConstructor{StdPriority: 536870911, MemsavePriority: 536870911}
}
