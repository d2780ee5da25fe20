// Package knapsack is an in-process branch-and-bound engine for the 0/1 knapsack problem.
//
// It implements ports.Engine together with the optional Brancher, Inspector and TreeViewer
// capabilities. The LP relaxation is the fractional knapsack bound, so every node
// has at most one fractional variable.
//
// The engine is driven from a single goroutine at a time. Its query methods may be
// called from another goroutine only while Solve is parked inside an extension,
// which is how the stepping layer uses it.
package knapsack

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/aretw0/stepbnb/internal/logging"
	"github.com/aretw0/stepbnb/pkg/domain"
	"github.com/aretw0/stepbnb/pkg/ports"
)

const eps = 1e-9

var (
	// ErrNoProblem is returned by Solve before an instance was loaded.
	ErrNoProblem = errors.New("knapsack: no problem loaded")
	// ErrSolveRunning is returned when Solve is reentered or an extension is replaced mid-solve.
	ErrSolveRunning = errors.New("knapsack: solve in progress")
	// ErrConcurrentCopy is returned when two copies overlap. Copying is not reentrant.
	ErrConcurrentCopy = errors.New("knapsack: concurrent copy")
	// ErrNotBranching is returned by Branch and BranchCandidates outside a branching callback.
	ErrNotBranching = errors.New("knapsack: no branching in progress")
	// ErrInvalidNode is returned when the node selector picks a node that is not open.
	ErrInvalidNode = errors.New("knapsack: selected node is not open")
)

// copying guards Copy across all engines of the process.
var copying atomic.Bool

type fixing int8

const (
	free fixing = iota
	excluded
	included
)

type node struct {
	number   domain.NodeID
	parent   int
	depth    int
	fixed    []fixing
	estimate float64
	bound    float64
	open     bool
	outcome  domain.NodeOutcome
	variable int
}

type relaxation struct {
	feasible   bool
	bound      float64
	x          []float64
	fractional int
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	nodeLimit  int
	lpDisabled bool
	copyDelay  time.Duration
}

// WithLogger configures the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithNodeLimit stops the search after n processed nodes. Zero means no limit.
func WithNodeLimit(n int) Option {
	return func(o *options) {
		o.nodeLimit = n
	}
}

// WithoutLP disables the LP relaxation bound for branching decisions.
// Branching then runs on pseudo solutions and offers every free variable.
func WithoutLP() Option {
	return func(o *options) {
		o.lpDisabled = true
	}
}

// WithCopyDelay makes Copy take at least d. Used to widen the window in which
// concurrent copies collide.
func WithCopyDelay(d time.Duration) Option {
	return func(o *options) {
		o.copyDelay = d
	}
}

// Engine solves one knapsack instance.
type Engine struct {
	opts   []Option
	cfg    options
	logger *slog.Logger

	inst  *Instance
	order []int

	stage  domain.Stage
	status domain.Status

	branchrule   ports.Branchrule
	branchParams domain.BranchruleConstructor
	heuristic    ports.Heuristic
	heurParams   domain.HeuristicConstructor
	nodesel      ports.NodeSelector

	nodes      []*node
	open       []int
	focus      int
	focusLP    relaxation
	nextNumber domain.NodeID
	processed  int

	incumbent      float64
	incumbentItems []bool

	slot        domain.SelectionSlot
	branching   bool
	branched    bool
	interrupted atomic.Bool
	running     atomic.Bool
}

var (
	_ ports.Engine     = (*Engine)(nil)
	_ ports.Brancher   = (*Engine)(nil)
	_ ports.Inspector  = (*Engine)(nil)
	_ ports.TreeViewer = (*Engine)(nil)

	_ ports.PrimalReceiver = (*Engine)(nil)
)

// New returns an engine without a problem.
func New(opts ...Option) *Engine {
	cfg := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{
		opts:   opts,
		cfg:    cfg,
		logger: cfg.logger,
		stage:  domain.StageInit,
		focus:  -1,
	}
}

// NewWithInstance returns an engine with inst loaded.
func NewWithInstance(inst *Instance, opts ...Option) (*Engine, error) {
	e := New(opts...)
	if err := e.Load(inst); err != nil {
		return nil, err
	}
	return e, nil
}

// Load installs the problem. It may only be called before solving starts.
func (e *Engine) Load(inst *Instance) error {
	if e.stage == domain.StageFreed {
		return domain.ErrEngineFreed
	}
	if e.stage != domain.StageInit && e.stage != domain.StageProblem {
		return fmt.Errorf("knapsack: cannot load a problem in stage %s", e.stage)
	}
	if err := inst.Validate(); err != nil {
		return err
	}
	e.inst = inst.Clone()
	e.order = make([]int, len(e.inst.Items))
	for i := range e.order {
		e.order[i] = i
	}
	items := e.inst.Items
	slices.SortStableFunc(e.order, func(a, b int) int {
		// Descending value density.
		return cmp.Compare(items[b].Value*items[a].Weight, items[a].Value*items[b].Weight)
	})
	e.incumbentItems = make([]bool, len(items))
	e.stage = domain.StageProblem
	return nil
}

// Instance returns the loaded problem, or nil.
func (e *Engine) Instance() *Instance {
	return e.inst
}

// IncludeBranchrule installs rule, replacing any earlier one.
func (e *Engine) IncludeBranchrule(params domain.BranchruleConstructor, rule ports.Branchrule) error {
	if err := e.checkIncludable(); err != nil {
		return err
	}
	e.branchrule, e.branchParams = rule, params
	return nil
}

// IncludeHeuristic installs heur, replacing any earlier one.
func (e *Engine) IncludeHeuristic(params domain.HeuristicConstructor, heur ports.Heuristic) error {
	if err := e.checkIncludable(); err != nil {
		return err
	}
	e.heuristic, e.heurParams = heur, params
	return nil
}

// IncludeNodeSelector installs sel, replacing any earlier one.
func (e *Engine) IncludeNodeSelector(_ domain.NodeselConstructor, sel ports.NodeSelector) error {
	if err := e.checkIncludable(); err != nil {
		return err
	}
	e.nodesel = sel
	return nil
}

func (e *Engine) checkIncludable() error {
	if e.stage == domain.StageFreed {
		return domain.ErrEngineFreed
	}
	if e.running.Load() {
		return ErrSolveRunning
	}
	return nil
}

// Stage returns the solve stage.
func (e *Engine) Stage() domain.Stage {
	return e.stage
}

// Status returns why the last Solve stopped.
func (e *Engine) Status() domain.Status {
	return e.status
}

// Interrupt asks a running Solve to stop before processing the next node.
func (e *Engine) Interrupt() error {
	if e.stage == domain.StageFreed {
		return domain.ErrEngineFreed
	}
	e.interrupted.Store(true)
	return nil
}

// NodesLeft returns the number of open nodes.
func (e *Engine) NodesLeft() int {
	return len(e.open)
}

// NodesProcessed returns the number of nodes taken out of the open list so far.
func (e *Engine) NodesProcessed() int {
	return e.processed
}

// Incumbent returns the value of the best known solution and the packed item indices.
func (e *Engine) Incumbent() (float64, []int) {
	var packed []int
	for i, in := range e.incumbentItems {
		if in {
			packed = append(packed, i)
		}
	}
	return e.incumbent, packed
}

// AddSolution offers a candidate solution. It reports whether it became the incumbent.
func (e *Engine) AddSolution(items []int) (bool, error) {
	if e.stage == domain.StageFreed {
		return false, domain.ErrEngineFreed
	}
	if e.inst == nil {
		return false, ErrNoProblem
	}
	chosen := make([]bool, len(e.inst.Items))
	weight, value := 0.0, 0.0
	for _, i := range items {
		if i < 0 || i >= len(chosen) {
			return false, fmt.Errorf("knapsack: item %d out of range", i)
		}
		if chosen[i] {
			continue
		}
		chosen[i] = true
		weight += e.inst.Items[i].Weight
		value += e.inst.Items[i].Value
	}
	if weight > e.inst.Capacity+eps {
		return false, nil
	}
	if value <= e.incumbent+eps {
		return false, nil
	}
	e.incumbent, e.incumbentItems = value, chosen
	e.logger.Debug("incumbent improved", "value", value, "source", "external")
	return true, nil
}

// Solve runs branch and bound until the tree is exhausted, a limit is hit or the
// search is interrupted. An interrupted search stays in the solving stage and a
// later Solve resumes it.
func (e *Engine) Solve(ctx context.Context) error {
	switch e.stage {
	case domain.StageFreed:
		return domain.ErrEngineFreed
	case domain.StageInit:
		return ErrNoProblem
	case domain.StageSolved:
		return nil
	}
	if !e.running.CompareAndSwap(false, true) {
		return ErrSolveRunning
	}
	defer e.running.Store(false)
	e.interrupted.Store(false)

	if e.stage == domain.StageProblem {
		solved, err := e.presolve(ctx)
		if err != nil {
			return err
		}
		if solved {
			return nil
		}
		e.createRoot()
	}
	e.stage = domain.StageSolving
	e.logger.Debug("search started", "items", len(e.inst.Items), "open", len(e.open))

	for {
		if e.stopRequested(ctx) {
			e.status = domain.StatusUserInterrupt
			e.logger.Debug("search interrupted", "processed", e.processed)
			return nil
		}
		if len(e.open) == 0 {
			e.finish(domain.StatusOptimal)
			return nil
		}
		if e.cfg.nodeLimit > 0 && e.processed >= e.cfg.nodeLimit {
			e.finish(domain.StatusNodeLimit)
			return nil
		}

		idx, ok, err := e.selectNode(ctx)
		if err != nil {
			return err
		}
		if e.stopRequested(ctx) {
			e.status = domain.StatusUserInterrupt
			return nil
		}
		if !ok {
			// The selector declined with nodes left; the search ends unproven.
			e.finish(domain.StatusUnknown)
			return nil
		}
		if err := e.process(ctx, idx); err != nil {
			return err
		}
	}
}

func (e *Engine) stopRequested(ctx context.Context) bool {
	return e.interrupted.Load() || ctx.Err() != nil
}

func (e *Engine) finish(status domain.Status) {
	e.stage = domain.StageSolved
	e.status = status
	e.focus = -1
	e.logger.Debug("search finished", "status", status, "processed", e.processed, "incumbent", e.incumbent)
}

// presolve drops items that can never fit and reports whether the instance was
// solved without search.
func (e *Engine) presolve(ctx context.Context) (bool, error) {
	e.stage = domain.StagePresolving
	if e.heuristic != nil && e.heurParams.TimingMask.Has(domain.TimingBeforePresol) && e.heurParams.Frequency >= 0 {
		if _, err := e.heuristic.Exec(ctx, domain.TimingBeforePresol, false); err != nil {
			return false, fmt.Errorf("heuristic failed: %w", err)
		}
		if e.stopRequested(ctx) {
			// Nothing was searched yet; the next Solve presolves again.
			e.stage = domain.StageProblem
			e.status = domain.StatusUserInterrupt
			return true, nil
		}
	}

	all := make([]int, 0, len(e.inst.Items))
	weight := 0.0
	for i, it := range e.inst.Items {
		if it.Weight <= e.inst.Capacity+eps {
			all = append(all, i)
			weight += it.Weight
		}
	}
	if weight <= e.inst.Capacity+eps {
		if _, err := e.AddSolution(all); err != nil {
			return false, err
		}
		e.finish(domain.StatusOptimal)
		e.logger.Debug("solved in presolve", "items", len(all))
		return true, nil
	}
	return false, nil
}

func (e *Engine) createRoot() {
	fixed := make([]fixing, len(e.inst.Items))
	for i, it := range e.inst.Items {
		if it.Weight > e.inst.Capacity+eps {
			fixed[i] = excluded
		}
	}
	root := e.addNode(-1, fixed)
	root.bound = e.relax(fixed).bound
	root.estimate = root.bound
}

func (e *Engine) addNode(parent int, fixed []fixing) *node {
	e.nextNumber++
	n := &node{number: e.nextNumber, parent: parent, fixed: fixed, open: true, variable: -1}
	if parent >= 0 {
		p := e.nodes[parent]
		n.depth = p.depth + 1
		n.bound = p.bound
		n.estimate = p.bound
	}
	e.nodes = append(e.nodes, n)
	e.open = append(e.open, len(e.nodes)-1)
	return n
}

func (e *Engine) selectNode(ctx context.Context) (int, bool, error) {
	if e.nodesel == nil {
		return e.bestOpen(), true, nil
	}
	e.slot.Clear()
	if err := e.nodesel.Select(ctx, &e.slot); err != nil {
		return -1, false, fmt.Errorf("node selection failed: %w", err)
	}
	h, ok := e.slot.Selected()
	if !ok {
		return -1, false, nil
	}
	idx := int(h)
	if idx < 0 || idx >= len(e.nodes) || !e.nodes[idx].open {
		return -1, false, fmt.Errorf("%w: handle %d", ErrInvalidNode, h)
	}
	return idx, true, nil
}

// bestOpen picks the open node with the highest bound, oldest first on ties.
func (e *Engine) bestOpen() int {
	best := e.open[0]
	for _, idx := range e.open[1:] {
		n, b := e.nodes[idx], e.nodes[best]
		if n.bound > b.bound+eps || (n.bound > b.bound-eps && n.number < b.number) {
			best = idx
		}
	}
	return best
}

func (e *Engine) process(ctx context.Context, idx int) error {
	n := e.nodes[idx]
	n.open = false
	n.outcome = domain.OutcomeProcessed
	e.open = slices.DeleteFunc(e.open, func(i int) bool { return i == idx })
	e.focus = idx
	e.focusLP = relaxation{fractional: -1}
	e.processed++

	if err := e.runHeuristic(ctx, n, domain.TimingBeforeNode, false); err != nil {
		return err
	}
	if e.stopRequested(ctx) {
		e.reopen(idx)
		return nil
	}

	lp := e.relax(n.fixed)
	e.focusLP = lp
	afterNode := domain.TimingAfterLPNode
	if e.cfg.lpDisabled {
		afterNode = domain.TimingAfterPseudoNode
	}
	if !lp.feasible {
		n.outcome = domain.OutcomeInfeasible
		e.logger.Debug("node infeasible", "node", n.number)
		return e.runHeuristic(ctx, n, afterNode, true)
	}
	n.bound = lp.bound
	if lp.bound <= e.incumbent+eps {
		n.outcome = domain.OutcomePruned
		e.logger.Debug("node pruned", "node", n.number, "bound", lp.bound)
		return nil
	}
	if lp.fractional < 0 {
		n.outcome = domain.OutcomeIntegral
		e.acceptIntegral(lp)
		return nil
	}

	if err := e.runHeuristic(ctx, n, afterNode, false); err != nil {
		return err
	}
	if e.stopRequested(ctx) {
		e.reopen(idx)
		return nil
	}
	if lp.bound <= e.incumbent+eps {
		n.outcome = domain.OutcomePruned
		return nil
	}
	return e.branch(ctx, idx, lp)
}

// reopen puts a node whose processing was interrupted back on the open list,
// so the next Solve processes it again.
func (e *Engine) reopen(idx int) {
	n := e.nodes[idx]
	n.open = true
	n.outcome = domain.OutcomeOpen
	e.open = append(e.open, idx)
	e.processed--
	e.logger.Debug("node reopened", "node", n.number)
}

func (e *Engine) acceptIntegral(lp relaxation) {
	chosen := make([]bool, len(lp.x))
	for i, v := range lp.x {
		chosen[i] = v > 1-eps
	}
	if lp.bound > e.incumbent+eps {
		e.incumbent, e.incumbentItems = lp.bound, chosen
		e.logger.Debug("incumbent improved", "value", lp.bound, "source", "lp")
	}
}

func (e *Engine) runHeuristic(ctx context.Context, n *node, timing domain.HeurTiming, infeasible bool) error {
	if e.heuristic == nil || !e.heurParams.TimingMask.Has(timing) || !e.heuristicDue(n.depth) {
		return nil
	}
	if _, err := e.heuristic.Exec(ctx, timing, infeasible); err != nil {
		return fmt.Errorf("heuristic failed: %w", err)
	}
	return nil
}

// heuristicDue applies the frequency, offset and depth limits of the heuristic.
func (e *Engine) heuristicDue(depth int) bool {
	p := e.heurParams
	if p.MaxDepth >= 0 && depth > p.MaxDepth {
		return false
	}
	switch {
	case p.Frequency < 0:
		return false
	case p.Frequency == 0:
		return depth == p.FrequencyOffset
	default:
		return depth >= p.FrequencyOffset && (depth-p.FrequencyOffset)%p.Frequency == 0
	}
}

func (e *Engine) branch(ctx context.Context, idx int, lp relaxation) error {
	n := e.nodes[idx]
	if e.branchrule != nil && e.branchruleApplies(n) {
		e.branching, e.branched = true, false
		var result domain.Result
		var err error
		if e.cfg.lpDisabled {
			result, err = e.branchrule.ExecPseudo(ctx, true)
		} else {
			result, err = e.branchrule.ExecLP(ctx, true)
		}
		e.branching = false
		if err != nil {
			return fmt.Errorf("branching rule failed: %w", err)
		}
		if e.stopRequested(ctx) {
			if !e.branched {
				e.reopen(idx)
			}
			return nil
		}
		switch {
		case result == domain.Cutoff:
			n.outcome = domain.OutcomePruned
			e.logger.Debug("node cut off by branching rule", "node", n.number)
			return nil
		case result == domain.Branched && !e.branched:
			return fmt.Errorf("knapsack: branching rule reported branching without creating children")
		case e.branched:
			return nil
		}
		// Remaining codes leave the decision to the built-in rule.
	}

	v := lp.fractional
	if e.cfg.lpDisabled || v < 0 {
		v = slices.Index(n.fixed, free)
	}
	if v < 0 {
		return nil
	}
	e.createChildren(idx, v)
	return nil
}

func (e *Engine) branchruleApplies(n *node) bool {
	p := e.branchParams
	if p.MaxDepth >= 0 && n.depth > p.MaxDepth {
		return false
	}
	if e.incumbent <= eps || p.MaxBoundDistance >= 1 {
		return true
	}
	root := e.nodes[0].bound
	if root <= e.incumbent {
		return true
	}
	return (root-n.bound)/(root-e.incumbent) <= p.MaxBoundDistance
}

func (e *Engine) createChildren(parent, v int) {
	for _, f := range []fixing{excluded, included} {
		fixed := slices.Clone(e.nodes[parent].fixed)
		fixed[v] = f
		e.addNode(parent, fixed).variable = v
	}
	e.nodes[parent].outcome = domain.OutcomeBranched
	e.logger.Debug("branched", "node", e.nodes[parent].number, "variable", v)
}

// relax solves the fractional knapsack over the free items.
func (e *Engine) relax(fixed []fixing) relaxation {
	items := e.inst.Items
	r := relaxation{x: make([]float64, len(items)), fractional: -1}
	room := e.inst.Capacity
	for i, f := range fixed {
		if f == included {
			r.x[i] = 1
			room -= items[i].Weight
			r.bound += items[i].Value
		}
	}
	if room < -eps {
		return relaxation{fractional: -1}
	}
	r.feasible = true
	for _, i := range e.order {
		if fixed[i] != free {
			continue
		}
		if room <= eps {
			break
		}
		it := items[i]
		if it.Weight <= room+eps {
			r.x[i] = 1
			room -= it.Weight
			r.bound += it.Value
			continue
		}
		r.x[i] = room / it.Weight
		r.bound += it.Value * r.x[i]
		r.fractional = i
		break
	}
	return r
}

// OpenNodes classifies the open nodes relative to the last focus node.
// Outside the solving stage there are none.
func (e *Engine) OpenNodes() (domain.OpenNodes, error) {
	var out domain.OpenNodes
	switch e.stage {
	case domain.StageFreed:
		return out, domain.ErrEngineFreed
	case domain.StageSolving:
	default:
		return out, nil
	}

	focusParent := -1
	if e.focus >= 0 {
		focusParent = e.nodes[e.focus].parent
	}
	for _, idx := range e.open {
		n := e.nodes[idx]
		on := domain.OpenNode{ID: n.number, Handle: domain.NodeHandle(idx)}
		switch {
		case e.focus >= 0 && n.parent == e.focus:
			out.Children = append(out.Children, on)
		case focusParent >= 0 && n.parent == focusParent:
			out.Siblings = append(out.Siblings, on)
		default:
			out.Leaves = append(out.Leaves, on)
		}
	}
	order := func(a, b domain.OpenNode) int {
		if e.nodesel != nil {
			if c := e.nodesel.Compare(a, b); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	}
	slices.SortFunc(out.Leaves, order)
	slices.SortFunc(out.Children, order)
	slices.SortFunc(out.Siblings, order)
	return out, nil
}

// BranchCandidates returns the variables the focus node may branch on.
func (e *Engine) BranchCandidates() ([]int, error) {
	if !e.branching {
		return nil, ErrNotBranching
	}
	if e.cfg.lpDisabled {
		return e.pseudoCandidates(), nil
	}
	if e.focusLP.fractional < 0 {
		return nil, nil
	}
	return []int{e.focusLP.fractional}, nil
}

func (e *Engine) pseudoCandidates() []int {
	if e.focus < 0 {
		return nil
	}
	var out []int
	for i, f := range e.nodes[e.focus].fixed {
		if f == free {
			out = append(out, i)
		}
	}
	return out
}

// Branch creates the two children of the focus node for variable.
func (e *Engine) Branch(variable int) error {
	if !e.branching {
		return ErrNotBranching
	}
	if e.branched {
		return fmt.Errorf("knapsack: focus node already branched")
	}
	cands, err := e.BranchCandidates()
	if err != nil {
		return err
	}
	if !slices.Contains(cands, variable) {
		return fmt.Errorf("knapsack: variable %d is not a branching candidate", variable)
	}
	e.createChildren(e.focus, variable)
	e.branched = true
	return nil
}

// Tree returns every node created so far, in creation order.
func (e *Engine) Tree() []domain.TreeNode {
	tree := make([]domain.TreeNode, len(e.nodes))
	for i, n := range e.nodes {
		t := domain.TreeNode{
			Number:   n.number,
			Depth:    n.depth,
			Bound:    n.bound,
			Outcome:  n.outcome,
			Variable: n.variable,
		}
		if n.parent >= 0 {
			t.Parent = e.nodes[n.parent].number
		}
		if n.variable >= 0 && n.fixed[n.variable] == included {
			t.Value = 1
		}
		tree[i] = t
	}
	return tree
}

// FocusNode describes the node currently or most recently processed.
func (e *Engine) FocusNode() (domain.FocusNodeInfo, bool) {
	if e.stage != domain.StageSolving || e.focus < 0 {
		return domain.FocusNodeInfo{}, false
	}
	n := e.nodes[e.focus]
	info := domain.FocusNodeInfo{
		Number:           n.number,
		Depth:            n.depth,
		Bound:            n.bound,
		Estimate:         n.estimate,
		Variables:        len(n.fixed),
		PseudoCandidates: len(e.pseudoCandidates()),
		ParentNumber:     -1,
		ParentBound:      n.bound,
	}
	if e.focusLP.fractional >= 0 {
		info.LPCandidates = 1
	}
	if n.parent >= 0 {
		p := e.nodes[n.parent]
		info.ParentNumber = p.number
		info.ParentBound = p.bound
	}
	return info, true
}

// LPSolution returns the item fractions of the focus node's relaxation.
func (e *Engine) LPSolution() ([]float64, bool) {
	if e.stage != domain.StageSolving || e.focus < 0 || !e.focusLP.feasible {
		return nil, false
	}
	return slices.Clone(e.focusLP.x), true
}

// LPColumns returns one column per item. The only row is the capacity constraint.
func (e *Engine) LPColumns() []domain.LPColumn {
	if e.inst == nil || e.stage == domain.StageFreed {
		return nil
	}
	cols := make([]domain.LPColumn, len(e.inst.Items))
	for i, it := range e.inst.Items {
		cols[i] = domain.LPColumn{
			Position: i,
			Values:   []float64{it.Weight},
			RowRHS:   []float64{e.inst.Capacity},
		}
	}
	return cols
}

// Copy returns a new engine holding a copy of the problem but none of the search.
// Engines without a problem copy to fresh empty engines.
func (e *Engine) Copy() (ports.Engine, error) {
	if e.stage == domain.StageFreed {
		return nil, domain.ErrEngineFreed
	}
	if e.inst == nil {
		return New(e.opts...), nil
	}
	if !copying.CompareAndSwap(false, true) {
		return nil, ErrConcurrentCopy
	}
	defer copying.Store(false)
	if e.cfg.copyDelay > 0 {
		time.Sleep(e.cfg.copyDelay)
	}
	dup, err := NewWithInstance(e.inst, e.opts...)
	if err != nil {
		return nil, err
	}
	return dup, nil
}

// Free releases the problem and the search tree.
func (e *Engine) Free() error {
	if e.running.Load() {
		return ErrSolveRunning
	}
	e.stage = domain.StageFreed
	e.inst, e.nodes, e.open = nil, nil, nil
	e.branchrule, e.heuristic, e.nodesel = nil, nil, nil
	return nil
}
