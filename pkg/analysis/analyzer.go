// Package analysis is the path-sensitive abstract interpreter. It walks a
// method with an explicit worklist, forking the simulated stack and locals
// at every branch and exception edge, and records a frame.Frame for every
// instruction execution without merging at join points.
package analysis

import (
	"context"
	"fmt"

	"github.com/apex/log"

	"github.com/daimatz/deobvm/pkg/errs"
	"github.com/daimatz/deobvm/pkg/frame"
	"github.com/daimatz/deobvm/pkg/hierarchy"
	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/session"
	"github.com/daimatz/deobvm/pkg/value"
)

// ctxCheckInterval is how many steps pass between context checks.
const ctxCheckInterval = 1024

// Analyzer runs the abstract interpreter for one session.
type Analyzer struct {
	resolver *hierarchy.Resolver
	maxSteps int
	log      log.Interface
}

// New creates an analyzer bound to the session's resolver and limits.
func New(s *session.Session) *Analyzer {
	return &Analyzer{
		resolver: s.Resolver,
		maxSteps: s.Config.Analysis.MaxSteps,
		log:      s.Log,
	}
}

// Analyze builds the instruction to frames map of m. Abstract and native
// methods yield an empty result.
func (a *Analyzer) Analyze(c *ir.Class, m *ir.Method) (*frame.Result, error) {
	return a.AnalyzeContext(context.Background(), c, m)
}

// edge is a memoized control transfer. Memoizing per edge rather than per
// reaching state means a join point reached by two differently typed paths
// is only explored along the first one. Downstream passes rely on this
// approximation; switching to full path sensitivity must be deliberate.
type edge struct {
	from, to int
	handler  bool
}

type work struct {
	index int
	st    *state
}

// AnalyzeContext is Analyze with cancellation, checked periodically
// between steps.
func (a *Analyzer) AnalyzeContext(ctx context.Context, c *ir.Class, m *ir.Method) (*frame.Result, error) {
	res := frame.NewResult(m)
	if !m.HasCode() {
		return res, nil
	}

	in := &interp{class: c, method: m, res: res}
	entry, err := in.seed()
	if err != nil {
		return nil, err
	}

	taken := make(map[edge]bool)
	stack := []work{{index: 0, st: entry}}
	steps := 0
	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		steps++
		if a.maxSteps > 0 && steps > a.maxSteps {
			return nil, &errs.AnalysisTooDeepError{Owner: c.Name, Method: m.Name + m.Desc, Limit: a.maxSteps}
		}
		if steps%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("analysis of %s.%s%s: %w", c.Name, m.Name, m.Desc, err)
			}
		}

		insn := m.Instructions[w.index]
		if insn.Op.IsSubroutine() {
			return nil, &errs.UnsupportedInstructionError{Op: insn.Op, Owner: c.Name, Method: m.Name + m.Desc, Index: w.index}
		}

		// Handler forks use the locals as they were before the instruction.
		for _, h := range a.activeHandlers(m, w.index) {
			to := m.IndexOf(h.Handler)
			e := edge{from: w.index, to: to, handler: true}
			if to < 0 || taken[e] {
				continue
			}
			taken[e] = true
			stack = append(stack, work{index: to, st: in.catchState(w.index, insn, w.st, h.CatchType())})
		}

		after, err := in.step(w.index, insn, w.st)
		if err != nil {
			return nil, err
		}

		for _, next := range successors(m, w.index, insn) {
			e := edge{from: w.index, to: next}
			if taken[e] {
				continue
			}
			taken[e] = true
			stack = append(stack, work{index: next, st: after.clone()})
		}
	}

	a.log.WithFields(log.Fields{
		"class":  c.Name,
		"method": m.Name + m.Desc,
		"frames": res.Arena.Len(),
		"steps":  steps,
	}).Debug("analyzed method")
	return res, nil
}

// activeHandlers returns the try regions covering index whose handler can
// actually receive control: a region is skipped when an earlier covering
// region already catches a supertype of its type. Hierarchy lookups that
// fail leave the region active.
func (a *Analyzer) activeHandlers(m *ir.Method, index int) []*ir.TryRegion {
	var out []*ir.TryRegion
	for _, r := range m.TryRegions {
		if !r.Covers(m, index) {
			continue
		}
		shadowed := false
		for _, prev := range out {
			if prev.Type == "" {
				shadowed = true
				break
			}
			if a.resolver == nil || r.Type == "" {
				continue
			}
			if ok, err := a.resolver.IsAssignableFrom(prev.Type, r.Type); err == nil && ok {
				shadowed = true
				break
			}
		}
		if !shadowed {
			out = append(out, r)
		}
	}
	return out
}

// successors lists the normal control-flow successors of the instruction
// at index: jump and switch targets first, then the fallthrough.
func successors(m *ir.Method, index int, insn *ir.Instruction) []int {
	var out []int
	for _, t := range insn.Successors() {
		if i := m.IndexOf(t); i >= 0 {
			out = append(out, i)
		}
	}
	if !insn.Op.EndsFlow() && index+1 < len(m.Instructions) {
		out = append(out, index+1)
	}
	return out
}

// state is the simulated stack and locals on one path.
type state struct {
	stack  []frame.Value
	locals []frame.Value
}

func (s *state) clone() *state {
	return &state{
		stack:  append([]frame.Value(nil), s.stack...),
		locals: append([]frame.Value(nil), s.locals...),
	}
}

type interp struct {
	class  *ir.Class
	method *ir.Method
	res    *frame.Result
}

// seed records the receiver and parameter frames and returns the entry
// state. A constructor's receiver starts uninitialized.
func (in *interp) seed() (*state, error) {
	m := in.method
	args, err := ir.ArgumentTypes(m.Desc)
	if err != nil {
		return nil, fmt.Errorf("analysis of %s.%s: %w", in.class.Name, m.Name, err)
	}
	size := 0
	if !m.IsStatic() {
		size++
	}
	for _, t := range args {
		size += ir.TypeSize(t)
	}
	if m.MaxLocals > size {
		size = m.MaxLocals
	}

	st := &state{locals: make([]frame.Value, size)}
	for i := range st.locals {
		st.locals[i] = frame.Top
	}
	slot := 0
	param := func(kind value.Kind, typ string) {
		f := &frame.Frame{Category: frame.Param, Insn: -1, Var: slot, Desc: typ}
		id := in.res.Arena.Add(f)
		in.res.Params = append(in.res.Params, id)
		st.locals[slot] = frame.Value{Kind: kind, Type: typ, Source: id}
		slot++
		if kind == value.KindLong || kind == value.KindDouble {
			slot++
		}
	}
	if !m.IsStatic() {
		if m.Name == "<init>" {
			param(value.KindPending, in.class.Name)
		} else {
			param(value.KindRef, in.class.Name)
		}
	}
	for _, t := range args {
		param(value.KindOf(t), slotType(t))
	}
	for _, id := range in.res.Params {
		f := in.res.Arena.Get(id)
		f.Locals = append([]frame.Value(nil), st.locals...)
	}
	return st, nil
}

// catchState builds the handler entry state for an exception raised by
// insn: the locals from before insn and a single caught value.
func (in *interp) catchState(index int, insn *ir.Instruction, before *state, typ string) *state {
	f := &frame.Frame{Category: frame.Catch, Op: insn.Op, Insn: index, Desc: typ}
	id := in.res.Arena.Add(f)
	st := &state{
		stack:  []frame.Value{{Kind: value.KindRef, Type: typ, Source: id}},
		locals: append([]frame.Value(nil), before.locals...),
	}
	f.Stack = append([]frame.Value(nil), st.stack...)
	f.Locals = append([]frame.Value(nil), st.locals...)
	return st
}

// slotType is the Type recorded for a value of field descriptor fdesc:
// the internal name for references, the descriptor for primitives.
func slotType(fdesc string) string {
	return ir.InternalName(fdesc)
}
