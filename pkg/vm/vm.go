// Package vm is the concrete interpreter. It executes analyzed methods on
// real values, asking a provider.Chain for everything bytecode alone cannot
// answer: calls, fields, reference equality and type tests.
package vm

import (
	"context"
	"fmt"

	"github.com/apex/log"

	"github.com/daimatz/deobvm/pkg/errs"
	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/provider"
	"github.com/daimatz/deobvm/pkg/session"
	"github.com/daimatz/deobvm/pkg/value"
)

// ctxCheckInterval is how many instructions pass between context checks.
const ctxCheckInterval = 1024

// VM executes methods of one session. It is not safe for concurrent use.
type VM struct {
	session  *session.Session
	chain    *provider.Chain
	log      log.Interface
	maxInsns int

	executed    int
	initialized map[string]bool
	failed      map[string]bool
}

// New creates a VM over the standard provider chain. The VM registers its
// own ExecutionProvider after any providers passed with provider.WithFirst,
// so those can intercept calls into analyzed code.
func New(s *session.Session, opts ...provider.Option) *VM {
	v := &VM{
		session:     s,
		log:         s.Log,
		maxInsns:    s.Config.Execution.MaxInstructions,
		initialized: make(map[string]bool),
		failed:      make(map[string]bool),
	}
	opts = append(opts, provider.WithFirst(&ExecutionProvider{vm: v}))
	v.chain = provider.Standard(s, opts...)
	return v
}

// Chain returns the provider chain the VM dispatches to.
func (v *VM) Chain() *provider.Chain {
	return v.chain
}

// Execute runs m of class with the given arguments. receiver is ignored
// for static methods. A guest exception escaping m is returned as
// *errs.GuestExecutionError.
func (v *VM) Execute(ctx context.Context, class *ir.Class, m *ir.Method, args []value.Value, receiver value.Value) (value.Value, error) {
	if !m.HasCode() {
		return value.Value{}, fmt.Errorf("execute %s.%s%s: method has no code", class.Name, m.Name, m.Desc)
	}
	v.executed = 0
	pctx := provider.NewContext(ctx, v.session, v.chain)
	if err := v.ensureInit(pctx, class.Name); err != nil {
		return value.Value{}, err
	}
	ret, err := v.executeMethod(pctx, class, m, receiver, args)
	entry := v.log.WithFields(log.Fields{
		"class":        class.Name,
		"method":       m.Name + m.Desc,
		"instructions": v.executed,
	})
	if err != nil {
		entry.WithError(err).Debug("execution failed")
		return value.Value{}, err
	}
	entry.Debug("executed method")
	return ret, nil
}

// executeMethod runs one activation of m on the emulated call stack.
func (v *VM) executeMethod(ctx *provider.Context, class *ir.Class, m *ir.Method, receiver value.Value, args []value.Value) (value.Value, error) {
	if err := ctx.Enter(class.Name, m.Name, m.Desc); err != nil {
		return value.Value{}, err
	}
	defer ctx.Leave()

	frame, err := newActivation(class, m, receiver, args)
	if err != nil {
		return value.Value{}, err
	}

	for {
		if frame.PC >= len(m.Instructions) {
			return value.Value{}, fmt.Errorf("%s.%s%s: execution fell off the end of the code", class.Name, m.Name, m.Desc)
		}
		v.executed++
		if v.maxInsns > 0 && v.executed > v.maxInsns {
			return value.Value{}, &errs.AnalysisTooDeepError{Owner: class.Name, Method: m.Name + m.Desc, Limit: v.maxInsns}
		}
		if v.executed%ctxCheckInterval == 0 {
			if err := ctx.Ctx.Err(); err != nil {
				return value.Value{}, fmt.Errorf("execution of %s.%s%s: %w", class.Name, m.Name, m.Desc, err)
			}
		}

		frame.cur = frame.PC
		frame.PC++
		retVal, hasReturn, err := v.step(ctx, frame)
		if err == nil {
			if hasReturn {
				return retVal, nil
			}
			continue
		}

		g, ok := isGuest(guestError(ctx, err))
		if !ok {
			return value.Value{}, err
		}
		h, herr := v.findHandler(frame, g.Thrown)
		if herr != nil {
			return value.Value{}, herr
		}
		if h < 0 {
			return value.Value{}, g
		}
		frame.Catch(g.Thrown)
		frame.PC = h
	}
}

// step executes the current instruction, turning Frame panics into errors.
func (v *VM) step(ctx *provider.Context, frame *Frame) (ret value.Value, hasReturn bool, err error) {
	insn := frame.Method.Instructions[frame.cur]
	defer func() {
		switch p := recover().(type) {
		case nil:
		case frameError:
			err = fmt.Errorf("%s.%s%s #%d %s: %s", frame.Class.Name, frame.Method.Name, frame.Method.Desc, frame.cur, insn.Op, p.msg)
		case misuse:
			err = &errs.UninitializedValueMisuseError{Type: p.typ, Op: insn.Op, Owner: frame.Class.Name, Index: frame.cur}
		default:
			panic(p)
		}
	}()
	return v.executeInstruction(ctx, frame, insn)
}

// newActivation lays out the receiver and arguments in the locals of a
// fresh frame, wide values taking two slots.
func newActivation(class *ir.Class, m *ir.Method, receiver value.Value, args []value.Value) (*Frame, error) {
	types, err := ir.ArgumentTypes(m.Desc)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", class.Name, m.Name, err)
	}
	if len(types) != len(args) {
		return nil, fmt.Errorf("%s.%s%s: got %d arguments, want %d", class.Name, m.Name, m.Desc, len(args), len(types))
	}
	size := 0
	if !m.IsStatic() {
		size++
	}
	for _, t := range types {
		size += ir.TypeSize(t)
	}

	frame := NewFrame(class, m, size)
	slot := 0
	if !m.IsStatic() {
		frame.Locals[0] = receiver
		slot++
	}
	for i, t := range types {
		frame.Locals[slot] = args[i]
		slot += ir.TypeSize(t)
	}
	return frame, nil
}

// ensureInit runs the static initializers of an analyzed class and its
// analyzed superclasses once per VM. Other classes need no initialization.
// An initializer that throws leaves the class erroneous: the exception is
// wrapped in ExceptionInInitializerError unless it is an Error, and later
// uses throw NoClassDefFoundError.
func (v *VM) ensureInit(ctx *provider.Context, name string) error {
	c, ok := v.session.Class(name)
	if !ok {
		return nil
	}
	if v.failed[name] {
		return ctx.Throw(excNoClassDef, "Could not initialize class "+dotted(name))
	}
	if v.initialized[name] {
		return nil
	}
	v.initialized[name] = true
	if c.Super != "" {
		if err := v.ensureInit(ctx, c.Super); err != nil {
			return err
		}
	}
	clinit := c.FindMethod("<clinit>", "()V")
	if clinit == nil || !clinit.HasCode() {
		return nil
	}
	v.log.WithField("class", name).Debug("running static initializer")
	if _, err := v.executeMethod(ctx, c, clinit, value.Value{}, nil); err != nil {
		v.failed[name] = true
		guest, ok := isGuest(err)
		if !ok {
			return fmt.Errorf("initialize %s: %w", name, err)
		}
		if isError, _ := v.session.Resolver.IsAssignableFrom(excError, value.TypeOf(guest.Thrown)); isError {
			return guest
		}
		return ctx.ThrowCaused(excInitializer, "", guest.Thrown)
	}
	return nil
}

// executeLdc pushes an ldc constant.
func (v *VM) executeLdc(frame *Frame, insn *ir.Instruction) error {
	c, err := value.FromConstant(insn.Const)
	if err != nil {
		return fmt.Errorf("ldc: %w", err)
	}
	frame.Push(c)
	return nil
}

func fieldRef(insn *ir.Instruction) provider.FieldRef {
	return provider.FieldRef{
		Owner:  insn.Owner,
		Name:   insn.Name,
		Desc:   insn.Desc,
		Static: insn.Op == ir.OpGetstatic || insn.Op == ir.OpPutstatic,
	}
}

// executeGetstatic handles the getstatic instruction.
func (v *VM) executeGetstatic(ctx *provider.Context, frame *Frame, insn *ir.Instruction) error {
	if err := v.ensureInit(ctx, insn.Owner); err != nil {
		return err
	}
	val, err := v.chain.GetField(ctx, fieldRef(insn), value.NullValue())
	if err != nil {
		return err
	}
	frame.Push(val)
	return nil
}

// executePutstatic handles the putstatic instruction.
func (v *VM) executePutstatic(ctx *provider.Context, frame *Frame, insn *ir.Instruction) error {
	val := frame.Pop()
	if err := v.ensureInit(ctx, insn.Owner); err != nil {
		return err
	}
	return v.chain.PutField(ctx, fieldRef(insn), value.NullValue(), val)
}

// executeGetfield handles the getfield instruction.
func (v *VM) executeGetfield(ctx *provider.Context, frame *Frame, insn *ir.Instruction) error {
	obj := frame.Pop()
	if obj.IsNull() {
		return ctx.NullPointer(fmt.Sprintf("Cannot read field %q because value is null", insn.Name))
	}
	val, err := v.chain.GetField(ctx, fieldRef(insn), obj)
	if err != nil {
		return err
	}
	frame.Push(val)
	return nil
}

// executePutfield handles the putfield instruction.
func (v *VM) executePutfield(ctx *provider.Context, frame *Frame, insn *ir.Instruction) error {
	val := frame.Pop()
	obj := frame.Pop()
	if obj.IsNull() {
		return ctx.NullPointer(fmt.Sprintf("Cannot assign field %q because value is null", insn.Name))
	}
	return v.chain.PutField(ctx, fieldRef(insn), obj, val)
}

// executeInvoke handles the four invoke instructions and invokedynamic.
// A constructor call on a pending receiver initializes every copy of it
// in the frame with the object the provider returns.
func (v *VM) executeInvoke(ctx *provider.Context, frame *Frame, insn *ir.Instruction) error {
	types, err := ir.ArgumentTypes(insn.Desc)
	if err != nil {
		return fmt.Errorf("%s: %w", insn.Op, err)
	}
	call := &provider.Call{
		Op:            insn.Op,
		Owner:         insn.Owner,
		Name:          insn.Name,
		Desc:          insn.Desc,
		Args:          frame.PopN(len(types)),
		Bootstrap:     insn.Bootstrap,
		BootstrapArgs: insn.BootstrapArgs,
	}

	var pending *value.Pending
	if call.HasReceiver() {
		recv := frame.PopAny()
		if recv.IsPending() {
			if insn.Op != ir.OpInvokespecial || !call.IsConstructor() {
				panic(misuse{recv.PendingType()})
			}
			pending = recv.Ref.(*value.Pending)
		} else if recv.IsNull() {
			return ctx.NullPointer(fmt.Sprintf("Cannot invoke \"%s.%s()\" because value is null", dotted(insn.Owner), insn.Name))
		}
		call.Receiver = recv
	} else if insn.Op == ir.OpInvokestatic {
		if err := v.ensureInit(ctx, insn.Owner); err != nil {
			return err
		}
	}

	ret, err := v.chain.Invoke(ctx, call)
	if err != nil {
		return err
	}

	if pending != nil {
		if ret.Kind != value.KindRef {
			return fmt.Errorf("%s: constructor returned %s instead of an object", call, ret.Kind)
		}
		frame.Initialize(pending, ret)
		return nil
	}
	if !ir.IsVoidReturn(insn.Desc) {
		if ret.IsPending() {
			return fmt.Errorf("%s: returned an uninitialized value", call)
		}
		frame.Push(ret)
	}
	return nil
}

// executeNew handles the new instruction.
func (v *VM) executeNew(ctx *provider.Context, frame *Frame, insn *ir.Instruction) error {
	if err := v.ensureInit(ctx, insn.Desc); err != nil {
		return err
	}
	frame.Push(value.PendingValue(insn.Desc))
	return nil
}
