package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/daimatz/deobvm/pkg/errs"
	"github.com/daimatz/deobvm/pkg/ir"
	"github.com/daimatz/deobvm/pkg/native"
	"github.com/daimatz/deobvm/pkg/provider"
	"github.com/daimatz/deobvm/pkg/value"
	"github.com/daimatz/deobvm/pkg/vm"
)

func newExecuteCmd(g *globalOptions) *cobra.Command {
	var target string
	var rawArgs []string
	cmd := &cobra.Command{
		Use:   "execute --method owner.name(desc) <class|jar|dir>...",
		Short: "Run a static method of the inputs and print its result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, desc, err := splitMethod(target)
			if err != nil {
				return err
			}
			s, err := g.openSession(args)
			if err != nil {
				return err
			}
			c, ok := s.Class(owner)
			if !ok {
				return fmt.Errorf("class %s is not among the inputs", owner)
			}
			m := c.FindMethod(name, desc)
			if m == nil || !m.IsStatic() {
				return fmt.Errorf("no static method %s.%s%s", owner, name, desc)
			}
			vals, err := parseArgs(desc, rawArgs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			v := vm.New(s, provider.WithOutput(out, cmd.ErrOrStderr()))
			ret, err := v.Execute(cmd.Context(), c, m, vals, value.Top())
			if err != nil {
				var guest *errs.GuestExecutionError
				if errors.As(err, &guest) {
					log.WithField("trace", strings.Join(guest.Trace, " <- ")).Debug("guest exception")
				}
				return err
			}
			if !ir.IsVoidReturn(desc) {
				fmt.Fprintln(out, native.Format(ret, ir.ReturnType(desc)))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&target, "method", "m", "", "method to run, e.g. a/B.decrypt(I)Ljava/lang/String;")
	cmd.Flags().StringArrayVarP(&rawArgs, "arg", "a", nil, "argument value, in declaration order")
	_ = cmd.MarkFlagRequired("method")
	return cmd
}

// splitMethod splits "owner.name(desc)" at the last dot before the
// descriptor.
func splitMethod(s string) (owner, name, desc string, err error) {
	paren := strings.IndexByte(s, '(')
	if paren < 0 {
		return "", "", "", fmt.Errorf("method %q has no descriptor", s)
	}
	dot := strings.LastIndexByte(s[:paren], '.')
	if dot <= 0 {
		return "", "", "", fmt.Errorf("method %q has no owner", s)
	}
	return s[:dot], s[dot+1 : paren], s[paren:], nil
}

// parseArgs converts command-line strings to values of the parameter types
// of desc. Only primitives and strings can be given.
func parseArgs(desc string, raw []string) ([]value.Value, error) {
	types, err := ir.ArgumentTypes(desc)
	if err != nil {
		return nil, err
	}
	if len(types) != len(raw) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", desc, len(types), len(raw))
	}
	out := make([]value.Value, len(types))
	for i, t := range types {
		v, err := parseArg(t, raw[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseArg(fdesc, s string) (value.Value, error) {
	switch fdesc {
	case "I", "S", "B":
		n, err := strconv.ParseInt(s, 0, 32)
		return value.IntValue(int32(n)), err
	case "C":
		units := ir.StringToUTF16(s)
		if len(units) != 1 {
			return value.Value{}, fmt.Errorf("%q is not a single char", s)
		}
		return value.IntValue(int32(units[0])), nil
	case "Z":
		b, err := strconv.ParseBool(s)
		return value.BoolValue(b), err
	case "J":
		n, err := strconv.ParseInt(s, 0, 64)
		return value.LongValue(n), err
	case "F":
		f, err := strconv.ParseFloat(s, 32)
		return value.FloatValue(float32(f)), err
	case "D":
		f, err := strconv.ParseFloat(s, 64)
		return value.DoubleValue(f), err
	case "Ljava/lang/String;":
		return value.NewString(s), nil
	}
	return value.Value{}, fmt.Errorf("cannot pass %s on the command line", fdesc)
}
