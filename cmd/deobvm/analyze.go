package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/daimatz/deobvm/pkg/batch"
	"github.com/daimatz/deobvm/pkg/frame"
)

func newAnalyzeCmd(g *globalOptions) *cobra.Command {
	var opts batch.Options
	var cborPath string
	cmd := &cobra.Command{
		Use:   "analyze <class|jar|dir>...",
		Short: "Build the frame graph of every method in the inputs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.openSession(args)
			if err != nil {
				return err
			}
			r, err := batch.Analyze(cmd.Context(), s, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, it := range r.Items {
				name := it.Class.Name + "." + it.Method.Name + it.Method.Desc
				switch {
				case it.Skipped:
					fmt.Fprintf(out, "%s: skipped (timeout)\n", name)
				case it.Err != nil:
					fmt.Fprintf(out, "%s: error: %v\n", name, it.Err)
				default:
					fmt.Fprintf(out, "%s: %d frames\n", name, it.Result.Arena.Len())
				}
			}

			if cborPath != "" {
				return writeExports(cborPath, r)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.Workers, "workers", "j", 0, "concurrent analyses (default GOMAXPROCS)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "per-method analysis budget, 0 for none")
	cmd.Flags().StringVar(&cborPath, "cbor", "", "write the frame graphs to this file as a CBOR sequence")
	return cmd
}

// writeExports writes one CBOR item per analyzed method.
func writeExports(path string, r *batch.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, it := range r.Items {
		if it.Result == nil {
			continue
		}
		data, err := frame.MarshalExport(frame.NewExport(it.Class.Name, it.Result))
		if err != nil {
			f.Close()
			return fmt.Errorf("export %s.%s: %w", it.Class.Name, it.Method.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
