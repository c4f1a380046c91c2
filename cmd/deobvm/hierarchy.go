package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newHierarchyCmd(g *globalOptions) *cobra.Command {
	var class string
	var common []string
	cmd := &cobra.Command{
		Use:   "hierarchy <class|jar|dir>...",
		Short: "Resolve the class hierarchy of the inputs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.openSession(args)
			if err != nil {
				return err
			}
			if err := s.Resolver.IndexAll(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(common) > 0 {
				if len(common) != 2 {
					return fmt.Errorf("--common takes exactly two class names")
				}
				cs, err := s.Resolver.CommonSuperclass(common[0], common[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, cs)
				return nil
			}

			if class != "" {
				up, err := s.Resolver.Ancestors(class)
				if err != nil {
					return err
				}
				down, err := s.Resolver.Descendants(class)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "ancestors:   %s\n", strings.Join(up, " "))
				fmt.Fprintf(out, "descendants: %s\n", strings.Join(down, " "))
				return nil
			}

			for _, c := range s.Classes.Classes() {
				line := c.Name + " extends " + c.Super
				if len(c.Interfaces) > 0 {
					line += " implements " + strings.Join(c.Interfaces, ", ")
				}
				fmt.Fprintln(out, line)
			}
			for _, name := range s.Classes.Removed() {
				fmt.Fprintf(out, "%s (pruned)\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "print the ancestors and descendants of this class")
	cmd.Flags().StringSliceVar(&common, "common", nil, "print the common superclass of two classes (a,b)")
	return cmd
}
