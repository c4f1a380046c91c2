package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"

	"github.com/daimatz/deobvm/pkg/config"
	"github.com/daimatz/deobvm/pkg/session"
)

type globalOptions struct {
	verbose bool
	config  string
	library []string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "deobvm",
		Short:         "Inspect, analyze and execute JVM bytecode",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetHandler(cli.New(os.Stderr))
			if opts.verbose {
				log.SetLevel(log.DebugLevel)
			} else {
				log.SetLevel(log.InfoLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "V", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&opts.config, "config", "c", "", "path to a deobvm.toml file")
	root.PersistentFlags().StringSliceVarP(&opts.library, "library", "L", nil, "extra jmod, jar or class directory searched for library classes")

	root.AddCommand(
		newHierarchyCmd(opts),
		newAnalyzeCmd(opts),
		newExecuteCmd(opts),
	)
	return root
}

// openSession loads the input classes and creates a session over them.
func (o *globalOptions) openSession(inputs []string) (*session.Session, error) {
	cfg := config.Default()
	if o.config != "" {
		var err error
		if cfg, err = config.Load(o.config); err != nil {
			return nil, err
		}
	}
	cfg.Hierarchy.Library = append(cfg.Hierarchy.Library, o.library...)

	classes, err := loadInputs(inputs)
	if err != nil {
		return nil, err
	}
	log.WithField("classes", len(classes)).Debug("loaded inputs")
	return session.New(cfg, classes)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("deobvm failed")
		stop()
		os.Exit(1)
	}
}
