package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/livingplaybook/playbook/internal/config"
	"github.com/livingplaybook/playbook/internal/engine"
	"github.com/livingplaybook/playbook/internal/lists"
)

type app struct {
	cfgFile string
	verbose bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "playbook",
		Short:         "Living Playbook catalog search and maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (.yaml, .yml or .toml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		a.serveCmd(),
		a.searchCmd(),
		a.tagsCmd(),
		a.exportCmd(),
		a.sortCmd(),
		a.assignUIDsCmd(),
		a.copyFieldCmd(),
		a.changelogCmd(),
		a.listsCmd(),
	)
	return root
}

// load reads the config and builds the logger; CLI logs go to stderr.
func (a *app) load() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return cfg, nil, err
	}
	log := cfg.NewLogger()
	log.SetOutput(os.Stderr)
	if a.verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return cfg, log, nil
}

func openLists(cfg config.Config, log logrus.FieldLogger) (lists.Store, error) {
	store, err := lists.Open(cfg.Lists.Backend, cfg.Lists.Path, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open list store")
	}
	return store, nil
}

// catalogPath picks the --catalog override, else the edition's file.
func catalogPath(cfg config.Config, override, db string) (string, error) {
	if override != "" {
		return override, nil
	}
	if db == "" || db == engine.DefaultEdition {
		return cfg.Catalog.Path, nil
	}
	path, ok := cfg.Catalog.Editions[db]
	if !ok {
		return "", errors.Errorf("unknown edition %q", db)
	}
	return path, nil
}
