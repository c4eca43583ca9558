package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/livingplaybook/playbook/internal/engine"
)

type catalogFlags struct {
	path string
	db   string
}

func (f *catalogFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "catalog", "", "catalog file (overrides catalog.path)")
	cmd.Flags().StringVar(&f.db, "db", "", "edition name from catalog.editions")
}

// openEngine loads the selected catalog with the configured list store.
func (a *app) openEngine(f catalogFlags) (*engine.QueryEngine, func(), error) {
	cfg, log, err := a.load()
	if err != nil {
		return nil, nil, err
	}
	path, err := catalogPath(cfg, f.path, f.db)
	if err != nil {
		return nil, nil, err
	}
	store, err := openLists(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	qe, err := engine.OpenQueryEngine(path, store, log)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return qe, func() { store.Close() }, nil
}

func (a *app) searchCmd() *cobra.Command {
	var (
		cf      catalogFlags
		yes, no string
		idsOnly bool
	)

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search the catalog",
		Example: `  playbook search zip or freeze
  playbook search --yes Warmup --no Elimination 'not tag:Scene'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			qe, done, err := a.openEngine(cf)
			if err != nil {
				return err
			}
			defer done()

			out := cmd.OutOrStdout()
			for _, rec := range qe.Search(strings.Join(args, " "), engine.ParseTagFilter(yes, no)) {
				if idsOnly {
					fmt.Fprintln(out, rec.UID)
					continue
				}
				fmt.Fprintf(out, "%d\t%s\n", rec.UID, rec.Name)
			}
			return nil
		},
	}

	cf.register(cmd)
	cmd.Flags().StringVar(&yes, "yes", "", "comma-separated tags that must be present")
	cmd.Flags().StringVar(&no, "no", "", "comma-separated tags that must be absent")
	cmd.Flags().BoolVar(&idsOnly, "ids", false, "print uids only")
	return cmd
}

func (a *app) tagsCmd() *cobra.Command {
	var cf catalogFlags

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List tags with game counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			qe, done, err := a.openEngine(cf)
			if err != nil {
				return err
			}
			defer done()

			for _, tc := range qe.Tags() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", tc.Tag, tc.Count)
			}
			return nil
		},
	}

	cf.register(cmd)
	return cmd
}
