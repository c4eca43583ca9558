package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/livingplaybook/playbook/internal/catalog"
	"github.com/livingplaybook/playbook/internal/changelog"
	"github.com/livingplaybook/playbook/internal/storage"
)

// save exports c to path, or to stdout when path is "-".
func save(cmd *cobra.Command, c *catalog.Catalog, path string) error {
	data, err := c.Export()
	if err != nil {
		return err
	}
	if path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return storage.WriteFile(path, data, false)
}

func (a *app) exportCmd() *cobra.Command {
	var (
		cf     catalogFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog as indented JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.load()
			if err != nil {
				return err
			}
			path, err := catalogPath(cfg, cf.path, cf.db)
			if err != nil {
				return err
			}
			c, err := catalog.LoadFile(path)
			if err != nil {
				return err
			}
			return save(cmd, c, output)
		},
	}

	cf.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file; .zst compresses")
	return cmd
}

func (a *app) sortCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "sort FILE...",
		Short: "Sort catalog games by name, in place",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" && len(args) > 1 {
				return errors.New("--output needs exactly one input file")
			}
			for _, path := range args {
				c, err := catalog.LoadFile(path)
				if err != nil {
					return err
				}
				sorted, err := c.SortByName()
				if err != nil {
					return err
				}
				dest := path
				if output != "" {
					dest = output
				}
				if err := save(cmd, sorted, dest); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Sorted %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of in place")
	return cmd
}

func (a *app) assignUIDsCmd() *cobra.Command {
	var mainPath string

	cmd := &cobra.Command{
		Use:   "assign-uids FILE...",
		Short: "Fill missing uids from the main catalog, matching by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mainPath == "" {
				cfg, _, err := a.load()
				if err != nil {
					return err
				}
				mainPath = cfg.Catalog.Path
			}
			ref, err := catalog.LoadFile(mainPath)
			if err != nil {
				return err
			}

			stderr := cmd.ErrOrStderr()
			for _, path := range args {
				c, err := catalog.LoadFile(path)
				if err != nil {
					return err
				}
				out, report, err := c.AssignUIDs(ref)
				if err != nil {
					return errors.Wrap(err, path)
				}
				for _, m := range report.Mismatches {
					fmt.Fprintf(stderr, "UID mismatch in %s: %s\n", path, m)
				}
				if report.Assigned == 0 {
					fmt.Fprintf(stderr, "No changes needed for %s\n", path)
					continue
				}
				if err := save(cmd, out, path); err != nil {
					return err
				}
				fmt.Fprintf(stderr, "Updated %d UIDs in %s\n", report.Assigned, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mainPath, "main", "", "main catalog (default catalog.path)")
	return cmd
}

func (a *app) copyFieldCmd() *cobra.Command {
	var from, field string

	cmd := &cobra.Command{
		Use:   "copy-field FILE",
		Short: "Copy a field from same-named games of another catalog",
		Example: "  playbook copy-field --from living_playbook_2001.json --field gameVariations living_playbook.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := catalog.LoadFile(from)
			if err != nil {
				return err
			}
			dst, err := catalog.LoadFile(args[0])
			if err != nil {
				return err
			}
			out, n, err := dst.CopyField(src, field)
			if err != nil {
				return err
			}
			if err := save(cmd, out, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Copied %s into %d games\n", field, n)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "catalog to copy from")
	cmd.Flags().StringVar(&field, "field", "gameVariations", "field to copy")
	cmd.MarkFlagRequired("from")
	return cmd
}

func (a *app) changelogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "changelog OLD NEW",
		Short: "Describe what changed between two catalog files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			old, err := catalog.LoadFile(args[0])
			if err != nil {
				return err
			}
			next, err := catalog.LoadFile(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), changelog.Generate(old, next))
			return nil
		},
	}
}
