package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/livingplaybook/playbook/internal/lists"
)

// withStore runs fn against the configured list store.
func (a *app) withStore(fn func(cmd *cobra.Command, store lists.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, log, err := a.load()
		if err != nil {
			return err
		}
		store, err := openLists(cfg, log)
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(cmd, store, args)
	}
}

func parseUIDs(args []string) ([]int64, error) {
	uids := make([]int64, 0, len(args))
	for _, arg := range args {
		uid, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, errors.Errorf("invalid uid %q", arg)
		}
		uids = append(uids, uid)
	}
	return uids, nil
}

func (a *app) listsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Manage named game lists",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "ls",
			Short: "Show list names",
			Args:  cobra.NoArgs,
			RunE: a.withStore(func(cmd *cobra.Command, store lists.Store, args []string) error {
				names, err := store.Names(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "show NAME",
			Short: "Print the uids of a list",
			Args:  cobra.ExactArgs(1),
			RunE: a.withStore(func(cmd *cobra.Command, store lists.Store, args []string) error {
				uids, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return errors.Wrapf(err, "list %s", args[0])
				}
				for _, uid := range uids {
					fmt.Fprintln(cmd.OutOrStdout(), uid)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "add NAME UID...",
			Short: "Append uids, creating the list if needed",
			Args:  cobra.MinimumNArgs(2),
			RunE: a.withStore(func(cmd *cobra.Command, store lists.Store, args []string) error {
				uids, err := parseUIDs(args[1:])
				if err != nil {
					return err
				}
				for _, uid := range uids {
					if err := store.Add(cmd.Context(), args[0], uid); err != nil {
						return err
					}
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "rm NAME UID...",
			Short: "Remove uids from a list",
			Args:  cobra.MinimumNArgs(2),
			RunE: a.withStore(func(cmd *cobra.Command, store lists.Store, args []string) error {
				uids, err := parseUIDs(args[1:])
				if err != nil {
					return err
				}
				for _, uid := range uids {
					if err := store.Remove(cmd.Context(), args[0], uid); err != nil {
						return errors.Wrapf(err, "list %s", args[0])
					}
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "delete NAME",
			Short: "Delete a list",
			Args:  cobra.ExactArgs(1),
			RunE: a.withStore(func(cmd *cobra.Command, store lists.Store, args []string) error {
				return errors.Wrapf(store.Delete(cmd.Context(), args[0]), "list %s", args[0])
			}),
		},
	)
	return cmd
}
