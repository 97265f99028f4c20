package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Norgate-AV/polysched/internal/cache"
	"github.com/Norgate-AV/polysched/internal/compiler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var wrappersCmd = &cobra.Command{
	Use:   "wrappers",
	Short: "Manage prebuilt wrapper binaries",
	Long: `Manage the wrapper store. Wrappers published here are fetched into the work
directory when a program is executed and no local wrapper exists.`,
}

var wrappersPutCmd = &cobra.Command{
	Use:          "put <program> <file>",
	Short:        "Store a wrapper binary for a program",
	Args:         cobra.ExactArgs(2),
	RunE:         runWrappersPut,
	SilenceUsage: true,
}

var wrappersGetCmd = &cobra.Command{
	Use:          "get <program>",
	Short:        "Write a stored wrapper into the work directory",
	Args:         cobra.ExactArgs(1),
	RunE:         runWrappersGet,
	SilenceUsage: true,
}

var wrappersListCmd = &cobra.Command{
	Use:          "list",
	Short:        "List stored wrappers",
	Args:         cobra.NoArgs,
	RunE:         runWrappersList,
	SilenceUsage: true,
}

var wrappersClearCmd = &cobra.Command{
	Use:          "clear",
	Short:        "Remove every stored wrapper",
	Args:         cobra.NoArgs,
	RunE:         runWrappersClear,
	SilenceUsage: true,
}

var wrappersRmCmd = &cobra.Command{
	Use:          "rm <program>",
	Short:        "Remove a stored wrapper",
	Args:         cobra.ExactArgs(1),
	RunE:         runWrappersRm,
	SilenceUsage: true,
}

func init() {
	wrappersGetCmd.Flags().String("out", "", "Output path (default <work-dir>/<program>_wrapper)")
	wrappersCmd.AddCommand(wrappersPutCmd, wrappersGetCmd, wrappersListCmd, wrappersRmCmd, wrappersClearCmd)
}

// withStore runs fn against the configured wrapper store
func withStore(cmd *cobra.Command, fn func(a *app, store cache.Store) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.openStore()
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("no wrapper store configured (set --wrapper-db or POLYSCHED_WRAPPER_DB)")
	}

	return fn(a, store)
}

func runWrappersPut(cmd *cobra.Command, args []string) error {
	program, file := args[0], args[1]

	return withStore(cmd, func(a *app, store cache.Store) error {
		blob, err := cache.ReadArtifact(file)
		if err != nil {
			return err
		}

		if err := store.Put(commandContext(cmd), program, blob); err != nil {
			return err
		}

		a.logger.Info("wrapper stored",
			zap.String("program", program),
			zap.String("hash", cache.HashBytes(blob)),
			zap.Int("size", len(blob)),
		)
		return nil
	})
}

func runWrappersGet(cmd *cobra.Command, args []string) error {
	program := args[0]

	return withStore(cmd, func(a *app, store cache.Store) error {
		blob, err := store.Get(commandContext(cmd), program)
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = compiler.WrapperPath(a.cfg.WorkDir, program)
		}

		if err := cache.WriteArtifact(out, blob); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	})
}

func runWrappersList(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(a *app, store cache.Store) error {
		entries, err := store.List(commandContext(cmd))
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PROGRAM\tSIZE\tHASH\tSTORED")
		for _, e := range entries {
			stored := "-"
			if !e.Timestamp.IsZero() {
				stored = e.Timestamp.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%d\t%.12s\t%s\n", e.Program, e.Size, e.Hash, stored)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		count, size, err := store.Stats()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d wrappers, %d bytes\n", count, size)
		return nil
	})
}

func runWrappersRm(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(a *app, store cache.Store) error {
		return store.Delete(commandContext(cmd), args[0])
	})
}

func runWrappersClear(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(a *app, store cache.Store) error {
		if err := store.Clear(); err != nil {
			return err
		}

		a.logger.Info("wrapper store cleared", zap.String("path", a.cfg.WrapperStore.Path))
		return nil
	})
}
