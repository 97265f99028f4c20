package cmd

import (
	"fmt"

	"github.com/Norgate-AV/polysched/internal/utils"
	"github.com/spf13/cobra"
)

var programsCmd = &cobra.Command{
	Use:          "programs",
	Short:        "List registered programs",
	Args:         cobra.NoArgs,
	RunE:         runPrograms,
	SilenceUsage: true,
}

func runPrograms(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	for _, name := range a.registry.Names() {
		if id, ok := utils.ProgramID(name); ok {
			fmt.Fprintf(out, "%s\t%d\n", name, id)
			continue
		}
		fmt.Fprintln(out, name)
	}

	return nil
}
