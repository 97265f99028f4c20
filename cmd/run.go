package cmd

import (
	"errors"
	"fmt"

	"github.com/Norgate-AV/polysched/internal/pipeline"
	"github.com/Norgate-AV/polysched/internal/server"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <program> <schedule>",
	Short: "Evaluate a schedule locally",
	Long: `Apply a schedule to a registered program and print the serialized result.
The program may be given by name or by numeric id. With --operation annotations
the program description is printed instead and the schedule may be omitted.`,
	Example: `  polysched run function_blur_MINI "P(L0,comps=['comp_blur'])"
  polysched run 550013 "S(L0,L1,0,0,comps=['comp00'])" -o execution`,
	Args:         cobra.RangeArgs(1, 2),
	RunE:         runRun,
	SilenceUsage: true,
}

func init() {
	runCmd.Flags().StringP("operation", "o", "legality", "Operation to perform (legality, execution, annotations)")
	runCmd.Flags().Duration("run-timeout", 0, "Upper bound for one wrapper run")
	runCmd.Flags().String("cc", "", "C compiler")
	runCmd.Flags().Bool("openmp", true, "Compile with OpenMP")
}

func runRun(cmd *cobra.Command, args []string) error {
	flag, _ := cmd.Flags().GetString("operation")
	op, err := pipeline.ParseOperation(flag)
	if err != nil {
		return err
	}

	if len(args) < 2 && op != pipeline.Annotations {
		return fmt.Errorf("requires a schedule argument")
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.pipeline()
	if err != nil {
		return err
	}

	req := server.Request{Name: args[0], Operation: op}
	if len(args) == 2 {
		req.Schedule = args[1]
	}

	d := server.NewDispatcher(a.registry, p, 1, a.logger)
	res, err := d.Dispatch(commandContext(cmd), req)
	if err != nil && !errors.Is(err, server.ErrCancelled) {
		return err
	}

	out := cmd.OutOrStdout()
	if op == pipeline.Annotations {
		fmt.Fprintln(out, res.IR)
		return nil
	}

	fmt.Fprintln(out, res.Serialize())
	return err
}
