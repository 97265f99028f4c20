package cmd

import (
	"fmt"
	"os"

	"github.com/Norgate-AV/polysched/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "polysched",
	Short: "Polyhedral schedule server",
	Long: `Apply loop transformation schedules to registered polyhedral programs,
check their legality and optionally compile and time the result.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON")
	rootCmd.PersistentFlags().StringP("work-dir", "w", "", "Directory for generated code and wrappers")
	rootCmd.PersistentFlags().StringP("programs-dir", "p", "", "Directory of extra program catalogues")
	rootCmd.PersistentFlags().Int("sample-extent", 0, "Values per iterator sampled by dependence analysis")
	rootCmd.PersistentFlags().String("wrapper-store", "", "Wrapper store driver (sqlite, bolt)")
	rootCmd.PersistentFlags().String("wrapper-db", "", "Wrapper store location")
	rootCmd.AddCommand(runCmd, serveCmd, programsCmd, wrappersCmd)
}
