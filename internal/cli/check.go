package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/autolock-cli/autolock/internal/filter"
)

var (
	checkInclude []string
	checkExclude []string
)

var checkCmd = &cobra.Command{
	Use:   "check <action>...",
	Short: "Show whether actions require a lock",
	Long: `Show whether each action requires a lock under the configured include
and exclude lists. Names are compared case-insensitively.

Example:
  autolock check nightly
  autolock check --exclude report report cleanup`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		include, exclude := cfg.Include, cfg.Exclude
		if cmd.Flags().Changed("include") {
			include = checkInclude
		}
		if cmd.Flags().Changed("exclude") {
			exclude = checkExclude
		}
		return runCheck(cmd.OutOrStdout(), args, include, exclude)
	},
}

func init() {
	checkCmd.Flags().StringSliceVar(&checkInclude, "include", nil, "actions that always require a lock")
	checkCmd.Flags().StringSliceVar(&checkExclude, "exclude", nil, "actions that never require a lock unless included")
}

func runCheck(out io.Writer, actions, include, exclude []string) error {
	policy := filter.NewPolicy(include, exclude)
	for _, action := range actions {
		verdict := "lock required"
		if !policy.Requires(action) {
			verdict = "no lock"
		}
		if err := writeOutput(out, "%s: %s\n", action, verdict); err != nil {
			return err
		}
	}
	return nil
}
