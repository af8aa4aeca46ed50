package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/autolock-cli/autolock/internal/lock"
	"github.com/autolock-cli/autolock/internal/util"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove stale lock files",
	Long: `Remove lock files whose advisory lock is no longer held. These are left
behind when a process holding a lock is killed. Held locks are never touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClean(cmd.OutOrStdout(), runtimeDir)
	},
}

func runClean(out io.Writer, dir string) error {
	removed, err := lock.Clean(dir)
	for _, info := range removed {
		logger.Debug("removed stale lock", "path", info.Path, "pid", info.PID)
		if werr := writeOutput(out, "removed %s (pid %d)\n", info.Name, info.PID); werr != nil {
			return werr
		}
	}
	if err != nil {
		return util.WrapError(err, "failed to clean locks")
	}
	if len(removed) == 0 {
		return writeOutput(out, "No stale locks in %s\n", dir)
	}
	return nil
}
