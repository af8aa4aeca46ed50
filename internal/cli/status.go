package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/autolock-cli/autolock/internal/config"
	"github.com/autolock-cli/autolock/internal/lock"
	"github.com/autolock-cli/autolock/internal/util"
)

var (
	statusJSON bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List lock files and their holders",
	Long: `List the lock files under the runtime directory with the PID recorded in
each and whether its advisory lock is currently held. A file that is not held
was left behind by a process that exited without releasing it; remove such
files with 'autolock clean'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := cfg.OutputFormat
		if statusJSON {
			format = config.OutputJSON
		}
		return runStatus(cmd.OutOrStdout(), runtimeDir, format)
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")
}

type statusInfo struct {
	RuntimeDir string      `json:"runtime_dir"`
	Locks      []lock.Info `json:"locks"`
}

func runStatus(out io.Writer, dir, format string) error {
	infos, err := lock.Inspect(dir)
	if err != nil {
		return util.WrapError(err, "failed to inspect locks")
	}

	result := statusInfo{RuntimeDir: dir, Locks: infos}
	if result.Locks == nil {
		result.Locks = []lock.Info{}
	}

	if resolveFormat(format, out) == config.OutputJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		return writeOutput(out, "%s\n", payload)
	}

	if len(infos) == 0 {
		return writeOutput(out, "No locks in %s\n", dir)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if err := writeOutput(w, "NAME\tPID\tSTATE\tMODIFIED\n"); err != nil {
		return fmt.Errorf("failed to write table header: %w", err)
	}
	for _, info := range infos {
		state := "stale"
		if info.Held {
			state = "held"
		}
		pid := "-"
		if info.PID > 0 {
			pid = fmt.Sprintf("%d", info.PID)
		}
		if err := writeOutput(w, "%s\t%s\t%s\t%s\n", info.Name, pid, state, info.ModTime.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("failed to write lock: %w", err)
		}
	}
	return w.Flush()
}
