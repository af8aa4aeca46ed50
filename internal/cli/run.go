package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/autolock-cli/autolock/internal/config"
	"github.com/autolock-cli/autolock/internal/filter"
	"github.com/autolock-cli/autolock/internal/guard"
	"github.com/autolock-cli/autolock/internal/lock"
	"github.com/autolock-cli/autolock/internal/util"
)

var (
	runCommandName string
	runActionName  string
	runMode        string
	runInclude     []string
	runExclude     []string
)

var runCmd = &cobra.Command{
	Use:   "run --action <name> [flags] -- <program> [args...]",
	Short: "Run a program as a guarded action",
	Long: `Run a program as an action of a command, holding the action's lock for
the whole run. If another process holds the lock the program is not started
and autolock exits with status 3. Otherwise the program's exit status is
returned.

Example:
  autolock run --command report --action daily -- ./report.sh --full
  autolock run --action sync --mode exclusive -- rsync -a src/ dst/`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions{
			command:    runCommandName,
			action:     runActionName,
			mode:       cfg.LockMode,
			include:    cfg.Include,
			exclude:    cfg.Exclude,
			runtimeDir: runtimeDir,
		}
		if cmd.Flags().Changed("mode") {
			opts.mode = runMode
		}
		if cmd.Flags().Changed("include") {
			opts.include = runInclude
		}
		if cmd.Flags().Changed("exclude") {
			opts.exclude = runExclude
		}
		return runGuarded(cmd.Context(), opts, args, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	runCmd.Flags().StringVar(&runCommandName, "command", "", "command name used in the lock file name (default: program base name)")
	runCmd.Flags().StringVar(&runActionName, "action", "", "action name used in the lock file name")
	runCmd.Flags().StringVar(&runMode, "mode", "", "lock mode, e.g. exclusive|nonblocking or 6")
	runCmd.Flags().StringSliceVar(&runInclude, "include", nil, "actions that always require a lock")
	runCmd.Flags().StringSliceVar(&runExclude, "exclude", nil, "actions that never require a lock unless included")
	_ = runCmd.MarkFlagRequired("action")
	// Everything after the program name belongs to the program
	runCmd.Flags().SetInterspersed(false)
}

type runOptions struct {
	command    string
	action     string
	mode       string
	include    []string
	exclude    []string
	runtimeDir string
}

// newInterceptor validates opts and builds the interceptor for one run
func newInterceptor(opts runOptions, program string) (*guard.Interceptor, error) {
	if opts.command == "" {
		opts.command = filepath.Base(program)
	}
	if err := validateName("command", opts.command); err != nil {
		return nil, err
	}
	if err := validateName("action", opts.action); err != nil {
		return nil, err
	}
	if opts.runtimeDir == "" {
		opts.runtimeDir = config.DefaultRuntimeDir()
	}

	mode, err := lock.ParseMode(opts.mode)
	if err != nil {
		return nil, err
	}
	locker, err := lock.NewGuard(mode)
	if err != nil {
		return nil, err
	}

	policy := filter.NewPolicy(opts.include, opts.exclude)
	return guard.New(opts.command, opts.runtimeDir, locker, policy, logger), nil
}

func runGuarded(ctx context.Context, opts runOptions, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	interceptor, err := newInterceptor(opts, args[0])
	if err != nil {
		return err
	}

	return interceptor.Run(opts.action, func() error {
		return execProgram(ctx, args, stdin, stdout, stderr)
	})
}

// execProgram runs args[0] with the remaining args, forwarding interrupt and
// terminate signals so the lock is still released after the program exits.
func execProgram(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c := exec.CommandContext(ctx, args[0], args[1:]...)
	c.Stdin = stdin
	c.Stdout = stdout
	c.Stderr = stderr

	if err := c.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", args[0], err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case sig := <-sigs:
				_ = c.Process.Signal(sig)
			case <-done:
				return
			}
		}
	}()

	err := c.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// Terminated by a signal
			code = util.ExitError
		}
		return &util.ExitStatus{Code: code}
	}
	return err
}

func validateName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %s name must not be empty", util.ErrInvalidInput, kind)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %s name %q must not contain path separators", util.ErrInvalidInput, kind, name)
	}
	return nil
}
