package main

import (
	"fmt"
	"os"
	"strconv"

	"parentenv/process"
	"parentenv/waitset"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/spf13/cobra"
)

var log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "waitany"))

func main() {
	if err := newRootCmd(waitset.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(ws *waitset.WaitSet) *cobra.Command {
	var poll bool

	cmd := &cobra.Command{
		Use:   "waitany <pid> [<pid> ...]",
		Short: "Wait for the first of several processes to exit",
		Long: `Blocks until one of the given processes exits and prints
"<index> <pid> <exit code>" for it. With --poll and a single pid, reports
"running" instead of blocking when the process is still alive.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pids, err := parsePIDs(args)
			if err != nil {
				return err
			}
			if poll {
				return pollOne(cmd, ws, pids)
			}
			return waitAny(cmd, ws, pids)
		},
	}

	cmd.Flags().BoolVar(&poll, "poll", false, "Check a single pid without blocking")

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd
}

func parsePIDs(args []string) ([]process.ProcessID, error) {
	pids := make([]process.ProcessID, 0, len(args))
	for _, arg := range args {
		n, err := strconv.ParseUint(arg, 10, 32)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid pid %q", arg)
		}
		pids = append(pids, process.ProcessID(n))
	}
	return pids, nil
}

func openAll(ws *waitset.WaitSet, pids []process.ProcessID) ([]process.Handle, error) {
	handles := make([]process.Handle, 0, len(pids))
	for _, pid := range pids {
		h, err := ws.Open(pid)
		if err != nil {
			release(ws, handles...)
			return nil, fmt.Errorf("opening pid %d: %w", pid, err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func waitAny(cmd *cobra.Command, ws *waitset.WaitSet, pids []process.ProcessID) error {
	handles, err := openAll(ws, pids)
	if err != nil {
		return err
	}

	// On error WaitAny has closed nothing
	status, err := ws.WaitAny(handles, len(handles))
	if err != nil {
		release(ws, handles...)
		return err
	}

	fired := -1
	for i, h := range handles {
		if process.ProcessID(h.Value()) == status.PID {
			fired = i
			continue
		}
		release(ws, h)
	}

	if fired < 0 {
		return fmt.Errorf("signaled handle %d is not in the wait set", status.PID)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d %d %d\n", fired, pids[fired], status.Code)
	return nil
}

func pollOne(cmd *cobra.Command, ws *waitset.WaitSet, pids []process.ProcessID) error {
	if len(pids) != 1 {
		return fmt.Errorf("--poll takes exactly one pid, got %d", len(pids))
	}

	h, err := ws.Open(pids[0])
	if err != nil {
		return fmt.Errorf("opening pid %d: %w", pids[0], err)
	}

	status, err := ws.Wait(h, true)
	if err != nil {
		release(ws, h)
		return err
	}
	if status.IsZero() {
		release(ws, h)
		fmt.Fprintln(cmd.OutOrStdout(), "running")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "0 %d %d\n", pids[0], status.Code)
	return nil
}

// release closes handles the wait set did not consume
func release(ws *waitset.WaitSet, handles ...process.Handle) {
	for _, h := range handles {
		if err := ws.Close(h); err != nil {
			log.Warn("closing ", h, " failed: ", err)
		}
	}
}
