package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"parentenv/config"
	"parentenv/inject"
	"parentenv/process"
	"parentenv/putenv"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/spf13/cobra"
)

var log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "putenv"))

var defaults = config.Config{
	MaxLength:       inject.StandaloneCeiling,
	ContinueOnError: true,
}

type putenvFactory func(cfg putenv.Config) *putenv.Putenv

func main() {
	if err := newRootCmd(putenv.New).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(factory putenvFactory) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "putenv <pid> [<name> <value> ...]",
		Short: "Set environment variables in a running process",
		Long: `Sets environment variables in another process.

With name/value pairs each pair is applied in order. With only a pid, records
are read from stdin: a name line, then a value line whose first character is
a marker and is dropped. ::QUIT or an empty line ends the session.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags(), configFile, defaults)
			if err != nil {
				return err
			}
			return run(cmd, factory, cfg, args)
		},
	}

	config.RegisterFlags(cmd.Flags(), defaults)
	cmd.Flags().StringVar(&configFile, "config", "", "Optional settings file (yaml, json or toml)")

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd
}

func run(cmd *cobra.Command, factory putenvFactory, cfg config.Config, args []string) error {
	p := factory(putenv.Config{
		MaxLength:       cfg.MaxLength,
		ContinueOnError: cfg.ContinueOnError,
		AncestorSteps:   cfg.Ancestor,
		VerifyCleanup:   cfg.VerifyCleanup,
		TracePayload:    cfg.TracePayload,
	})

	var pid process.ProcessID
	if cfg.Ancestor > 0 {
		ancestor, err := p.Ancestor()
		if err != nil {
			return failure(cfg, err)
		}
		pid = ancestor
	} else {
		if len(args) == 0 {
			return usage(cmd, cfg)
		}
		n, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil || n == 0 {
			return usage(cmd, cfg)
		}
		pid = process.ProcessID(n)
		args = args[1:]
	}

	var (
		summary putenv.Summary
		err     error
	)
	if len(args) == 0 {
		log.Debugln("reading assignments for pid", pid, "from stdin")
		summary, err = p.Interactive(pid, cmd.InOrStdin())
	} else {
		summary, err = p.Batch(pid, args)
	}

	if errors.Is(err, putenv.ErrUsage) {
		return usage(cmd, cfg)
	}
	log.Infoln("pid", pid, ":", summary.String())
	if err != nil {
		return failure(cfg, err)
	}
	if summary.Failed > 0 && !cfg.ContinueOnError {
		return fmt.Errorf("%d assignments failed", summary.Failed)
	}
	return nil
}

// usage prints the usage line; it is only an error when failures are fatal
func usage(cmd *cobra.Command, cfg config.Config) error {
	fmt.Fprintln(cmd.OutOrStdout(), putenv.ErrUsage.Error())
	if cfg.ContinueOnError {
		return nil
	}
	return putenv.ErrUsage
}

func failure(cfg config.Config, err error) error {
	if cfg.ContinueOnError {
		log.Warn("giving up: ", err)
		return nil
	}
	return err
}
