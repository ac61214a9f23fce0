// Package putenv sets environment variables in another running process,
// usually the caller's parent shell.
package putenv

import (
	"errors"
	"fmt"
	"io"

	"parentenv/inject"
	"parentenv/locator"
	"parentenv/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"go.uber.org/multierr"
)

var ErrUsage = errors.New("usage: putenv <pid> <name> <value> [<name> <value> ...]")

// Injector performs a single assignment in a target process
type Injector interface {
	Inject(pid process.ProcessID, name, value string) (inject.Result, error)
}

// Locator finds the process to modify
type Locator interface {
	FindAncestor(steps int) (process.ProcessID, error)
}

type Config struct {
	// MaxLength is the ceiling for names and values
	MaxLength int

	// ContinueOnError logs failed assignments in Batch and Interactive
	// instead of stopping at the first one
	ContinueOnError bool

	// AncestorSteps is how many generations up SetParent looks
	AncestorSteps int

	VerifyCleanup bool
	TracePayload  bool
}

// DefaultConfig is the embedded configuration: parent process, MAX_PATH
// ceiling, best effort.
func DefaultConfig() Config {
	return Config{
		MaxLength:       inject.MaxPathCeiling,
		ContinueOnError: true,
		AncestorSteps:   1,
	}
}

// Summary counts the outcomes of a Batch or Interactive session
type Summary struct {
	Applied int
	NoOp    int
	Failed  int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d applied, %d no-op, %d failed", s.Applied, s.NoOp, s.Failed)
}

type Putenv struct {
	cfg      Config
	injector Injector
	locator  Locator
	log      *logger.Logger
}

// New creates a Putenv over the platform injector and locator
func New(cfg Config) *Putenv {
	injector := inject.New(inject.Options{
		MaxLength:     cfg.MaxLength,
		VerifyCleanup: cfg.VerifyCleanup,
		TracePayload:  cfg.TracePayload,
	})
	return NewWithBackend(cfg, injector, locator.New())
}

func NewWithBackend(cfg Config, injector Injector, loc Locator) *Putenv {
	if cfg.AncestorSteps < 1 {
		cfg.AncestorSteps = 1
	}
	return &Putenv{
		cfg:      cfg,
		injector: injector,
		locator:  loc,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "putenv")),
	}
}

// Set assigns name=value in pid. It reports true when the target accepted
// the assignment and false when the target's call returned failure, e.g.
// deleting a variable that was not set.
func (p *Putenv) Set(pid process.ProcessID, name, value string) (bool, error) {
	result, err := p.injector.Inject(pid, name, value)
	if err != nil && !cleanupOnly(err) {
		return false, err
	}
	if err != nil {
		p.log.Warn("assignment of ", name, " in pid ", pid, " leaked resources: ", err)
	}
	return result == inject.Success, nil
}

// cleanupOnly reports whether every error aggregated in err is a cleanup
// failure, i.e. the assignment itself ran to completion
func cleanupOnly(err error) bool {
	for _, e := range multierr.Errors(err) {
		if !errors.Is(e, inject.ErrCleanupFailed) {
			return false
		}
	}
	return true
}

// Ancestor returns the pid SetParent would modify
func (p *Putenv) Ancestor() (process.ProcessID, error) {
	return p.locator.FindAncestor(p.cfg.AncestorSteps)
}

// SetParent assigns name=value in the configured ancestor of this process
func (p *Putenv) SetParent(name, value string) (bool, error) {
	pid, err := p.Ancestor()
	if err != nil {
		return false, err
	}
	return p.Set(pid, name, value)
}

// Batch applies name/value pairs in order
func (p *Putenv) Batch(pid process.ProcessID, pairs []string) (Summary, error) {
	if len(pairs) == 0 || len(pairs)%2 != 0 {
		return Summary{}, ErrUsage
	}

	var summary Summary
	for i := 0; i < len(pairs); i += 2 {
		if err := p.apply(&summary, pid, pairs[i], pairs[i+1]); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// Interactive applies records read from r until the session ends
func (p *Putenv) Interactive(pid process.ProcessID, r io.Reader) (Summary, error) {
	var summary Summary
	records := NewRecordReader(r)
	for {
		rec, ok, err := records.Next()
		if err != nil {
			return summary, err
		}
		if !ok {
			return summary, nil
		}
		if err := p.apply(&summary, pid, rec.Name, rec.Value); err != nil {
			return summary, err
		}
	}
}

func (p *Putenv) apply(summary *Summary, pid process.ProcessID, name, value string) error {
	applied, err := p.Set(pid, name, value)
	switch {
	case err != nil:
		summary.Failed++
		if !p.cfg.ContinueOnError {
			return fmt.Errorf("setting %s: %w", name, err)
		}
		p.log.Warn("setting ", name, " in pid ", pid, " failed: ", err)
	case applied:
		summary.Applied++
		p.log.Debugln("set", name, "in", pid)
	default:
		summary.NoOp++
		p.log.Debugln("no-op for", name, "in", pid)
	}
	return nil
}
