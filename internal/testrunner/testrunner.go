// Package testrunner runs the project's test phases in order and enforces a
// minimum statement coverage for the unit phase.
package testrunner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultThreshold is the minimum total coverage, in percent.
const DefaultThreshold = 80.0

// Phase names.
const (
	PhaseUnit        = "unit"
	PhaseE2E         = "e2e"
	PhaseIntegration = "integration"
)

var ErrCoverageBelowThreshold = errors.New("coverage below threshold")

// Runner executes a command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec in Dir, copying output to Out when
// set.
type ExecRunner struct {
	Dir string
	Out io.Writer
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	var buf strings.Builder
	if r.Out != nil {
		cmd.Stdout = io.MultiWriter(&buf, r.Out)
	} else {
		cmd.Stdout = &buf
	}
	cmd.Stderr = cmd.Stdout
	err := cmd.Run()
	return buf.String(), err
}

// Phase is one go test invocation.
type Phase struct {
	Name string
	Args []string
}

// Options selects the phases to run.
type Options struct {
	// CoverProfile is written by the unit phase.
	CoverProfile string
	// Threshold is the minimum total coverage. Zero means DefaultThreshold;
	// a negative value disables the check.
	Threshold   float64
	Integration bool
	// Only, when set, restricts the run to the named phases.
	Only []string
}

// Phases returns the phases selected by o, in run order.
func (o Options) Phases() []Phase {
	profile := o.profile()
	all := []Phase{
		{Name: PhaseUnit, Args: []string{"test", "-race", "-count=1", "-coverprofile=" + profile, "./internal/...", "./pkg/..."}},
		{Name: PhaseE2E, Args: []string{"test", "-count=1", "./test/e2e/..."}},
	}
	if o.Integration || contains(o.Only, PhaseIntegration) {
		all = append(all, Phase{Name: PhaseIntegration, Args: []string{"test", "-count=1", "-tags", "integration", "./test/integration/..."}})
	}
	if len(o.Only) == 0 {
		return all
	}
	var out []Phase
	for _, p := range all {
		if contains(o.Only, p.Name) {
			out = append(out, p)
		}
	}
	return out
}

func (o Options) profile() string {
	if o.CoverProfile == "" {
		return "coverage.out"
	}
	return o.CoverProfile
}

func (o Options) threshold() float64 {
	if o.Threshold == 0 {
		return DefaultThreshold
	}
	return o.Threshold
}

// Result is the outcome of one phase.
type Result struct {
	Phase    string
	Passed   bool
	Duration time.Duration
	Err      error
}

// Report is the outcome of a run.
type Report struct {
	Results []Result
	// Coverage is the total coverage of the unit phase, when measured.
	Coverage        float64
	CoverageChecked bool
	Threshold       float64
}

// Passed reports whether every phase passed and coverage met the threshold.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return !r.CoverageChecked || r.Coverage >= r.Threshold
}

// Suite runs test phases through a Runner.
type Suite struct {
	runner Runner
	opts   Options
	logger zerolog.Logger
}

func New(runner Runner, opts Options, logger zerolog.Logger) *Suite {
	return &Suite{runner: runner, opts: opts, logger: logger.With().Str("component", "testrunner").Logger()}
}

// Run executes every phase even when an earlier one fails, then checks
// coverage if the unit phase passed. The returned error summarizes what
// failed; the report is always returned.
func (s *Suite) Run(ctx context.Context) (*Report, error) {
	report := &Report{Threshold: s.opts.threshold()}
	var failed []string

	for _, phase := range s.opts.Phases() {
		start := time.Now()
		s.logger.Info().Str("phase", phase.Name).Msg("running test phase")

		_, err := s.runner.Run(ctx, "go", phase.Args...)
		res := Result{Phase: phase.Name, Passed: err == nil, Duration: time.Since(start), Err: err}
		report.Results = append(report.Results, res)

		if err != nil {
			failed = append(failed, phase.Name)
			s.logger.Error().Err(err).Str("phase", phase.Name).Dur("duration", res.Duration).Msg("test phase failed")
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			continue
		}
		s.logger.Info().Str("phase", phase.Name).Dur("duration", res.Duration).Msg("test phase passed")

		if phase.Name == PhaseUnit && report.Threshold >= 0 {
			if err := s.checkCoverage(ctx, report); err != nil {
				failed = append(failed, "coverage")
			}
		}
	}

	if len(failed) > 0 {
		if len(failed) == 1 && failed[0] == "coverage" {
			return report, fmt.Errorf("%w: %.1f%% < %.1f%%", ErrCoverageBelowThreshold, report.Coverage, report.Threshold)
		}
		return report, fmt.Errorf("failed: %s", strings.Join(failed, ", "))
	}
	return report, nil
}

func (s *Suite) checkCoverage(ctx context.Context, report *Report) error {
	out, err := s.runner.Run(ctx, "go", "tool", "cover", "-func="+s.opts.profile())
	if err != nil {
		s.logger.Error().Err(err).Msg("read coverage profile")
		return err
	}
	total, err := ParseCoverage(out)
	if err != nil {
		s.logger.Error().Err(err).Msg("parse coverage")
		return err
	}
	report.Coverage = total
	report.CoverageChecked = true

	ev := s.logger.Info()
	if total < report.Threshold {
		ev = s.logger.Warn()
	}
	ev.Float64("coverage", total).Float64("threshold", report.Threshold).Msg("statement coverage")

	if total < report.Threshold {
		return ErrCoverageBelowThreshold
	}
	return nil
}

// ParseCoverage extracts the total from `go tool cover -func` output, whose
// last line reads "total:  (statements)  87.5%".
func ParseCoverage(out string) (float64, error) {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || fields[0] != "total:" {
			continue
		}
		pct := strings.TrimSuffix(fields[len(fields)-1], "%")
		v, err := strconv.ParseFloat(pct, 64)
		if err != nil {
			return 0, fmt.Errorf("parse coverage %q: %w", fields[len(fields)-1], err)
		}
		return v, nil
	}
	return 0, errors.New("no total line in coverage output")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
