package testrunner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type call struct {
	name string
	args []string
}

// fakeRunner fails any command whose joined args contain a key of fail and
// answers "go tool cover" with coverOut.
type fakeRunner struct {
	calls    []call
	fail     map[string]bool
	coverOut string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	joined := strings.Join(args, " ")
	for key := range f.fail {
		if strings.Contains(joined, key) {
			return "FAIL", errors.New("exit status 1")
		}
	}
	if strings.HasPrefix(joined, "tool cover") {
		return f.coverOut, nil
	}
	return "ok", nil
}

const coverOutput = `github.com/carepulse/carepulse/internal/domain/scheduling/model.go:40:	ParseStatus		100.0%
github.com/carepulse/carepulse/internal/domain/scheduling/service.go:52:	CreateAppointment	91.7%
total:								(statements)		84.3%
`

func TestParseCoverage(t *testing.T) {
	got, err := ParseCoverage(coverOutput)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 84.3 {
		t.Errorf("expected 84.3, got %v", got)
	}

	if _, err := ParseCoverage("no totals here\n"); err == nil {
		t.Error("expected an error without a total line")
	}
	if _, err := ParseCoverage("total: (statements) abc%\n"); err == nil {
		t.Error("expected an error for a bad percentage")
	}
}

func TestOptions_Phases(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"default", Options{}, []string{PhaseUnit, PhaseE2E}},
		{"with integration", Options{Integration: true}, []string{PhaseUnit, PhaseE2E, PhaseIntegration}},
		{"only e2e", Options{Only: []string{PhaseE2E}}, []string{PhaseE2E}},
		{"only integration", Options{Only: []string{PhaseIntegration}}, []string{PhaseIntegration}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phases := tt.opts.Phases()
			if len(phases) != len(tt.want) {
				t.Fatalf("expected %v, got %+v", tt.want, phases)
			}
			for i, p := range phases {
				if p.Name != tt.want[i] {
					t.Errorf("phase %d: expected %s, got %s", i, tt.want[i], p.Name)
				}
			}
		})
	}
}

func TestOptions_UnitPhaseWritesProfile(t *testing.T) {
	phases := Options{CoverProfile: "out/cover.out"}.Phases()
	if !strings.Contains(strings.Join(phases[0].Args, " "), "-coverprofile=out/cover.out") {
		t.Errorf("unexpected unit args %v", phases[0].Args)
	}
	integration := Options{Integration: true}.Phases()[2]
	if !strings.Contains(strings.Join(integration.Args, " "), "-tags integration") {
		t.Errorf("expected the integration build tag, got %v", integration.Args)
	}
}

func TestSuite_AllPass(t *testing.T) {
	runner := &fakeRunner{coverOut: coverOutput}
	report, err := New(runner, Options{}, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Passed() || !report.CoverageChecked || report.Coverage != 84.3 {
		t.Errorf("unexpected report %+v", report)
	}
	// unit, cover, e2e
	if len(runner.calls) != 3 || runner.calls[1].args[0] != "tool" {
		t.Errorf("unexpected calls %+v", runner.calls)
	}
}

func TestSuite_CoverageBelowThreshold(t *testing.T) {
	runner := &fakeRunner{coverOut: "total:\t(statements)\t72.0%\n"}
	report, err := New(runner, Options{}, zerolog.Nop()).Run(context.Background())
	if !errors.Is(err, ErrCoverageBelowThreshold) {
		t.Fatalf("expected ErrCoverageBelowThreshold, got %v", err)
	}
	if report.Passed() {
		t.Error("report must not pass")
	}
	if report.Threshold != DefaultThreshold {
		t.Errorf("expected default threshold, got %v", report.Threshold)
	}
}

func TestSuite_CustomAndDisabledThreshold(t *testing.T) {
	runner := &fakeRunner{coverOut: "total:\t(statements)\t72.0%\n"}
	if _, err := New(runner, Options{Threshold: 70}, zerolog.Nop()).Run(context.Background()); err != nil {
		t.Errorf("expected 72%% to meet a 70%% threshold, got %v", err)
	}

	runner = &fakeRunner{}
	report, err := New(runner, Options{Threshold: -1}, zerolog.Nop()).Run(context.Background())
	if err != nil || report.CoverageChecked {
		t.Errorf("expected coverage to be skipped, got %v %+v", err, report)
	}
}

func TestSuite_PhaseFailureContinues(t *testing.T) {
	runner := &fakeRunner{fail: map[string]bool{"./internal/...": true}}
	report, err := New(runner, Options{Integration: true}, zerolog.Nop()).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), PhaseUnit) {
		t.Fatalf("expected the unit phase to be reported, got %v", err)
	}
	if len(report.Results) != 3 {
		t.Fatalf("expected every phase to run, got %+v", report.Results)
	}
	if report.Results[0].Passed || !report.Results[1].Passed || !report.Results[2].Passed {
		t.Errorf("unexpected results %+v", report.Results)
	}
	if report.CoverageChecked {
		t.Error("coverage must not be checked after a failed unit phase")
	}
}

func TestSuite_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{fail: map[string]bool{"test": true}}
	report, err := New(runner, Options{}, zerolog.Nop()).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(report.Results) != 1 {
		t.Errorf("expected the run to stop after the first phase, got %d results", len(report.Results))
	}
}
