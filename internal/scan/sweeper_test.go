package scan

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/pinsweep/internal/progress"
	"github.com/JakeFAU/pinsweep/internal/state"
)

const wantFindSummary = "Algebra II\nhunter2\n\nSpring 2025 Answers\n\n1. A\n2. B"

type fakeProber struct {
	mu      sync.Mutex
	calls   []string
	results map[string]ProbeResult
	errs    map[string]error
	onProbe func(pin string)
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		results: make(map[string]ProbeResult),
		errs:    make(map[string]error),
	}
}

func (f *fakeProber) Probe(_ context.Context, pin string) (ProbeResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pin)
	hook := f.onProbe
	f.mu.Unlock()
	if hook != nil {
		hook(pin)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[pin]; ok {
		return ProbeResult{}, err
	}
	if res, ok := f.results[pin]; ok {
		return res, nil
	}
	return ProbeResult{StatusCode: 200, Body: "Invalid PIN entered", Duration: time.Millisecond}, nil
}

func (f *fakeProber) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakePause struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (f *fakePause) Pause(_ context.Context, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses = append(f.pauses, delay)
}

func (f *fakePause) Pauses() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.pauses...)
}

type fakeArchive struct {
	mu    sync.Mutex
	err   error
	paths []string
	types []string
	blobs []string
}

func (f *fakeArchive) PutObject(_ context.Context, path, contentType string, data io.Reader) (string, error) {
	body, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.paths = append(f.paths, path)
	f.types = append(f.types, contentType)
	f.blobs = append(f.blobs, string(body))
	return "memory://" + path, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	err      error
	findings []Finding
}

func (f *fakeRecorder) RecordFinding(_ context.Context, finding Finding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.findings = append(f.findings, finding)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	err      error
	topics   []string
	payloads []any
}

func (f *fakeNotifier) Publish(_ context.Context, topic string, payload any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return "msg-1", nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(_ []byte) (string, error) {
	return "deadbeefcafef00d", nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type stubEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (s *stubEmitter) Emit(evt progress.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *stubEmitter) Events() []progress.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]progress.Event(nil), s.events...)
}

type journalPaths struct {
	found     string
	potential string
	scratch   string
}

func newSweepJournal(t *testing.T) (*state.Journal, journalPaths) {
	t.Helper()
	dir := t.TempDir()
	paths := journalPaths{
		found:     filepath.Join(dir, "found_pins.log"),
		potential: filepath.Join(dir, "potential_pins.log"),
		scratch:   filepath.Join(dir, "found_content.txt"),
	}
	return state.NewJournal(paths.found, paths.potential, paths.scratch), paths
}

func testSweepConfig(start, end int) Config {
	return Config{
		RunID:            uuid.NewString(),
		StartPin:         start,
		EndPin:           end,
		TransientBackoff: 10 * time.Second,
		Cooldown:         60 * time.Second,
		CooldownStatuses: []int{429, 503, 504},
		ArchivePrefix:    "finds",
	}
}

func newTestSweeper(prober Prober, journal Journal, cfg Config) (*Sweeper, *fakePause) {
	clock := fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	sw := New(prober, journal, NewClassifier("2025", "invalid pin"), NewExtractor(),
		nil, nil, nil, nil, clock, nil, cfg, zap.NewNop())
	pauses := &fakePause{}
	sw.pause = pauses
	return sw, pauses
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func TestSweeperProbesFullRange(t *testing.T) {
	t.Parallel()

	prober := newFakeProber()
	journal, _ := newSweepJournal(t)
	sw, _ := newTestSweeper(prober, journal, testSweepConfig(0, 5))

	require.Equal(t, PhaseIdle, sw.Stats().Phase)

	summary, err := sw.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"0", "1", "2", "3", "4", "5"}, prober.Calls())
	require.Equal(t, int64(6), summary.Stats.Probes)
	require.Equal(t, int64(6), summary.Stats.Rejections)
	require.Equal(t, int64(0), summary.Stats.Matches)
	require.Equal(t, PhaseFinished, summary.Stats.Phase)
	require.Equal(t, int64(5), summary.Stats.CurrentPin)
}

func TestSweeperSkipsResumeSet(t *testing.T) {
	t.Parallel()

	journal, _ := newSweepJournal(t)
	require.NoError(t, journal.AppendMatch("2", "earlier find"))
	require.NoError(t, journal.AppendMatch("4", "earlier find"))

	prober := newFakeProber()
	sw, _ := newTestSweeper(prober, journal, testSweepConfig(0, 5))

	summary, err := sw.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"0", "1", "3", "5"}, prober.Calls())
	require.Equal(t, int64(4), summary.Stats.Probes)
	require.Equal(t, int64(2), summary.Stats.Skipped)
}

func TestSweeperMatchWritesJournal(t *testing.T) {
	t.Parallel()

	journal, paths := newSweepJournal(t)
	prober := newFakeProber()
	prober.results["3"] = ProbeResult{StatusCode: 200, Body: structuredPage}

	sw, _ := newTestSweeper(prober, journal, testSweepConfig(0, 5))

	summary, err := sw.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), summary.Stats.Matches)
	require.Equal(t, int64(5), summary.Stats.Rejections)

	wantFound := "--- NEW FIND ---\nPIN: 3\n\n" + wantFindSummary + "\n" + strings.Repeat("-", 30) + "\n\n"
	require.Equal(t, wantFound, readLog(t, paths.found))

	wantScratch := "PIN: 3\n\n" + wantFindSummary + "\n\n---\n\n"
	require.Equal(t, wantScratch, readLog(t, paths.scratch))
	require.Equal(t, int64(len(wantScratch)), summary.ScratchBytes)

	require.Empty(t, readLog(t, paths.potential))
}

func TestSweeperRerunSkipsConfirmedFind(t *testing.T) {
	t.Parallel()

	journal, paths := newSweepJournal(t)

	first := newFakeProber()
	first.results["3"] = ProbeResult{StatusCode: 200, Body: structuredPage}
	sw1, _ := newTestSweeper(first, journal, testSweepConfig(0, 5))
	_, err := sw1.Run(context.Background())
	require.NoError(t, err)

	second := newFakeProber()
	sw2, _ := newTestSweeper(second, journal, testSweepConfig(0, 5))
	summary, err := sw2.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"0", "1", "2", "4", "5"}, second.Calls())
	require.Equal(t, int64(1), summary.Stats.Skipped)

	// The confirmed find is never re-probed, so the found log keeps a
	// single record across runs.
	require.Equal(t, 1, strings.Count(readLog(t, paths.found), "--- NEW FIND ---"))

	// The scratch file is cleared at run start and nothing new matched.
	require.Empty(t, readLog(t, paths.scratch))
}

func TestSweeperTransientErrorContinues(t *testing.T) {
	t.Parallel()

	journal, paths := newSweepJournal(t)
	prober := newFakeProber()
	prober.errs["2"] = errors.New("connection refused")

	sw, pauses := newTestSweeper(prober, journal, testSweepConfig(0, 4))

	summary, err := sw.Run(context.Background())
	require.NoError(t, err)

	// The failed candidate is attempted once, never retried, and the
	// sweep moves on to the rest of the range after the backoff.
	require.Equal(t, []string{"0", "1", "2", "3", "4"}, prober.Calls())
	require.Equal(t, []time.Duration{10 * time.Second}, pauses.Pauses())
	require.Equal(t, int64(1), summary.Stats.Transient)
	require.Equal(t, int64(5), summary.Stats.Probes)
	require.Equal(t, int64(4), summary.Stats.Rejections)

	require.NotContains(t, readLog(t, paths.found), "2")
	require.Empty(t, readLog(t, paths.potential))
}

func TestSweeperCooldownOnThrottleStatus(t *testing.T) {
	t.Parallel()

	journal, paths := newSweepJournal(t)
	prober := newFakeProber()
	prober.results["1"] = ProbeResult{StatusCode: 429, Body: "slow down"}
	prober.results["2"] = ProbeResult{StatusCode: 500, Body: "oops"}

	sw, pauses := newTestSweeper(prober, journal, testSweepConfig(0, 3))

	summary, err := sw.Run(context.Background())
	require.NoError(t, err)

	// 429 pauses the sweep; a plain server error does not.
	require.Equal(t, []time.Duration{60 * time.Second}, pauses.Pauses())
	require.Equal(t, int64(1), summary.Stats.Cooldowns)
	require.Equal(t, int64(4), summary.Stats.Rejections)

	require.Empty(t, readLog(t, paths.found))
	require.Empty(t, readLog(t, paths.potential))
}

func TestSweeperPotentialLogged(t *testing.T) {
	t.Parallel()

	journal, paths := newSweepJournal(t)
	prober := newFakeProber()
	prober.results["2"] = ProbeResult{StatusCode: 200, Body: "<p>Please hold on</p>"}

	sw, _ := newTestSweeper(prober, journal, testSweepConfig(0, 3))

	summary, err := sw.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), summary.Stats.Potentials)
	require.Equal(t, "2\n", readLog(t, paths.potential))
	require.Empty(t, readLog(t, paths.found))

	// Potential finds never gate the resume set.
	second := newFakeProber()
	sw2, _ := newTestSweeper(second, journal, testSweepConfig(0, 3))
	_, err = sw2.Run(context.Background())
	require.NoError(t, err)
	require.Contains(t, second.Calls(), "2")
}

func TestSweeperPersistsFinding(t *testing.T) {
	t.Parallel()

	journal, _ := newSweepJournal(t)
	prober := newFakeProber()
	prober.results["3"] = ProbeResult{StatusCode: 200, Body: structuredPage}

	archive := &fakeArchive{}
	recorder := &fakeRecorder{}
	notifier := &fakeNotifier{}
	clock := fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	cfg := testSweepConfig(3, 3)
	cfg.NotifyTopic = "pin-finds"
	sw := New(prober, journal, NewClassifier("2025", "invalid pin"), NewExtractor(),
		archive, recorder, notifier, fakeHasher{}, clock, nil, cfg, zap.NewNop())
	sw.pause = &fakePause{}

	_, err := sw.Run(context.Background())
	require.NoError(t, err)

	wantPath := "finds/" + cfg.RunID + "/3_deadbeef.html"
	require.Equal(t, []string{wantPath}, archive.paths)
	require.Equal(t, []string{"text/html; charset=utf-8"}, archive.types)
	require.Equal(t, []string{structuredPage}, archive.blobs)

	require.Len(t, recorder.findings, 1)
	finding := recorder.findings[0]
	require.Equal(t, cfg.RunID, finding.RunID)
	require.Equal(t, "3", finding.Pin)
	require.Equal(t, wantFindSummary, finding.Summary)
	require.Equal(t, "deadbeefcafef00d", finding.Digest)
	require.Equal(t, "memory://"+wantPath, finding.ArchiveURI)
	require.Equal(t, clock.now, finding.FoundAt)

	require.Equal(t, []string{"pin-finds"}, notifier.topics)
	payload, ok := notifier.payloads[0].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "3", payload["pin"])
	require.Equal(t, cfg.RunID, payload["run_id"])
}

func TestSweeperPersistenceIsBestEffort(t *testing.T) {
	t.Parallel()

	journal, paths := newSweepJournal(t)
	prober := newFakeProber()
	prober.results["0"] = ProbeResult{StatusCode: 200, Body: structuredPage}

	archive := &fakeArchive{err: errors.New("bucket gone")}
	recorder := &fakeRecorder{}
	notifier := &fakeNotifier{err: errors.New("topic gone")}

	cfg := testSweepConfig(0, 0)
	cfg.NotifyTopic = "pin-finds"
	sw := New(prober, journal, NewClassifier("2025", "invalid pin"), NewExtractor(),
		archive, recorder, notifier, fakeHasher{}, fixedClock{now: time.Now()}, nil, cfg, zap.NewNop())
	sw.pause = &fakePause{}

	summary, err := sw.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), summary.Stats.Matches)

	// The journal append is the authoritative record; collaborator
	// failures never lose it.
	require.Contains(t, readLog(t, paths.found), "PIN: 0")
	require.Len(t, recorder.findings, 1)
	require.Empty(t, recorder.findings[0].ArchiveURI)
}

func TestSweeperUnreadableFoundLogScansAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	foundDir := filepath.Join(dir, "found_pins.log")
	require.NoError(t, os.Mkdir(foundDir, 0o750))

	journal := state.NewJournal(foundDir,
		filepath.Join(dir, "potential_pins.log"),
		filepath.Join(dir, "found_content.txt"))

	prober := newFakeProber()
	sw, _ := newTestSweeper(prober, journal, testSweepConfig(0, 2))

	summary, err := sw.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"0", "1", "2"}, prober.Calls())
	require.Equal(t, int64(0), summary.Stats.Skipped)
}

func TestSweeperContextCanceledBeforeStart(t *testing.T) {
	t.Parallel()

	journal, _ := newSweepJournal(t)
	prober := newFakeProber()
	sw, _ := newTestSweeper(prober, journal, testSweepConfig(0, 9))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := sw.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, prober.Calls())
	require.Equal(t, PhaseFinished, summary.Stats.Phase)
}

func TestSweeperCancelStopsBetweenCandidates(t *testing.T) {
	t.Parallel()

	journal, _ := newSweepJournal(t)
	ctx, cancel := context.WithCancel(context.Background())

	prober := newFakeProber()
	prober.onProbe = func(pin string) {
		if pin == "2" {
			cancel()
		}
	}

	sw, _ := newTestSweeper(prober, journal, testSweepConfig(0, 9))

	summary, err := sw.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// The in-flight candidate finishes; the cancellation lands before
	// the next one starts.
	require.Equal(t, []string{"0", "1", "2"}, prober.Calls())
	require.Equal(t, int64(3), summary.Stats.Probes)
}

func TestSweeperEmitsEvents(t *testing.T) {
	t.Parallel()

	journal, _ := newSweepJournal(t)
	prober := newFakeProber()
	prober.results["1"] = ProbeResult{StatusCode: 200, Body: structuredPage}

	events := &stubEmitter{}
	cfg := testSweepConfig(0, 1)
	sw := New(prober, journal, NewClassifier("2025", "invalid pin"), NewExtractor(),
		nil, nil, nil, nil, fixedClock{now: time.Now()}, events, cfg, zap.NewNop())
	sw.pause = &fakePause{}

	_, err := sw.Run(context.Background())
	require.NoError(t, err)

	got := events.Events()
	require.Len(t, got, 5)
	require.Equal(t, progress.StageRunStart, got[0].Stage)
	require.Equal(t, progress.StageProbeDone, got[1].Stage)
	require.Equal(t, "0", got[1].Candidate)
	require.Equal(t, string(OutcomeRejected), got[1].Outcome)
	require.Equal(t, progress.StageProbeDone, got[2].Stage)
	require.Equal(t, string(OutcomeMatch), got[2].Outcome)
	require.Equal(t, progress.StageMatchFound, got[3].Stage)
	require.Equal(t, "1", got[3].Candidate)
	require.Equal(t, progress.StageRunDone, got[4].Stage)

	wantID := progress.UUIDToBytes(uuid.MustParse(cfg.RunID))
	require.Equal(t, wantID, got[0].RunID)
}
