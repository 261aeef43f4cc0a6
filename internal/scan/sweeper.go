package scan

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/pinsweep/internal/progress"
)

// Sweeper drives the exhaustive candidate sweep: one probe at a time,
// paced, classified, and persisted. Probing is strictly sequential; the
// only concurrency around a Sweeper is readers of Stats.
type Sweeper struct {
	prober     Prober
	journal    Journal
	classifier *Classifier
	extractor  *Extractor
	archive    Archive
	recorder   Recorder
	notifier   Notifier
	hasher     Hasher
	clock      Clock
	events     progress.Emitter
	cfg        Config
	logger     *zap.Logger

	pacer pacer
	pause pauseController
	runID [16]byte
	stats counters
}

// New constructs a Sweeper. Archive, recorder, notifier, and events may
// be nil; the corresponding steps are skipped.
func New(
	prober Prober,
	journal Journal,
	classifier *Classifier,
	extractor *Extractor,
	archive Archive,
	recorder Recorder,
	notifier Notifier,
	hasher Hasher,
	clock Clock,
	events progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ArchiveContentType == "" {
		cfg.ArchiveContentType = "text/html; charset=utf-8"
	}
	s := &Sweeper{
		prober:     prober,
		journal:    journal,
		classifier: classifier,
		extractor:  extractor,
		archive:    archive,
		recorder:   recorder,
		notifier:   notifier,
		hasher:     hasher,
		clock:      clock,
		events:     events,
		cfg:        cfg,
		logger:     logger,
		pacer:      newPacer(cfg.Delay),
		pause:      &timerPauseController{},
	}
	if id, err := uuid.Parse(cfg.RunID); err == nil {
		s.runID = progress.UUIDToBytes(id)
	}
	return s
}

// RunID returns the identifier assigned to this sweep.
func (s *Sweeper) RunID() string {
	return s.cfg.RunID
}

// Stats returns a live snapshot of the run counters.
func (s *Sweeper) Stats() RunStats {
	return s.stats.snapshot()
}

// Run walks the candidate range from start to end inclusive. Candidates
// in the resume set are skipped without a probe or a delay; every other
// candidate is probed exactly once. The sweep always runs the range to
// completion; the only early exit is context cancellation, checked
// between candidates so an interrupted run stays resumable.
func (s *Sweeper) Run(ctx context.Context) (Summary, error) {
	started := s.clock.Now()
	s.stats.phase.Store(phaseScanning)
	s.logger.Info("starting scan",
		zap.Int("start_pin", s.cfg.StartPin),
		zap.Int("end_pin", s.cfg.EndPin),
	)

	if err := s.journal.ClearScratch(); err != nil {
		s.logger.Warn("clear scratch file failed", zap.Error(err))
	}

	resume, err := s.journal.ResumeSet()
	if err != nil {
		s.logger.Warn("found log unreadable, resuming with empty set", zap.Error(err))
	}
	if len(resume) > 0 {
		s.logger.Info("loaded previously found pins to skip", zap.Int("count", len(resume)))
	}

	s.emitRun(progress.StageRunStart, 0, "")

	for pin := s.cfg.StartPin; pin <= s.cfg.EndPin; pin++ {
		if ctx.Err() != nil {
			return s.finish(started, ctx.Err())
		}
		candidate := strconv.Itoa(pin)
		s.stats.currentPin.Store(int64(pin))
		if _, done := resume[candidate]; done {
			s.stats.skipped.Add(1)
			TotalResumeSkips.Inc()
			continue
		}
		s.probeCandidate(ctx, candidate)
	}
	return s.finish(started, nil)
}

func (s *Sweeper) probeCandidate(ctx context.Context, pin string) {
	if err := s.pacer.Wait(ctx); err != nil {
		return
	}
	s.logger.Info("trying pin", zap.String("pin", pin))
	s.stats.probes.Add(1)
	TotalProbes.Inc()

	res, err := s.prober.Probe(ctx, pin)
	if err != nil {
		s.handleTransient(ctx, pin, err)
		return
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		s.handleErrorStatus(ctx, pin, res)
		return
	}

	outcome := s.classifier.Classify(res.Body)
	s.emitProbe(pin, outcome, res)
	switch outcome {
	case OutcomeMatch:
		s.handleMatch(ctx, pin, res)
	case OutcomePotential:
		s.handlePotential(pin, res)
	default:
		s.stats.rejections.Add(1)
		TotalRejections.Inc()
		s.logger.Debug("pin rejected", zap.String("pin", pin))
	}
}

// handleTransient logs a network-level probe failure, pauses, and leaves
// the candidate unrecorded so a later run picks it up again.
func (s *Sweeper) handleTransient(ctx context.Context, pin string, err error) {
	s.stats.transient.Add(1)
	TotalProbeErrors.Inc()
	s.logger.Warn("network error, backing off",
		zap.String("pin", pin),
		zap.Duration("backoff", s.cfg.TransientBackoff),
		zap.Error(err),
	)
	s.emitProbeError(pin, err)
	s.pause.Pause(ctx, s.cfg.TransientBackoff)
}

func (s *Sweeper) handleErrorStatus(ctx context.Context, pin string, res ProbeResult) {
	s.stats.rejections.Add(1)
	TotalRejections.Inc()
	s.logger.Warn("non-success status, skipping pin",
		zap.String("pin", pin),
		zap.Int("status", res.StatusCode),
	)
	s.emitProbe(pin, OutcomeRejected, res)
	if s.isCooldownStatus(res.StatusCode) {
		s.stats.cooldowns.Add(1)
		TotalCooldowns.Inc()
		s.logger.Warn("server busy or rate limiting, cooling down",
			zap.Duration("cooldown", s.cfg.Cooldown),
		)
		s.pause.Pause(ctx, s.cfg.Cooldown)
	}
}

func (s *Sweeper) isCooldownStatus(code int) bool {
	for _, c := range s.cfg.CooldownStatuses {
		if c == code {
			return true
		}
	}
	return false
}

func (s *Sweeper) handleMatch(ctx context.Context, pin string, res ProbeResult) {
	s.stats.matches.Add(1)
	TotalMatches.Inc()
	s.logger.Info("new high-priority find, extracting content", zap.String("pin", pin))

	summary := s.extractor.Extract(res.Body)
	if err := s.journal.AppendMatch(pin, summary); err != nil {
		s.logger.Error("append find failed", zap.String("pin", pin), zap.Error(err))
	}
	s.emitMatch(pin, res)
	s.persistFinding(ctx, pin, summary, res)
}

func (s *Sweeper) handlePotential(pin string, res ProbeResult) {
	s.stats.potentials.Add(1)
	TotalPotentials.Inc()
	s.logger.Info("potential find, failure text missing",
		zap.String("pin", pin),
		zap.Int("status", res.StatusCode),
	)
	if err := s.journal.AppendPotential(pin); err != nil {
		s.logger.Error("append potential failed", zap.String("pin", pin), zap.Error(err))
	}
}

// persistFinding runs the optional archive/record/notify steps. All of
// them are best-effort: the journal append is the authoritative record.
func (s *Sweeper) persistFinding(ctx context.Context, pin, summary string, res ProbeResult) {
	finding := Finding{
		RunID:   s.cfg.RunID,
		Pin:     pin,
		Summary: summary,
		FoundAt: s.clock.Now(),
	}

	if s.hasher != nil {
		digest, err := s.hasher.Hash([]byte(res.Body))
		if err != nil {
			s.logger.Warn("hash find body failed", zap.String("pin", pin), zap.Error(err))
		} else {
			finding.Digest = digest
		}
	}

	if s.archive != nil {
		path := s.buildArchivePath(pin, finding.Digest)
		uri, err := s.archive.PutObject(ctx, path, s.cfg.ArchiveContentType, strings.NewReader(res.Body))
		if err != nil {
			s.logger.Warn("archive find body failed", zap.String("pin", pin), zap.Error(err))
		} else {
			finding.ArchiveURI = uri
		}
	}

	if s.recorder != nil {
		if err := s.recorder.RecordFinding(ctx, finding); err != nil {
			s.logger.Warn("record finding failed", zap.String("pin", pin), zap.Error(err))
		}
	}

	s.publishFinding(ctx, finding)
}

func (s *Sweeper) publishFinding(ctx context.Context, finding Finding) {
	if s.cfg.NotifyTopic == "" || s.notifier == nil {
		return
	}
	payload := map[string]any{
		"run_id":      finding.RunID,
		"pin":         finding.Pin,
		"digest":      finding.Digest,
		"archive_uri": finding.ArchiveURI,
		"found_at":    finding.FoundAt.Format(time.RFC3339),
	}
	if _, err := s.notifier.Publish(ctx, s.cfg.NotifyTopic, payload); err != nil {
		s.logger.Warn("publish find notice failed", zap.String("pin", finding.Pin), zap.Error(err))
	}
}

func (s *Sweeper) buildArchivePath(pin, digest string) string {
	short := digest
	if len(short) > 8 {
		short = short[:8]
	}
	if short == "" {
		short = "body"
	}
	prefix := strings.Trim(s.cfg.ArchivePrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s_%s.html", s.cfg.RunID, pin, short)
	}
	return fmt.Sprintf("%s/%s/%s_%s.html", prefix, s.cfg.RunID, pin, short)
}

func (s *Sweeper) finish(started time.Time, cause error) (Summary, error) {
	s.stats.phase.Store(phaseFinished)
	stats := s.stats.snapshot()
	elapsed := s.clock.Now().Sub(started)

	summary := Summary{
		RunID:    s.cfg.RunID,
		StartPin: s.cfg.StartPin,
		EndPin:   s.cfg.EndPin,
		Stats:    stats,
		Elapsed:  elapsed,
	}

	stage := progress.StageRunDone
	note := ""
	if cause != nil {
		stage = progress.StageRunError
		note = cause.Error()
	}
	s.emitRun(stage, elapsed, note)

	s.logger.Info("scan finished",
		zap.Int64("new_finds", stats.Matches),
		zap.Int64("probes", stats.Probes),
		zap.Int64("skipped", stats.Skipped),
		zap.Duration("elapsed", elapsed),
	)
	if stats.Matches > 0 {
		size, err := s.journal.ScratchSize()
		if err != nil {
			s.logger.Warn("stat scratch file failed", zap.Error(err))
		} else {
			summary.ScratchBytes = size
			s.logger.Info("new find content written",
				zap.String("path", s.journal.ScratchPath()),
				zap.Int64("bytes", size),
			)
		}
	}
	return summary, cause
}

func (s *Sweeper) emitRun(stage progress.Stage, dur time.Duration, note string) {
	if s.events == nil {
		return
	}
	s.events.Emit(progress.Event{
		RunID: s.runID,
		TS:    s.clock.Now(),
		Stage: stage,
		Dur:   dur,
		Note:  note,
	})
}

func (s *Sweeper) emitProbe(pin string, outcome Outcome, res ProbeResult) {
	if s.events == nil {
		return
	}
	s.events.Emit(progress.Event{
		RunID:       s.runID,
		TS:          s.clock.Now(),
		Stage:       progress.StageProbeDone,
		Candidate:   pin,
		Outcome:     string(outcome),
		StatusClass: progress.ClassifyStatus(res.StatusCode),
		Dur:         res.Duration,
	})
}

func (s *Sweeper) emitProbeError(pin string, err error) {
	if s.events == nil {
		return
	}
	s.events.Emit(progress.Event{
		RunID:       s.runID,
		TS:          s.clock.Now(),
		Stage:       progress.StageProbeDone,
		Candidate:   pin,
		Outcome:     string(OutcomeError),
		StatusClass: progress.StatusOther,
		Note:        err.Error(),
	})
}

func (s *Sweeper) emitMatch(pin string, res ProbeResult) {
	if s.events == nil {
		return
	}
	s.events.Emit(progress.Event{
		RunID:       s.runID,
		TS:          s.clock.Now(),
		Stage:       progress.StageMatchFound,
		Candidate:   pin,
		Outcome:     string(OutcomeMatch),
		StatusClass: progress.ClassifyStatus(res.StatusCode),
		Dur:         res.Duration,
	})
}
