// Package state persists confirmed and potential finds to append-only
// log files and derives the resume set consumed by later runs.
package state

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const findBanner = "--- NEW FIND ---"

var findRule = strings.Repeat("-", 30)

// Journal is the file-backed record of scan findings. All writes are
// plain appends, never read-modify-write; the found log doubles as the
// durable resume state.
type Journal struct {
	foundLog     string
	potentialLog string
	scratchFile  string
}

// NewJournal creates a Journal over the three state file paths.
func NewJournal(foundLog, potentialLog, scratchFile string) *Journal {
	return &Journal{
		foundLog:     foundLog,
		potentialLog: potentialLog,
		scratchFile:  scratchFile,
	}
}

// AppendMatch records a confirmed find in the found log and mirrors the
// block to the scratch file handed to CI.
func (j *Journal) AppendMatch(pin, summary string) error {
	full := fmt.Sprintf("PIN: %s\n\n%s", pin, summary)
	if err := appendFile(j.foundLog, fmt.Sprintf("%s\n%s\n%s\n\n", findBanner, full, findRule)); err != nil {
		return err
	}
	return appendFile(j.scratchFile, fmt.Sprintf("%s\n\n---\n\n", full))
}

// AppendPotential records a candidate that was neither confirmed nor
// explicitly rejected. Nothing is ever resumed from this file.
func (j *Journal) AppendPotential(pin string) error {
	return appendFile(j.potentialLog, pin+"\n")
}

// ResumeSet derives the set of PINs to skip from the found log.
func (j *Journal) ResumeSet() (map[string]struct{}, error) {
	return LoadResumeSet(j.foundLog)
}

// ClearScratch removes the scratch file so each run hands CI only its
// own finds.
func (j *Journal) ClearScratch() error {
	if err := os.Remove(j.scratchFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", j.scratchFile, err)
	}
	return nil
}

// ScratchPath returns the scratch file path.
func (j *Journal) ScratchPath() string {
	return j.scratchFile
}

// ScratchSize reports the scratch file size in bytes, 0 if absent.
func (j *Journal) ScratchSize() (int64, error) {
	info, err := os.Stat(j.scratchFile)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", j.scratchFile, err)
	}
	return info.Size(), nil
}

func appendFile(path, text string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, werr := f.WriteString(text); werr != nil {
		_ = f.Close()
		return fmt.Errorf("append %s: %w", path, werr)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
