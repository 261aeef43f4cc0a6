package state

import (
	"errors"
	"fmt"
	"os"
	"regexp"
)

// pinPattern matches the candidate digits inside a found-log block. The
// append format in Journal and this pattern must stay in lockstep.
var pinPattern = regexp.MustCompile(`PIN:\s*(\d+)`)

// LoadResumeSet extracts every previously confirmed PIN from the found
// log. A missing file is a clean first run and yields an empty set; any
// other read failure also yields an empty set along with the error, so
// callers can warn and carry on rather than abort.
func LoadResumeSet(path string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return set, nil
	}
	if err != nil {
		return set, fmt.Errorf("read found log: %w", err)
	}
	for _, m := range pinPattern.FindAllSubmatch(data, -1) {
		set[string(m[1])] = struct{}{}
	}
	return set, nil
}
