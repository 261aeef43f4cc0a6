package state

import (
	"os"
	"path/filepath"
	"testing"
)

// Fuzz test for LoadResumeSet.
func FuzzLoadResumeSet(f *testing.F) {
	testcases := []string{
		"",
		"PIN: 42\n",
		"--- NEW FIND ---\nPIN: 7\n\ncontent\n",
		"PIN:\nPIN: abc\nPIN: 0042\n",
	}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, content string) {
		path := filepath.Join(t.TempDir(), "found.txt")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		set, err := LoadResumeSet(path)
		if err != nil {
			t.Errorf("LoadResumeSet(%q) returned an error: %v", content, err)
		}
		for pin := range set {
			if pin == "" {
				t.Errorf("LoadResumeSet(%q) produced an empty member", content)
			}
			for i := 0; i < len(pin); i++ {
				if pin[i] < '0' || pin[i] > '9' {
					t.Errorf("LoadResumeSet(%q) produced non-digit member %q", content, pin)
				}
			}
		}
	})
}
