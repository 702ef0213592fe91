package text

import (
	"testing"
)

// coversAllRunes checks that the runs partition [0, runeCount) with no
// gaps or overlaps.
func coversAllRunes(t *testing.T, runs []bidiRun, runeCount int) {
	t.Helper()
	seen := make([]bool, runeCount)
	for _, run := range runs {
		if run.start < 0 || run.end > runeCount || run.start >= run.end {
			t.Fatalf("run %+v out of range for %d runes", run, runeCount)
		}
		for i := run.start; i < run.end; i++ {
			if seen[i] {
				t.Fatalf("rune %d covered by more than one run", i)
			}
			seen[i] = true
		}
	}
	for i, s := range seen {
		if !s {
			t.Fatalf("rune %d not covered by any run", i)
		}
	}
}

func TestBidiRunsEmpty(t *testing.T) {
	if runs := bidiRuns("", DirectionLTR); runs != nil {
		t.Errorf("bidiRuns(\"\") = %v, want nil", runs)
	}
}

func TestBidiRunsLatin(t *testing.T) {
	runs := bidiRuns("let x = 1;", DirectionLTR)
	if len(runs) != 1 {
		t.Fatalf("bidiRuns(latin) produced %d runs, want 1", len(runs))
	}
	if runs[0].dir != DirectionLTR {
		t.Errorf("run direction = %v, want LTR", runs[0].dir)
	}
	coversAllRunes(t, runs, len([]rune("let x = 1;")))
}

func TestBidiRunsHebrew(t *testing.T) {
	text := "שלום" // shalom
	runs := bidiRuns(text, DirectionLTR)
	if len(runs) != 1 {
		t.Fatalf("bidiRuns(hebrew) produced %d runs, want 1", len(runs))
	}
	if runs[0].dir != DirectionRTL {
		t.Errorf("run direction = %v, want RTL", runs[0].dir)
	}
	coversAllRunes(t, runs, 4)
}

func TestBidiRunsMixed(t *testing.T) {
	text := "abc שלום xyz"
	runs := bidiRuns(text, DirectionLTR)
	if len(runs) < 3 {
		t.Fatalf("bidiRuns(mixed) produced %d runs, want at least 3", len(runs))
	}

	var sawRTL, sawLTR bool
	for _, run := range runs {
		switch run.dir {
		case DirectionRTL:
			sawRTL = true
		case DirectionLTR:
			sawLTR = true
		}
	}
	if !sawRTL || !sawLTR {
		t.Errorf("mixed text runs = %+v, want both LTR and RTL runs", runs)
	}
	coversAllRunes(t, runs, len([]rune(text)))
}
