package text

import "golang.org/x/text/unicode/bidi"

// bidiRun is a maximal run of text with a single direction, in rune
// indices of the original string. Runs are produced in visual order,
// left to right.
type bidiRun struct {
	start int // first rune, inclusive
	end   int // last rune, exclusive
	dir   Direction
}

// bidiRuns splits text into direction runs using the Unicode bidi
// algorithm. The base direction biases resolution of neutral
// characters, matching how a right-to-left document would lay out the
// same line.
func bidiRuns(text string, base Direction) []bidiRun {
	if text == "" {
		return nil
	}
	runeCount := 0
	for range text {
		runeCount++
	}

	defaultDir := bidi.Neutral
	if base == DirectionRTL {
		defaultDir = bidi.RightToLeft
	}

	var p bidi.Paragraph
	if _, err := p.SetString(text, bidi.DefaultDirection(defaultDir)); err != nil {
		return []bidiRun{{start: 0, end: runeCount, dir: DirectionLTR}}
	}

	ordering, err := p.Order()
	if err != nil {
		return []bidiRun{{start: 0, end: runeCount, dir: DirectionLTR}}
	}

	runs := make([]bidiRun, 0, ordering.NumRuns())
	for i := 0; i < ordering.NumRuns(); i++ {
		run := ordering.Run(i)

		// Pos returns rune indices, end inclusive.
		start, end := run.Pos()

		dir := DirectionLTR
		if run.Direction() == bidi.RightToLeft {
			dir = DirectionRTL
		}
		runs = append(runs, bidiRun{start: start, end: end + 1, dir: dir})
	}
	return runs
}
