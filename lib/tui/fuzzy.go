// Copyright 2026 The Foredeck Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"slices"
	"unicode"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// FuzzyResult is the outcome of matching a filter pattern against one
// candidate string.
type FuzzyResult struct {
	// Score ranks match quality; zero means no match. Higher is
	// better: consecutive runs and word-boundary hits score above
	// scattered character matches.
	Score int

	// Positions holds the rune indexes of the matched characters in
	// the candidate, ascending. Empty when there is no match. Used to
	// highlight matched characters in rendered rows.
	Positions []int
}

// NewSlab returns a scratch allocation arena sized for interactive
// filtering. One slab serves repeated FuzzyMatch calls on a single
// goroutine; matching a pattern over a whole feed reuses it for every
// row.
func NewSlab() *util.Slab {
	return util.MakeSlab(100*1024, 2048)
}

// FuzzyMatch scores pattern against text using fzf's V2 algorithm.
// Matching is case-insensitive and folds latin accents, so "jose"
// finds "José". A nil slab is allowed; passing one avoids per-call
// allocation.
func FuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 {
		return FuzzyResult{}
	}

	// The algorithm lowercases and normalizes candidate text
	// internally but expects the pattern already folded.
	folded := make([]rune, len(pattern))
	for index, r := range pattern {
		folded[index] = unicode.ToLower(r)
	}
	folded = algo.NormalizeRunes(folded)

	chars := util.ToChars([]byte(text))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, folded, true, slab)
	if result.Score <= 0 {
		return FuzzyResult{}
	}

	match := FuzzyResult{Score: result.Score}
	if positions != nil {
		// Backtracking yields positions in reverse order.
		match.Positions = *positions
		slices.Sort(match.Positions)
	}
	return match
}
