// Package chunk splits long response text into Telegram-sized segments.
package chunk

import "iter"

// Limit is the maximum Telegram message length in characters.
const Limit = 4096

// Chunks returns the segments of text in order, each at most Limit characters.
// Splits prefer the last newline inside the window, then the last space, and
// hard-cut only when neither exists. Leading newlines are stripped from the
// remainder after each cut. The sequence is lazy and restartable: ranging over
// it twice yields the same segments.
func Chunks(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		runes := []rune(text)
		if len(runes) <= Limit {
			yield(text)
			return
		}
		for len(runes) > 0 {
			if len(runes) <= Limit {
				yield(string(runes))
				return
			}
			cut := lastIndex(runes[:Limit], '\n')
			if cut <= 0 {
				cut = lastIndex(runes[:Limit], ' ')
			}
			// A boundary at index 0 would yield an empty segment and stall.
			if cut <= 0 {
				cut = Limit
			}
			if !yield(string(runes[:cut])) {
				return
			}
			runes = runes[cut:]
			for len(runes) > 0 && runes[0] == '\n' {
				runes = runes[1:]
			}
		}
	}
}

// Split collects Chunks into a slice.
func Split(text string) []string {
	var out []string
	for c := range Chunks(text) {
		out = append(out, c)
	}
	return out
}

func lastIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
