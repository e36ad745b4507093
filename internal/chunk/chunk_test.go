package chunk

import (
	"strings"
	"testing"
)

func TestShortTextSingleChunk(t *testing.T) {
	cases := []string{
		"",
		"hello",
		strings.Repeat("a", Limit),
		"line one\nline two",
	}
	for _, text := range cases {
		got := Split(text)
		if len(got) != 1 {
			t.Errorf("Split(%q...): expected 1 chunk, got %d", truncate(text), len(got))
			continue
		}
		if got[0] != text {
			t.Errorf("Split(%q...): chunk differs from input", truncate(text))
		}
	}
}

func TestCutsAtLastNewlineInWindow(t *testing.T) {
	// Newline at position 4000, none between 4000 and 4096: the cut must land
	// on the newline, not mid-window.
	text := strings.Repeat("a", 4000) + "\n" + strings.Repeat("b", 999)
	got := Split(text)

	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if len(got[0]) != 4000 {
		t.Errorf("first chunk length = %d, want 4000", len(got[0]))
	}
	if got[0] != strings.Repeat("a", 4000) {
		t.Errorf("first chunk content wrong")
	}
	if got[1] != strings.Repeat("b", 999) {
		t.Errorf("second chunk should have leading newline stripped")
	}
}

func TestCutsAtLastSpaceWhenNoNewline(t *testing.T) {
	word := strings.Repeat("x", 99) + " " // 100 chars per word
	text := strings.Repeat(word, 50)      // 5000 chars, spaces only
	got := Split(text)

	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}
	// Spaces sit at positions 99, 199, ... so the last one inside the window
	// is at 3999; the cut excludes it.
	if len(got[0]) != 3999 {
		t.Errorf("first chunk length = %d, want 3999", len(got[0]))
	}
	if !strings.HasPrefix(got[1], " ") {
		t.Errorf("space at the cut should remain on the remainder")
	}
}

func TestHardCutWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("z", Limit*2+100)
	got := Split(text)

	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if len(got[0]) != Limit || len(got[1]) != Limit || len(got[2]) != 100 {
		t.Errorf("chunk lengths = %d, %d, %d", len(got[0]), len(got[1]), len(got[2]))
	}
}

func TestChunksWithinLimitAndReconstruct(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 600; i++ {
		b.WriteString("some words of output text")
		if i%7 == 0 {
			b.WriteString("\n")
		} else {
			b.WriteString(" ")
		}
	}
	text := b.String()
	got := Split(text)

	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}
	for i, c := range got {
		if len([]rune(c)) > Limit {
			t.Errorf("chunk %d exceeds limit: %d", i, len([]rune(c)))
		}
	}

	// Each chunk must be a prefix of the remaining original, allowing for the
	// newlines stripped at cut points. Nothing else may be lost or reordered.
	rem := text
	for i, c := range got {
		if i > 0 {
			rem = strings.TrimLeft(rem, "\n")
		}
		if !strings.HasPrefix(rem, c) {
			t.Fatalf("chunk %d is not a prefix of the remainder", i)
		}
		rem = rem[len(c):]
	}
	if strings.TrimLeft(rem, "\n") != "" {
		t.Errorf("text left over after all chunks: %q", truncate(rem))
	}
}

func TestSequenceIsRestartable(t *testing.T) {
	text := strings.Repeat("word ", 3000)
	seq := Chunks(text)

	var first, second []string
	for c := range seq {
		first = append(first, c)
	}
	for c := range seq {
		second = append(second, c)
	}

	if len(first) != len(second) {
		t.Fatalf("restart changed chunk count: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between iterations", i)
		}
	}
}

func TestEarlyBreakStopsIteration(t *testing.T) {
	text := strings.Repeat("a\n", Limit)
	n := 0
	for range Chunks(text) {
		n++
		if n == 1 {
			break
		}
	}
	if n != 1 {
		t.Errorf("expected early break after 1 chunk, iterated %d", n)
	}
}

func truncate(s string) string {
	if len(s) > 20 {
		return s[:20]
	}
	return s
}
