package analysis

import (
	"iter"
	"strings"
)

// DefaultChunkWords is the number of words per fragment.
const DefaultChunkWords = 3

// Chunks splits text on single spaces into groups of n words. Each group is
// yielded with one trailing space, so concatenating every fragment gives
// text followed by a space. Newlines stay inside the words they touch.
// Empty text yields nothing.
func Chunks(text string, n int) iter.Seq[string] {
	if n < 1 {
		n = DefaultChunkWords
	}
	return func(yield func(string) bool) {
		if text == "" {
			return
		}
		words := strings.Split(text, " ")
		for i := 0; i < len(words); i += n {
			end := min(i+n, len(words))
			if !yield(strings.Join(words[i:end], " ") + " ") {
				return
			}
		}
	}
}
