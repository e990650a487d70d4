package hooks

import (
	"iter"
	"strconv"
)

// AttributeName returns the i-th generated attribute name:
// a..z, then a1..z1, a2..z2 and so on. A negative i counts as 0.
func AttributeName(i int) string {
	i = max(i, 0)
	letter := string(rune('a' + i%26))
	if round := i / 26; round > 0 {
		return letter + strconv.Itoa(round)
	}
	return letter
}

// AttributeNames yields generated attribute names forever, beginning with
// AttributeName(start), or "a" for a negative start. Each call starts a
// fresh sequence.
func AttributeNames(start int) iter.Seq[string] {
	start = max(start, 0)
	return func(yield func(string) bool) {
		for i := start; ; i++ {
			if !yield(AttributeName(i)) {
				return
			}
		}
	}
}
