package descriptor

import "bytes"

// Template returns the structural template of d: its canonical JSON with
// every composite name blanked, nested ones included. Two composites are
// duplicates iff their templates are equal.
func Template(d Descriptor) string {
	var buf bytes.Buffer
	writeDescriptor(&buf, d, true)
	return buf.String()
}

// SameShape reports whether a and b differ at most in composite names.
func SameShape(a, b Descriptor) bool {
	return Template(a) == Template(b)
}
