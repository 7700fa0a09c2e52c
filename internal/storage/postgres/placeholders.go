package postgres

import (
	"fmt"
	"strings"
)

// placeholderList builds a comma-separated list of positional placeholders
// ($start, $start+1, ...) for dynamically sized IN clauses and batch inserts.
func placeholderList(start, count int) string {
	var b strings.Builder
	for i := 0; i < count; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", start+i)
	}
	return b.String()
}

// valueTuples builds count tuples of width placeholders each, starting at
// $start: "($1, $2), ($3, $4)" for start=1, count=2, width=2.
func valueTuples(start, count, width int) string {
	var b strings.Builder
	for i := 0; i < count; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		b.WriteString(placeholderList(start+i*width, width))
		b.WriteString(")")
	}
	return b.String()
}
