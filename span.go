// span.go — source spans for resolved expression trees
//
// WHAT THIS MODULE DOES
// =====================
// Every node of a resolved expression tree carries a Span: a half-open byte
// interval [Start, End) into the original UTF-8 source the tree was resolved
// from. Diagnostics attach the span of the offending node so hosts can render
// caret snippets or map the range into editor coordinates.
//
// Spans are byte offsets only. Line/column coordinates are derived on demand
// from the source text (LineCol), which keeps the struct minimal and avoids
// storing redundant positions on every node.
//
// Trees built programmatically (tests, hosts that already know the answer)
// may use the zero Span; rendering degrades gracefully.
package consteval

////////////////////////////////////////////////////////////////////////////////
//                                  PUBLIC API
////////////////////////////////////////////////////////////////////////////////

// Span is a half-open byte interval [Start, End) in the original source text.
// End is exclusive. Offsets are counted in bytes from the start of the source.
type Span struct {
	Start int // inclusive
	End   int // exclusive
}

// NewSpan builds a span; it clamps End below Start to an empty interval.
func NewSpan(start, end int) Span {
	if end < start {
		end = start
	}
	return Span{Start: start, End: end}
}

// Cover returns the smallest span containing both a and b.
func (s Span) Cover(o Span) Span {
	out := s
	if o.Start < out.Start {
		out.Start = o.Start
	}
	if o.End > out.End {
		out.End = o.End
	}
	return out
}

// LineCol converts a byte offset into 1-based (line, col) coordinates for the
// given source. Offsets out of range are clamped so callers can always render.
func LineCol(src string, off int) (line, col int) {
	if off < 0 {
		off = 0
	}
	if off > len(src) {
		off = len(src)
	}
	line, col = 1, 1
	for i := 0; i < off; i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

//// END_OF_PUBLIC
