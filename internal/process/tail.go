package process

// tailBuffer keeps the most recent lines, bounded by count and total bytes.
type tailBuffer struct {
	maxLines int
	maxBytes int
	lines    []string
	head     int
	bytes    int
}

func newTailBuffer(maxLines, maxBytes int) *tailBuffer {
	return &tailBuffer{maxLines: maxLines, maxBytes: maxBytes}
}

func (b *tailBuffer) add(line string) {
	b.lines = append(b.lines, line)
	b.bytes += len(line)

	for b.len() > 0 && (b.len() > b.maxLines || (b.maxBytes > 0 && b.bytes > b.maxBytes)) {
		b.bytes -= len(b.lines[b.head])
		b.lines[b.head] = ""
		b.head++
	}

	// compact once the dropped prefix dominates the backing array
	if b.head > 1024 && b.head*2 > len(b.lines) {
		n := copy(b.lines, b.lines[b.head:])
		b.lines = b.lines[:n]
		b.head = 0
	}
}

func (b *tailBuffer) len() int {
	return len(b.lines) - b.head
}

func (b *tailBuffer) snapshot() []string {
	out := make([]string, b.len())
	copy(out, b.lines[b.head:])
	return out
}
