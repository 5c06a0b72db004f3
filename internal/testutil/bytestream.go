// Package testutil derives deterministic membercache operations from fuzz
// input.
package testutil

// ByteStream hands out fuzz input one value at a time.
//
// Once the input is used up every read returns zero, so the same input
// always yields the same sequence.
type ByteStream struct {
	data []byte
	pos  int
}

// NewByteStream creates a stream over b.
func NewByteStream(b []byte) *ByteStream {
	return &ByteStream{data: b}
}

// HasMore reports whether unread bytes remain.
func (s *ByteStream) HasMore() bool {
	return s.pos < len(s.data)
}

// NextByte returns the next byte, or 0 if exhausted.
func (s *ByteStream) NextByte() byte {
	if !s.HasMore() {
		return 0
	}

	b := s.data[s.pos]
	s.pos++

	return b
}

// NextInt returns a value in [0, n). It returns 0 when n <= 0.
func (s *ByteStream) NextInt(n int) int {
	if n <= 0 {
		return 0
	}

	return int(s.NextByte()) % n
}

// NextUint16 returns a little-endian uint16 from the next two bytes.
func (s *ByteStream) NextUint16() uint16 {
	return uint16(s.NextByte()) | uint16(s.NextByte())<<8
}

// NextString returns a lowercase string of 1 to maxLen letters.
func (s *ByteStream) NextString(maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	out := make([]byte, 1+s.NextInt(maxLen))
	for i := range out {
		out[i] = 'a' + s.NextByte()%26
	}

	return string(out)
}
