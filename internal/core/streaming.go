package core

// streaming.go holds the readers between a park file and the line parser.
// Spreadsheet exports arrive with a BOM, in a legacy code page, or with stray
// invalid bytes; WrapForStreaming chains the fixes without buffering the file.

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Supported input encodings.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
	EncodingISO88591    = "iso-8859-1"
)

// NewDecodingReader returns r converted to UTF-8 from the named encoding.
// An empty name or "utf-8" returns r unchanged.
func NewDecodingReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", EncodingUTF8, "utf8":
		return r, nil
	case EncodingWindows1252, "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(r), nil
	case EncodingISO88591, "latin1":
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// StreamingUTF8Sanitizer replaces invalid UTF-8 bytes with '?'. A rune split
// across two reads is carried over and completed by the next one.
type StreamingUTF8Sanitizer struct {
	r     io.Reader
	carry []byte
}

// NewStreamingUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewStreamingUTF8Sanitizer(r io.Reader) *StreamingUTF8Sanitizer {
	return &StreamingUTF8Sanitizer{r: r, carry: make([]byte, 0, utf8.UTFMax)}
}

// Read implements io.Reader. p must hold at least utf8.UTFMax bytes.
func (s *StreamingUTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) < utf8.UTFMax {
		return 0, io.ErrShortBuffer
	}

	n := copy(p, s.carry)
	s.carry = s.carry[:0]

	m, err := s.r.Read(p[n:])
	n += m
	if n == 0 {
		return 0, err
	}
	return s.clean(p[:n], err != nil), err
}

// clean rewrites b in place and returns the length of the sanitized prefix.
// Unless final, an incomplete rune at the end is moved to carry.
func (s *StreamingUTF8Sanitizer) clean(b []byte, final bool) int {
	w := 0
	for i := 0; i < len(b); {
		if b[i] < utf8.RuneSelf {
			b[w] = b[i]
			w++
			i++
			continue
		}
		if !final && !utf8.FullRune(b[i:]) {
			s.carry = append(s.carry, b[i:]...)
			break
		}
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			b[w] = '?'
			w++
			i++
			continue
		}
		w += copy(b[w:], b[i:i+size])
		i += size
	}
	return w
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader drops a leading UTF-8 byte order mark.
type BOMSkippingReader struct {
	r       io.Reader
	checked bool
	head    []byte // bytes read while checking that were not a BOM
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: r}
}

// Read implements io.Reader.
func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		buf := make([]byte, len(utf8BOM))
		n, err := io.ReadFull(b.r, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return 0, err
		}
		if !bytes.Equal(buf[:n], utf8BOM) {
			b.head = buf[:n]
		}
	}

	if len(b.head) > 0 {
		n := copy(p, b.head)
		b.head = b.head[n:]
		return n, nil
	}
	return b.r.Read(p)
}

// StreamingCountingReader counts raw bytes for the parsing-phase message.
type StreamingCountingReader struct {
	r         io.Reader
	BytesRead int64
	Total     int64 // 0 if unknown
}

// NewStreamingCountingReader creates a counting reader; total may be 0.
func NewStreamingCountingReader(r io.Reader, total int64) *StreamingCountingReader {
	return &StreamingCountingReader{r: r, Total: total}
}

func (c *StreamingCountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.BytesRead += int64(n)
	return n, err
}

// Progress returns the share of Total read so far, capped at 100.
func (c *StreamingCountingReader) Progress() int {
	if c.Total <= 0 {
		return 0
	}
	return int(min(c.BytesRead*100/c.Total, 100))
}

// WrapForStreaming wraps a reader with decoding, BOM skipping, UTF-8
// sanitization and byte counting.
//
// Counting sits closest to the file so BytesRead matches the on-disk size.
// Decoding runs before BOM detection since a BOM is only meaningful in UTF-8.
func WrapForStreaming(r io.Reader, totalSize int64, encoding string) (*StreamingCountingReader, io.Reader, error) {
	counter := NewStreamingCountingReader(r, totalSize)
	decoded, err := NewDecodingReader(counter, encoding)
	if err != nil {
		return nil, nil, err
	}
	return counter, NewStreamingUTF8Sanitizer(NewBOMSkippingReader(decoded)), nil
}
