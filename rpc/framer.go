package rpc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Format identifies the wire framing of a single message.
type Format int

const (
	// FormatLengthPrefixed frames a message with an ASCII header block
	// ("Content-Length: <N>") terminated by a blank line. This is the
	// compatibility default when detection is inconclusive.
	FormatLengthPrefixed Format = iota
	// FormatLineDelimited frames a message as one newline-terminated line.
	FormatLineDelimited
)

// String returns the format name, for logs.
func (f Format) String() string {
	switch f {
	case FormatLengthPrefixed:
		return "length-prefixed"
	case FormatLineDelimited:
		return "line-delimited"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Framing failures. A clean end of stream — closed with no partial message
// buffered — is reported as io.EOF, not an error condition.
var (
	// ErrTruncated reports a stream that closed mid-header or mid-body.
	// The byte offset is unrecoverable, so the stream must be abandoned.
	ErrTruncated = errors.New("stream truncated mid-message")
	// ErrBadHeader reports a header block without a usable Content-Length.
	ErrBadHeader = errors.New("malformed framing header")
)

const (
	headerPrefix = "Content-Length:"
	// detectWindow bounds how many leading bytes are inspected to pick a
	// format for the next message.
	detectWindow  = 50
	readChunkSize = 4096
)

// Reader incrementally decodes framed messages from a raw byte stream. The
// stream may deliver arbitrarily small chunks — one byte at a time — so the
// Reader accumulates into an internal buffer and carries leftover bytes
// from one message into the next. The framing format is auto-detected per
// message, never negotiated.
type Reader struct {
	r   io.Reader
	buf []byte
	eof bool
}

// NewReader returns a Reader framing messages off r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadMessage returns the next message body and the format it arrived in,
// so replies can be written in the same format. A clean end of stream
// returns io.EOF; a stream that closes with a partial message buffered
// returns an error wrapping ErrTruncated.
func (r *Reader) ReadMessage() ([]byte, Format, error) {
	for {
		body, format, ok, err := r.tryExtract()
		if err != nil {
			return nil, 0, err
		}
		if ok {
			return body, format, nil
		}
		if r.eof {
			if len(r.buf) == 0 {
				return nil, 0, io.EOF
			}
			return nil, 0, fmt.Errorf("stream closed with %d buffered bytes: %w", len(r.buf), ErrTruncated)
		}
		if err := r.fill(); err != nil {
			return nil, 0, err
		}
	}
}

// fill reads one chunk from the underlying stream. EOF is recorded rather
// than returned so ReadMessage can distinguish a clean close from a
// truncated one.
func (r *Reader) fill() error {
	chunk := make([]byte, readChunkSize)
	n, err := r.r.Read(chunk)
	if n > 0 {
		r.buf = append(r.buf, chunk[:n]...)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.eof = true
			return nil
		}
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

// tryExtract attempts to slice one complete message off the front of the
// buffer. ok is false when more bytes are needed.
func (r *Reader) tryExtract() (body []byte, format Format, ok bool, err error) {
	if len(r.buf) == 0 {
		return nil, 0, false, nil
	}
	format, decided := detectFormat(r.buf, r.eof)
	if !decided {
		return nil, 0, false, nil
	}
	if format == FormatLineDelimited {
		return r.extractLine()
	}
	return r.extractLengthPrefixed()
}

// detectFormat applies the per-message detection rule to the buffered
// bytes: a Content-Length prefix selects the length-prefixed format, a
// leading '{' (after whitespace) selects line-delimited, anything else
// defaults to length-prefixed. decided is false while the buffer could
// still grow into one of the recognized prefixes.
func detectFormat(buf []byte, eof bool) (Format, bool) {
	window := buf
	if len(window) > detectWindow {
		window = window[:detectWindow]
	}

	if bytes.HasPrefix(window, []byte(headerPrefix)) {
		return FormatLengthPrefixed, true
	}

	trimmed := bytes.TrimLeft(window, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatLineDelimited, true
	}

	if len(trimmed) == 0 {
		// Nothing but whitespace so far. A complete blank line is an
		// (empty) line-delimited message — without this a bare "\n"
		// would be unparseable.
		if bytes.IndexByte(buf, '\n') >= 0 {
			return FormatLineDelimited, true
		}
		if !eof && len(buf) < detectWindow {
			return 0, false
		}
		return FormatLengthPrefixed, true
	}

	// The buffer may still be a partial "Content-Length:" prefix.
	if len(window) < len(headerPrefix) && bytes.HasPrefix([]byte(headerPrefix), window) && !eof {
		return 0, false
	}

	return FormatLengthPrefixed, true
}

func (r *Reader) extractLine() (body []byte, format Format, ok bool, err error) {
	idx := bytes.IndexByte(r.buf, '\n')
	if idx < 0 {
		return nil, 0, false, nil
	}
	line := bytes.TrimSuffix(r.buf[:idx], []byte("\r"))
	// Copy out: the buffer's backing array is reused for subsequent reads.
	body = append([]byte(nil), line...)
	r.buf = r.buf[idx+1:]
	return body, FormatLineDelimited, true, nil
}

func (r *Reader) extractLengthPrefixed() (body []byte, format Format, ok bool, err error) {
	headerEnd, bodyStart := findHeaderEnd(r.buf)
	if headerEnd < 0 {
		return nil, 0, false, nil
	}
	length, err := parseContentLength(r.buf[:headerEnd])
	if err != nil {
		return nil, 0, false, err
	}
	if len(r.buf) < bodyStart+length {
		return nil, 0, false, nil
	}
	body = append([]byte(nil), r.buf[bodyStart:bodyStart+length]...)
	r.buf = r.buf[bodyStart+length:]
	return body, FormatLengthPrefixed, true, nil
}

// findHeaderEnd locates the blank line terminating a header block,
// tolerating both CRLF and bare LF line endings. Returns the end of the
// header text and the offset the body starts at, or (-1, -1) if the
// terminator hasn't arrived yet.
func findHeaderEnd(buf []byte) (headerEnd, bodyStart int) {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] != '\n' {
			continue
		}
		if buf[i+1] == '\n' {
			return i, i + 2
		}
		if buf[i+1] == '\r' && i+2 < len(buf) && buf[i+2] == '\n' {
			return i, i + 3
		}
	}
	return -1, -1
}

// parseContentLength extracts the Content-Length value from a header block.
func parseContentLength(header []byte) (int, error) {
	for line := range strings.SplitSeq(string(header), "\n") {
		line = strings.TrimRight(line, "\r")
		rest, found := strings.CutPrefix(line, headerPrefix)
		if !found {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("unparseable Content-Length %q: %w", strings.TrimSpace(rest), ErrBadHeader)
		}
		return n, nil
	}
	return 0, fmt.Errorf("header block without Content-Length: %w", ErrBadHeader)
}

// Writer frames message bodies onto a byte stream. A reply must be written
// in the format its request arrived in; Reader.ReadMessage reports that
// format for exactly this purpose.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer framing messages onto w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteMessage frames body in the given format. The frame is issued as a
// single Write call so a frame is never interleaved with another writer's.
func (w *Writer) WriteMessage(body []byte, format Format) error {
	var frame []byte
	switch format {
	case FormatLineDelimited:
		frame = make([]byte, 0, len(body)+1)
		frame = append(frame, body...)
		frame = append(frame, '\n')
	case FormatLengthPrefixed:
		header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
		frame = make([]byte, 0, len(header)+len(body))
		frame = append(frame, header...)
		frame = append(frame, body...)
	default:
		return fmt.Errorf("unknown framing format %v", format)
	}
	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
