// Package input turns the raw byte stream of a terminal session into
// per-frame input: key presses, typed text and mouse clicks.
package input

import (
	"bufio"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Click is a left-button press at a 1-based terminal cell.
type Click struct {
	Col, Row int
}

// Input represents the current frame's input state.
type Input struct {
	Interrupt bool // Ctrl-C or Ctrl-D
	Space     bool
	Enter     bool
	Backspace bool
	Escape    bool
	Text      []rune // Printable characters in typing order
	Clicks    []Click
	Pressed   []byte // Raw bytes consumed this frame
	Closed    bool   // The underlying reader is gone
}

// Key reports whether the printable key r was typed this frame, ignoring
// case.
func (in Input) Key(r rune) bool {
	r = unicode.ToLower(r)
	for _, t := range in.Text {
		if unicode.ToLower(t) == r {
			return true
		}
	}
	return false
}

// Any reports whether anything was pressed or clicked.
func (in Input) Any() bool {
	return len(in.Pressed) > 0
}

// Stream delivers input bytes via a channel. Escape sequences and UTF-8
// characters split across reads are kept until they complete.
type Stream struct {
	ch      chan byte
	pending []byte
	closed  bool
}

// StartStream spawns a goroutine that reads from r and sends bytes to the stream.
func StartStream(r *bufio.Reader) *Stream {
	s := &Stream{ch: make(chan byte, 128)}
	go func() {
		for {
			b, err := r.ReadByte()
			if err != nil {
				close(s.ch)
				return
			}
			s.ch <- b
		}
	}()
	return s
}

// ReadInput drains all available bytes from the stream (non-blocking) and
// parses them.
func ReadInput(s *Stream) Input {
	buf := s.pending
	s.pending = nil
	held := len(buf)

drain:
	for !s.closed {
		select {
		case b, ok := <-s.ch:
			if !ok {
				s.closed = true
				break drain
			}
			buf = append(buf, b)
		default:
			break drain
		}
	}

	in, rest := Parse(buf)
	if len(buf) == held && len(rest) == 1 && rest[0] == '\x1b' {
		// ESC with nothing after it for a whole frame is the Escape key.
		in.Escape = true
		in.Pressed = buf
		rest = nil
	}
	if s.closed {
		// Nothing more will arrive to complete a partial sequence.
		if len(rest) > 0 && rest[0] == '\x1b' {
			in.Escape = true
		}
		rest = nil
	}
	s.pending = rest
	in.Closed = s.closed
	return in
}

// Parse decodes buf. rest holds an incomplete trailing sequence that should
// be prefixed to the next read.
func Parse(buf []byte) (in Input, rest []byte) {
	for i := 0; i < len(buf); {
		b := buf[i]

		if b == '\x1b' {
			n, complete := parseEscape(&in, buf[i:])
			if !complete {
				return finish(in, buf[:i]), buf[i:]
			}
			i += n
			continue
		}

		switch b {
		case 0x03, 0x04:
			in.Interrupt = true
		case ' ':
			in.Space = true
			in.Text = append(in.Text, ' ')
		case '\r', '\n':
			in.Enter = true
		case '\b', 0x7f:
			in.Backspace = true
		}
		if b < utf8.RuneSelf {
			if b > ' ' && b < 0x7f {
				in.Text = append(in.Text, rune(b))
			}
			i++
			continue
		}

		if !utf8.FullRune(buf[i:]) {
			return finish(in, buf[:i]), buf[i:]
		}
		r, size := utf8.DecodeRune(buf[i:])
		if r != utf8.RuneError && unicode.IsPrint(r) {
			in.Text = append(in.Text, r)
		}
		i += size
	}
	return finish(in, buf), nil
}

func finish(in Input, consumed []byte) Input {
	in.Pressed = consumed
	return in
}

// parseEscape handles a sequence starting with ESC. It returns the bytes
// consumed, or complete=false when seq ends mid-sequence.
func parseEscape(in *Input, seq []byte) (n int, complete bool) {
	if len(seq) == 1 {
		// Could be the Escape key or the start of a sequence.
		return 0, false
	}
	if seq[1] != '[' {
		in.Escape = true
		return 1, true
	}

	// CSI: parameters and intermediates up to a final byte in 0x40-0x7e.
	for j := 2; j < len(seq); j++ {
		c := seq[j]
		if c >= 0x40 && c <= 0x7e {
			if seq[2] == '<' && (c == 'M' || c == 'm') {
				parseMouse(in, string(seq[3:j]), c == 'M')
			}
			return j + 1, true
		}
	}
	return 0, false
}

// parseMouse decodes the "b;col;row" body of an SGR mouse report and keeps
// left-button presses.
func parseMouse(in *Input, body string, press bool) {
	parts := strings.Split(body, ";")
	if len(parts) != 3 || !press {
		return
	}
	button, err1 := strconv.Atoi(parts[0])
	col, err2 := strconv.Atoi(parts[1])
	row, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return
	}
	// Low bits select the button; 32 marks motion and 64 the wheel.
	if button&3 != 0 || button&(32|64) != 0 {
		return
	}
	in.Clicks = append(in.Clicks, Click{Col: col, Row: row})
}
