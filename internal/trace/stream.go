package trace

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

const defaultMaxLineBytes = 10 * 1024 * 1024

// Encoder writes records as JSON Lines, one canonical record per line.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Encode(r Record) error {
	b, err := Marshal(r)
	if err != nil {
		return err
	}
	_, err = e.w.Write(append(b, '\n'))
	return err
}

// Decoder reads records from a JSON Lines stream. A malformed or over-long
// line yields a *LineError and the next call to Decode moves on to the
// following line.
type Decoder struct {
	r            *bufio.Reader
	maxLineBytes int
	line         int
	buf          []byte
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:            bufio.NewReaderSize(r, 64*1024),
		maxLineBytes: defaultMaxLineBytes,
	}
}

// SetMaxLineBytes bounds the length of a single line, excluding its line
// terminator.
func (d *Decoder) SetMaxLineBytes(n int) {
	d.maxLineBytes = n
}

// Line returns the number of the last line read.
func (d *Decoder) Line() int {
	return d.line
}

// Decode returns the next record, or io.EOF once the stream is exhausted.
// Blank lines are skipped.
func (d *Decoder) Decode() (Record, error) {
	for {
		line, tooLong, err := d.readLine()
		if err == io.EOF {
			return Record{}, io.EOF
		}
		if err != nil {
			return Record{}, &LineError{Line: d.line + 1, Err: err}
		}
		d.line++

		if tooLong {
			reason := fmt.Sprintf("line exceeds %d bytes", d.maxLineBytes)
			return Record{}, &LineError{Line: d.line, Err: malformed("", reason, nil)}
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		r, err := Unmarshal(line)
		if err != nil {
			return Record{}, &LineError{Line: d.line, Err: err}
		}
		return r, nil
	}
}

// readLine returns the next line with its terminator. A line longer than
// maxLineBytes is consumed up to its newline and reported as too long.
func (d *Decoder) readLine() ([]byte, bool, error) {
	d.buf = d.buf[:0]
	read, tooLong := false, false
	for {
		chunk, err := d.r.ReadSlice('\n')
		read = read || len(chunk) > 0
		if !tooLong {
			d.buf = append(d.buf, chunk...)
			if len(bytes.TrimRight(d.buf, "\r\n")) > d.maxLineBytes {
				tooLong = true
				d.buf = d.buf[:0]
			}
		}

		switch err {
		case nil:
			return d.buf, tooLong, nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if !read {
				return nil, false, io.EOF
			}
			return d.buf, tooLong, nil
		default:
			return nil, false, err
		}
	}
}
