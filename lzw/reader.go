// Package lzw implements a streaming decoder for variable-width LZW code
// streams, the format produced by GIF, TIFF and PDF style encoders.
//
// Codes start at litWidth+1 bits and grow up to 12 bits. The stream is
// expected to end with the EOF code; an input that runs out before that is
// reported as io.ErrUnexpectedEOF.
package lzw

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Order specifies the bit ordering in an LZW data stream.
type Order int

const (
	// LSB means Least Significant Bits first, as used in the GIF file format.
	LSB Order = iota
	// MSB means Most Significant Bits first, as used in the TIFF and PDF
	// file formats.
	MSB
)

const (
	MinLitWidth = 2
	MaxLitWidth = 8

	maxWidth    = 12
	tableSize   = 1 << maxWidth
	invalidCode = 0xffff

	// flushThreshold is where a decode pass hands its output to Read. The
	// scratch buffer is twice this size so that one more expansion (at most
	// tableSize bytes) always fits behind the write cursor.
	flushThreshold = tableSize
)

var (
	ErrClosed      = errors.New("lzw: reader is closed")
	ErrInvalidCode = errors.New("lzw: invalid code")
)

func (o Order) String() string {
	switch o {
	case LSB:
		return "lsb"
	case MSB:
		return "msb"
	default:
		return "unknown"
	}
}

// ParseOrder converts "lsb" or "msb" (any case) to an Order.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(s) {
	case "lsb":
		return LSB, nil
	case "msb":
		return MSB, nil
	default:
		return 0, errors.Errorf("lzw: unknown bit order '%s'", s)
	}
}

type state int

const (
	stateDecoding state = iota
	stateCleared
	stateEOFSeen
	stateErrored
	stateClosed
)

// terminal reports whether no further codes will be decoded.
func (s state) terminal() bool {
	return s >= stateEOFSeen
}

// Reader decodes an LZW code stream. It is an io.ReadCloser.
//
// A Reader must not be used from more than one goroutine at a time. Closing
// it does not close the underlying source.
type Reader struct {
	src   io.ByteReader
	order Order

	// bits holds not-yet-consumed input, nBits is how many of them are valid.
	bits  uint32
	nBits uint
	width uint

	litWidth int
	clear    uint16
	eof      uint16
	hi       uint16
	overflow uint16
	last     uint16

	state state
	// err is the condition returned once state is terminal.
	err error

	table table

	// output is the scratch area for the decode loop. Expansions are
	// assembled right-to-left at the tail, then copied to output[o:].
	output [2 * tableSize]byte
	o      int
	toRead []byte
}

// NewReader creates a Reader that decodes src. The order and litWidth
// must match those the stream was encoded with; litWidth must be in the
// range [2, 8].
//
// Single-byte reads are made from src, so it is wrapped in a bufio.Reader
// unless it already implements io.ByteReader.
func NewReader(src io.Reader, order Order, litWidth int) (*Reader, error) {
	r := &Reader{}
	if err := r.Reset(src, order, litWidth); err != nil {
		return nil, err
	}

	return r, nil
}

// Reset discards all state and rebinds r to a new source, as if freshly
// returned from NewReader. On invalid parameters r is left failed and every
// Read returns the same error.
func (r *Reader) Reset(src io.Reader, order Order, litWidth int) error {
	*r = Reader{}

	if err := checkParams(order, litWidth); err != nil {
		r.fail(err)
		return err
	}

	br, ok := src.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(src)
	}

	r.src = br
	r.order = order
	r.litWidth = litWidth
	r.clear = uint16(1) << litWidth
	r.eof = r.clear + 1
	r.resetTable()

	return nil
}

func checkParams(order Order, litWidth int) error {
	if order != LSB && order != MSB {
		return errors.Errorf("lzw: unknown order %d", order)
	}

	if litWidth < MinLitWidth || litWidth > MaxLitWidth {
		return errors.Errorf("lzw: litWidth %d out of range [%d, %d]", litWidth, MinLitWidth, MaxLitWidth)
	}

	return nil
}

// resetTable returns the code table to its just-cleared shape.
func (r *Reader) resetTable() {
	r.width = uint(r.litWidth) + 1
	r.hi = r.eof
	r.overflow = uint16(1) << r.width
	r.last = invalidCode
	r.state = stateCleared
}

// Read implements io.Reader. Output decoded before an error is always
// returned first; the error follows on the next call.
func (r *Reader) Read(p []byte) (int, error) {
	for {
		if len(r.toRead) > 0 {
			n := copy(p, r.toRead)
			r.toRead = r.toRead[n:]
			return n, nil
		}

		if r.state.terminal() {
			return 0, r.err
		}

		r.decode()
	}
}

// Close implements io.Closer. Subsequent reads return ErrClosed, including
// any output that was decoded but not yet read.
func (r *Reader) Close() error {
	r.state = stateClosed
	r.err = ErrClosed
	r.toRead = nil
	return nil
}

func (r *Reader) fail(err error) {
	r.state = stateErrored
	r.err = err
}

// decode runs codes through the table until the scratch buffer is due for a
// flush or the stream reaches a terminal state, then queues the output.
func (r *Reader) decode() {
	for {
		code, err := r.nextCode()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			r.fail(err)
			break
		}

		if !r.step(code) || r.o >= flushThreshold {
			break
		}
	}

	r.toRead = r.output[:r.o]
	r.o = 0
}

// step applies one code to the table and the output buffer. It returns
// false once the stream has reached a terminal state.
func (r *Reader) step(code uint16) bool {
	switch {
	case code < r.clear:
		r.output[r.o] = uint8(code)
		r.o++
		if r.last != invalidCode {
			r.table.assign(r.hi, r.last, uint8(code))
		}
	case code == r.clear:
		r.resetTable()
		return true
	case code == r.eof:
		r.state = stateEOFSeen
		r.err = io.EOF
		return false
	case code <= r.hi:
		head := r.expand(code)
		if r.last != invalidCode {
			r.table.assign(r.hi, r.last, head)
		}
	default:
		r.fail(ErrInvalidCode)
		return false
	}

	r.state = stateDecoding
	r.last, r.hi = code, r.hi+1
	if r.hi >= r.overflow {
		if r.hi > r.overflow {
			panic("lzw: hi passed overflow")
		}

		if r.width == maxWidth {
			// Table full: stop learning until the next clear code and keep
			// hi < overflow.
			r.last = invalidCode
			r.hi--
		} else {
			r.width++
			r.overflow = 1 << r.width
		}
	}

	return true
}

// expand writes the byte sequence for a dictionary code to output[o:] and
// returns its first byte.
func (r *Reader) expand(code uint16) uint8 {
	i := len(r.output)
	c := code

	if code == r.hi && r.last != invalidCode {
		// hi is the entry currently being built: the previous expansion plus
		// its own first byte.
		i--
		r.output[i] = r.table.head(r.last, r.clear)
		c = r.last
	}

	i = r.table.unwind(c, r.clear, r.output[:i])
	first := r.output[i]
	r.o += copy(r.output[r.o:], r.output[i:])

	return first
}
