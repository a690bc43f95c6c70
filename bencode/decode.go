package bencode

import (
	"errors"
	"fmt"
	"math"
)

// MaxDepth is the deepest nesting of lists and dictionaries Decode accepts.
const MaxDepth = 512

// magnitudeLimit is the magnitude of math.MinInt64.
const magnitudeLimit = uint64(math.MaxInt64) + 1

var (
	ErrMalformed = errors.New("malformed bencode")
	ErrTooDeep   = errors.New("bencode nested too deeply")
)

// SyntaxError describes where and why a buffer failed to decode.
// errors.Is(err, ErrMalformed) holds for every SyntaxError.
type SyntaxError struct {
	Offset int
	Reason string
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("bencode: %s at offset %d", e.Reason, e.Offset)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

func (e *SyntaxError) Is(target error) bool {
	return target == ErrMalformed
}

type decoder struct {
	buf   []byte
	pos   int
	depth int
}

// Decode decodes the single value that makes up all of buf. Bytes left over
// after the value are an error.
func Decode(buf []byte) (Value, error) {
	v, end, err := DecodeAt(buf, 0)
	if err != nil {
		return nil, err
	}
	if end != len(buf) {
		return nil, &SyntaxError{Offset: end, Reason: fmt.Sprintf("%d trailing bytes", len(buf)-end)}
	}
	return v, nil
}

// DecodeAt decodes one value starting at offset and returns it together with
// the offset just past its last byte. Anything after that is left untouched.
func DecodeAt(buf []byte, offset int) (Value, int, error) {
	if offset < 0 || offset > len(buf) {
		return nil, offset, &SyntaxError{Offset: offset, Reason: "offset out of range"}
	}
	d := decoder{buf: buf, pos: offset}
	v, err := d.next()
	if err != nil {
		return nil, d.pos, err
	}
	return v, d.pos, nil
}

func (d *decoder) fail(reason string) error {
	return &SyntaxError{Offset: d.pos, Reason: reason}
}

func (d *decoder) next() (Value, error) {
	if d.pos >= len(d.buf) {
		return nil, d.fail("unexpected end of input")
	}

	switch c := d.buf[d.pos]; {
	case c >= '0' && c <= '9':
		return d.byteString()
	case c == 'i':
		return d.integer()
	case c == 'l':
		return d.list()
	case c == 'd':
		return d.dictionary()
	default:
		return nil, d.fail(fmt.Sprintf("unexpected byte %q", c))
	}
}

// digits scans an optionally negative decimal number ending at the
// terminator byte and leaves pos on the terminator.
func (d *decoder) digits(terminator byte, signed bool) (int64, error) {
	start := d.pos
	negative := false
	if signed && d.pos < len(d.buf) && d.buf[d.pos] == '-' {
		negative = true
		d.pos++
	}

	first := d.pos
	var n uint64
	for d.pos < len(d.buf) && d.buf[d.pos] != terminator {
		c := d.buf[d.pos]
		if c < '0' || c > '9' {
			return 0, d.fail(fmt.Sprintf("invalid digit %q", c))
		}
		digit := uint64(c - '0')
		if n > (magnitudeLimit-digit)/10 {
			return 0, &SyntaxError{Offset: start, Reason: "number overflows int64"}
		}
		n = n*10 + digit
		d.pos++
	}
	if d.pos >= len(d.buf) {
		return 0, d.fail(fmt.Sprintf("missing terminator %q", terminator))
	}

	count := d.pos - first
	switch {
	case count == 0:
		return 0, d.fail("empty number")
	case count > 1 && d.buf[first] == '0':
		return 0, &SyntaxError{Offset: first, Reason: "leading zero"}
	case negative && n == 0:
		return 0, &SyntaxError{Offset: start, Reason: "negative zero"}
	case !negative && n > math.MaxInt64:
		return 0, &SyntaxError{Offset: start, Reason: "number overflows int64"}
	}

	if negative {
		return -int64(n-1) - 1, nil
	}
	return int64(n), nil
}

// e.g. i42e
func (d *decoder) integer() (Value, error) {
	start := d.pos
	d.pos++ // 'i'

	n, err := d.digits('e', true)
	if err != nil {
		return nil, err
	}
	d.pos++ // 'e'

	return Integer{Int: n, Span: Span{start, d.pos}}, nil
}

// e.g. 4:spam
func (d *decoder) byteString() (Value, error) {
	start := d.pos

	length, err := d.digits(':', false)
	if err != nil {
		return nil, err
	}
	d.pos++ // ':'

	if length > int64(len(d.buf)-d.pos) {
		return nil, d.fail(fmt.Sprintf("string length %d exceeds the %d remaining bytes", length, len(d.buf)-d.pos))
	}

	end := d.pos + int(length)
	b := make([]byte, length)
	copy(b, d.buf[d.pos:end])
	d.pos = end

	return ByteString{Bytes: b, Span: Span{start, end}}, nil
}

func (d *decoder) enter() error {
	d.depth++
	if d.depth > MaxDepth {
		return &SyntaxError{Offset: d.pos, Reason: fmt.Sprintf("nesting deeper than %d", MaxDepth), Err: ErrTooDeep}
	}
	return nil
}

// e.g. l4:spam4:eggse
func (d *decoder) list() (Value, error) {
	start := d.pos
	if err := d.enter(); err != nil {
		return nil, err
	}
	d.pos++ // 'l'

	items := []Value{}
	for {
		if d.pos >= len(d.buf) {
			return nil, d.fail("unterminated list")
		}
		if d.buf[d.pos] == 'e' {
			d.pos++
			d.depth--
			return List{Items: items, Span: Span{start, d.pos}}, nil
		}

		item, err := d.next()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

// e.g. d3:cow3:moo4:spam4:eggse
func (d *decoder) dictionary() (Value, error) {
	start := d.pos
	if err := d.enter(); err != nil {
		return nil, err
	}
	d.pos++ // 'd'

	entries := []Entry{}
	seen := make(map[string]struct{})
	for {
		if d.pos >= len(d.buf) {
			return nil, d.fail("unterminated dictionary")
		}
		if d.buf[d.pos] == 'e' {
			d.pos++
			d.depth--
			return Dictionary{Entries: entries, Span: Span{start, d.pos}}, nil
		}

		keyPos := d.pos
		if c := d.buf[d.pos]; c < '0' || c > '9' {
			return nil, d.fail("dictionary key is not a byte string")
		}
		key, err := d.byteString()
		if err != nil {
			return nil, err
		}
		k := key.(ByteString).Bytes
		if _, dup := seen[string(k)]; dup {
			return nil, &SyntaxError{Offset: keyPos, Reason: fmt.Sprintf("duplicate key %q", k)}
		}
		seen[string(k)] = struct{}{}

		value, err := d.next()
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: k, Value: value})
	}
}
