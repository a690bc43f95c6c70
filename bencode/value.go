package bencode

import "bytes"

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindInteger Kind = iota
	KindByteString
	KindList
	KindDictionary
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindByteString:
		return "byte string"
	case KindList:
		return "list"
	case KindDictionary:
		return "dictionary"
	default:
		return "unknown"
	}
}

// Span is the half-open byte range [Start, End) a value occupied in the
// buffer it was decoded from. Values built in memory have a zero Span.
type Span struct {
	Start int
	End   int
}

// Of returns the bytes of buf covered by the span.
func (s Span) Of(buf []byte) []byte {
	return buf[s.Start:s.End]
}

func (s Span) Len() int {
	return s.End - s.Start
}

// Value is one decoded bencode value. It is implemented only by Integer,
// ByteString, List and Dictionary, so a type switch over those four is
// exhaustive.
type Value interface {
	Kind() Kind
	Bounds() Span
	value()
}

type Integer struct {
	Int  int64
	Span Span
}

type ByteString struct {
	Bytes []byte
	Span  Span
}

type List struct {
	Items []Value
	Span  Span
}

// Dictionary keeps its entries in the order they were encoded.
type Dictionary struct {
	Entries []Entry
	Span    Span
}

type Entry struct {
	Key   []byte
	Value Value
}

func (Integer) Kind() Kind    { return KindInteger }
func (ByteString) Kind() Kind { return KindByteString }
func (List) Kind() Kind       { return KindList }
func (Dictionary) Kind() Kind { return KindDictionary }

func (v Integer) Bounds() Span    { return v.Span }
func (v ByteString) Bounds() Span { return v.Span }
func (v List) Bounds() Span       { return v.Span }
func (v Dictionary) Bounds() Span { return v.Span }

func (Integer) value()    {}
func (ByteString) value() {}
func (List) value()       {}
func (Dictionary) value() {}

// Text returns the byte string as a Go string.
func (v ByteString) Text() string {
	return string(v.Bytes)
}

func (v List) Len() int {
	return len(v.Items)
}

func (v Dictionary) Len() int {
	return len(v.Entries)
}

// Get returns the value stored under key, matching raw bytes exactly.
func (v Dictionary) Get(key string) (Value, bool) {
	for _, e := range v.Entries {
		if string(e.Key) == key {
			return e.Value, true
		}
	}
	return nil, false
}

func Int(n int64) Integer {
	return Integer{Int: n}
}

func String(s string) ByteString {
	return ByteString{Bytes: []byte(s)}
}

func Bytes(b []byte) ByteString {
	return ByteString{Bytes: b}
}

func NewList(items ...Value) List {
	if items == nil {
		items = []Value{}
	}
	return List{Items: items}
}

func Pair(key string, v Value) Entry {
	return Entry{Key: []byte(key), Value: v}
}

func NewDict(entries ...Entry) Dictionary {
	if entries == nil {
		entries = []Entry{}
	}
	return Dictionary{Entries: entries}
}

// Equal reports whether a and b hold the same tree. Spans are ignored and
// dictionary entries are compared in order.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Integer:
		bv, ok := b.(Integer)
		return ok && av.Int == bv.Int
	case ByteString:
		bv, ok := b.(ByteString)
		return ok && bytes.Equal(av.Bytes, bv.Bytes)
	case List:
		bv, ok := b.(List)
		if !ok || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !Equal(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	case Dictionary:
		bv, ok := b.(Dictionary)
		if !ok || len(av.Entries) != len(bv.Entries) {
			return false
		}
		for i := range av.Entries {
			if !bytes.Equal(av.Entries[i].Key, bv.Entries[i].Key) {
				return false
			}
			if !Equal(av.Entries[i].Value, bv.Entries[i].Value) {
				return false
			}
		}
		return true
	default:
		return a == nil && b == nil
	}
}
