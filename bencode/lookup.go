package bencode

import (
	"errors"
	"fmt"
)

var (
	ErrFieldMissing      = errors.New("field missing")
	ErrFieldTypeMismatch = errors.New("field type mismatch")
)

// FieldError reports a required field that is absent, or a field whose value
// is not the expected variant.
type FieldError struct {
	Field    string
	Expected Kind
	Got      Kind
	Missing  bool
}

func (e *FieldError) Error() string {
	if e.Missing {
		return fmt.Sprintf("%s field not found", e.Field)
	}
	return fmt.Sprintf("%s field is a %s, expected a %s", e.Field, e.Got, e.Expected)
}

func (e *FieldError) Unwrap() error {
	if e.Missing {
		return ErrFieldMissing
	}
	return ErrFieldTypeMismatch
}

// Mismatch builds the FieldError for a value of the wrong variant.
func Mismatch(field string, expected Kind, got Value) *FieldError {
	return &FieldError{Field: field, Expected: expected, Got: got.Kind()}
}

func lookup[T Value](d Dictionary, key string, kind Kind) (T, bool, error) {
	var zero T
	v, ok := d.Get(key)
	if !ok {
		return zero, false, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, true, Mismatch(key, kind, v)
	}
	return t, true, nil
}

func require[T Value](d Dictionary, key string, kind Kind) (T, error) {
	t, ok, err := lookup[T](d, key, kind)
	if err != nil {
		return t, err
	}
	if !ok {
		return t, &FieldError{Field: key, Expected: kind, Missing: true}
	}
	return t, nil
}

func (d Dictionary) Int(key string) (int64, error) {
	v, err := require[Integer](d, key, KindInteger)
	return v.Int, err
}

func (d Dictionary) Bytes(key string) ([]byte, error) {
	v, err := require[ByteString](d, key, KindByteString)
	return v.Bytes, err
}

func (d Dictionary) Text(key string) (string, error) {
	v, err := require[ByteString](d, key, KindByteString)
	return string(v.Bytes), err
}

func (d Dictionary) Dict(key string) (Dictionary, error) {
	return require[Dictionary](d, key, KindDictionary)
}

func (d Dictionary) List(key string) (List, error) {
	return require[List](d, key, KindList)
}

// OptInt returns ok == false when key is absent. A present value of another
// variant is still an error.
func (d Dictionary) OptInt(key string) (n int64, ok bool, err error) {
	v, ok, err := lookup[Integer](d, key, KindInteger)
	return v.Int, ok, err
}

func (d Dictionary) OptText(key string) (s string, ok bool, err error) {
	v, ok, err := lookup[ByteString](d, key, KindByteString)
	return string(v.Bytes), ok, err
}

func (d Dictionary) OptBytes(key string) (b []byte, ok bool, err error) {
	v, ok, err := lookup[ByteString](d, key, KindByteString)
	return v.Bytes, ok, err
}

func (d Dictionary) OptList(key string) (List, bool, error) {
	return lookup[List](d, key, KindList)
}

func (d Dictionary) OptDict(key string) (Dictionary, bool, error) {
	return lookup[Dictionary](d, key, KindDictionary)
}
