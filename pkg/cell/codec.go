package cell

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrRawType is returned by the raw deserializer when T cannot hold a string.
var ErrRawType = errors.New("cell: raw value does not fit type")

// Serializer encodes a value into the text kept in the store.
type Serializer[T any] func(T) (string, error)

// Deserializer decodes text read from the store.
type Deserializer[T any] func(string) (T, error)

// JSONSerializer is the default serializer.
func JSONSerializer[T any](v T) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return string(data), nil
}

// JSONDeserializer is the default deserializer.
func JSONDeserializer[T any](s string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return v, fmt.Errorf("decode: %w", err)
	}
	return v, nil
}

// rawSerializer stores strings as-is and falls back to JSON for anything else.
func rawSerializer[T any](v T) (string, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return JSONSerializer(v)
}

// rawDeserializer hands back the stored text unparsed.
func rawDeserializer[T any](s string) (T, error) {
	var v T
	rv := reflect.ValueOf(&v).Elem()
	switch {
	case rv.Kind() == reflect.String:
		rv.SetString(s)
	case rv.Kind() == reflect.Interface && rv.NumMethod() == 0:
		rv.Set(reflect.ValueOf(s))
	default:
		return v, fmt.Errorf("%w: %s", ErrRawType, rv.Type())
	}
	return v, nil
}
