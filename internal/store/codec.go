package store

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Codec converts a document value to and from its on-disk form.
type Codec[T any] interface {
	Decode(data []byte) (T, error)
	Encode(v T) ([]byte, error)
	// Empty is the value of a document that does not exist yet.
	Empty() T
}

// JSONCodec stores a value as indented JSON. Decoding starts from Empty, so
// keys missing on disk keep their default values. An empty file or a bare
// null decodes to Empty.
type JSONCodec[T any] struct {
	New func() T
}

func (c JSONCodec[T]) Empty() T {
	if c.New == nil {
		var zero T
		return zero
	}
	return c.New()
}

func (c JSONCodec[T]) Decode(data []byte) (T, error) {
	v := c.Empty()
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return c.Empty(), err
	}
	return v, nil
}

func (c JSONCodec[T]) Encode(v T) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// LinesCodec stores a list of strings one per line. Surrounding whitespace and
// blank lines are dropped on decode.
type LinesCodec struct{}

func (LinesCodec) Empty() []string { return []string{} }

func (LinesCodec) Decode(data []byte) ([]string, error) {
	lines := []string{}
	for _, line := range strings.Split(string(data), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines, nil
}

func (LinesCodec) Encode(lines []string) ([]byte, error) {
	if len(lines) == 0 {
		return []byte{}, nil
	}
	return []byte(strings.Join(lines, "\n") + "\n"), nil
}
