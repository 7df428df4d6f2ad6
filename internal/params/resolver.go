package params

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/benmeehan/whatsminer-cli/pkg/file"
)

var (
	// ErrInvalidParamJSON is returned when inline or file JSON cannot be parsed.
	ErrInvalidParamJSON = errors.New("invalid param JSON")

	// ErrParamFileNotFound is returned when the param file does not exist.
	ErrParamFileNotFound = errors.New("param file not found")

	// ErrConflictingSources is returned when more than one param source is set.
	ErrConflictingSources = errors.New("only one of --param, --param-json and --param-file may be used")
)

// Resolve returns the param value from exactly one source: a scalar that is
// auto-cast, an inline JSON document, or a JSON file. It returns nil when no
// source is given. JSON documents keep their key order and are re-serialized
// by Canonicalize.
func Resolve(scalar, inline, path *string, fileClient file.FileOperations) (json.RawMessage, error) {
	sources := 0
	for _, s := range []*string{scalar, inline, path} {
		if s != nil {
			sources++
		}
	}
	if sources > 1 {
		return nil, ErrConflictingSources
	}

	switch {
	case scalar != nil:
		return ParseScalar(*scalar).MarshalJSON()

	case inline != nil:
		return parseDocument([]byte(*inline), "--param-json")

	case path != nil:
		exists, err := fileClient.IsFileExists(*path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat param file %s: %w", *path, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrParamFileNotFound, *path)
		}

		data, err := fileClient.ReadFileRaw(*path)
		if err != nil {
			return nil, fmt.Errorf("failed to read param file %s: %w", *path, err)
		}
		return parseDocument(data, "param file "+*path)
	}

	return nil, nil
}

func parseDocument(data []byte, source string) (json.RawMessage, error) {
	doc, err := Canonicalize(data)
	if err != nil {
		return nil, fmt.Errorf("%w in %s: %v", ErrInvalidParamJSON, source, err)
	}
	return doc, nil
}
