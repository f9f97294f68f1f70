package queryir

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Decode reads a query document from YAML or JSON. Unknown keys and
// unsupported versions are errors.
func Decode(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty query document")
		}
		return nil, fmt.Errorf("decode query document: %w", err)
	}
	switch doc.Version {
	case Version:
	case 0:
		return nil, fmt.Errorf("query document has no version (want version: %d)", Version)
	default:
		return nil, fmt.Errorf("unsupported query document version %d (want %d)", doc.Version, Version)
	}
	if doc.From == "" {
		return nil, fmt.Errorf("query document has no from")
	}
	return &doc, nil
}

// DecodeFile reads the query document at path.
func DecodeFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read query document: %w", err)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Encode writes doc as YAML, stamping the current version.
func Encode(doc *Document) ([]byte, error) {
	out := *doc
	out.Version = Version
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("encode query document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode query document: %w", err)
	}
	return buf.Bytes(), nil
}
