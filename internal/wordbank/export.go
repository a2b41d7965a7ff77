package wordbank

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned by NewExporter.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Exporter writes a bank in one download format.
type Exporter interface {
	Export(bank Bank, w io.Writer) error
	Extension() string
	ContentType() string
}

// NewExporter returns the exporter for format.
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "", "json":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf(
			"%w: %s (supported: json, yaml)",
			ErrUnsupportedFormat, format,
		)
	}
}

// Filename is the download name for the given exporter.
func Filename(e Exporter) string {
	return "word-bank." + e.Extension()
}

func nonNil(bank Bank) Bank {
	if bank == nil {
		return Bank{}
	}
	return bank
}

// JSONExporter writes the bank exactly as it is persisted,
// indented with two spaces.
type JSONExporter struct{}

// Export writes bank as indented JSON with no trailing newline.
// Map keys come out sorted and HTML characters are not escaped.
func (e *JSONExporter) Export(bank Bank, w io.Writer) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(nonNil(bank)); err != nil {
		return fmt.Errorf("encoding word bank: %w", err)
	}
	_, err := w.Write(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return err
}

// Extension returns the file extension for this format.
func (e *JSONExporter) Extension() string { return "json" }

// ContentType returns the HTTP media type for this format.
func (e *JSONExporter) ContentType() string { return "application/json" }

// YAMLExporter writes the bank as YAML.
type YAMLExporter struct{}

// Export writes bank as YAML.
func (e *YAMLExporter) Export(bank Bank, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(nonNil(bank)); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encoding word bank: %w", err)
	}
	return enc.Close()
}

// Extension returns the file extension for this format.
func (e *YAMLExporter) Extension() string { return "yaml" }

// ContentType returns the HTTP media type for this format.
func (e *YAMLExporter) ContentType() string { return "application/yaml" }
