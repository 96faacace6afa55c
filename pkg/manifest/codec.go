package manifest

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// FormatError reports a manifest stream that cannot be decoded:
// corrupt JSON, a truncated stream, or an unrecognized format version.
// It is fatal for the run; no partial manifest is ever produced.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("manifest format: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("manifest format: %s", e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Encode writes the manifest to w in the versioned JSON format.
func Encode(w io.Writer, m *Manifest) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return nil
}

// Decode reads a manifest from r, validating the format version.
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, &FormatError{Reason: "corrupt or truncated stream", Err: err}
	}
	if m.Version != FormatVersion {
		return nil, &FormatError{Reason: fmt.Sprintf("unsupported version %d (want %d)", m.Version, FormatVersion)}
	}
	if m.Entries == nil {
		m.Entries = map[string]*FileRecord{}
	}
	for p, rec := range m.Entries {
		if rec == nil || rec.RelPath != p {
			return nil, &FormatError{Reason: fmt.Sprintf("entry key %q does not match its record", p)}
		}
	}
	return &m, nil
}
