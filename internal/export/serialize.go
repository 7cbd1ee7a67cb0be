package export

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"lectern/internal/pptx"
)

// Strategy is one way of turning a presentation into bytes.
type Strategy struct {
	Name      string
	Serialize func(p pptx.Presentation) ([]byte, error)
}

// DefaultStrategies returns, in order: streaming the package, packing
// pre-rendered parts, and decoding the base64 rendition.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "stream", Serialize: streamPackage},
		{Name: "buffer", Serialize: bufferPackage},
		{Name: "base64", Serialize: decodePackage},
	}
}

func streamPackage(p pptx.Presentation) ([]byte, error) {
	var buf bytes.Buffer
	if err := pptx.Write(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func bufferPackage(p pptx.Presentation) ([]byte, error) {
	parts, err := p.Parts()
	if err != nil {
		return nil, err
	}
	return pptx.Pack(parts, p.Created)
}

func decodePackage(p pptx.Presentation) ([]byte, error) {
	encoded, err := p.Base64()
	if err != nil {
		return nil, err
	}
	return DecodeBase64(encoded)
}

// ErrInvalidBase64 reports text that is not padded standard base64.
var ErrInvalidBase64 = errors.New("invalid base64 payload")

// DecodeBase64 validates charset and padding before decoding.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s)%4 != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidBase64, len(s))
	}
	body := strings.TrimRight(s, "=")
	if len(s)-len(body) > 2 {
		return nil, fmt.Errorf("%w: too much padding", ErrInvalidBase64)
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '+', c == '/':
		default:
			return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrInvalidBase64, c, i)
		}
	}
	return base64.StdEncoding.DecodeString(s)
}

// Attempt is the outcome of one failed strategy.
type Attempt struct {
	Strategy string
	Err      error
}

// SerializeError lists every strategy that was tried.
type SerializeError struct {
	Attempts []Attempt
}

func (e *SerializeError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.Strategy, a.Err)
	}
	return "presentation serialization failed (" + strings.Join(parts, "; ") + ")"
}

func (e *SerializeError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}

var zipMagic = []byte("PK\x03\x04")

// serialize runs strategies in order and returns the first plausible blob.
func serialize(p pptx.Presentation, strategies []Strategy, minBytes int) ([]byte, string, error) {
	serr := &SerializeError{}
	for _, s := range strategies {
		data, err := s.Serialize(p)
		if err == nil {
			err = plausible(data, minBytes)
		}
		if err == nil {
			return data, s.Name, nil
		}
		serr.Attempts = append(serr.Attempts, Attempt{Strategy: s.Name, Err: err})
	}
	if len(serr.Attempts) == 0 {
		serr.Attempts = append(serr.Attempts, Attempt{Strategy: "none", Err: errors.New("no strategies configured")})
	}
	return nil, "", serr
}

func plausible(data []byte, minBytes int) error {
	switch {
	case len(data) == 0:
		return errors.New("empty output")
	case len(data) < minBytes:
		return fmt.Errorf("output of %d bytes is below the %d byte minimum", len(data), minBytes)
	case !bytes.HasPrefix(data, zipMagic):
		return errors.New("output is not a zip package")
	}
	return nil
}
