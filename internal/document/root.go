package document

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoRoot is returned by Root when s holds no element.
var ErrNoRoot = errors.New("document has no root element")

// Root returns the qualified name of the first element in the XML text s.
// Only the prolog and the opening tag need to be well formed.
func Root(s string) (string, error) {
	d := xml.NewDecoder(strings.NewReader(s))
	d.Strict = true
	for {
		tok, err := d.RawToken()
		if errors.Is(err, io.EOF) {
			return "", ErrNoRoot
		}
		if err != nil {
			return "", fmt.Errorf("read root element: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return qname(se.Name), nil
		}
	}
}
