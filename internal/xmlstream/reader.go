// ABOUTME: Streaming element reader for large health export XML documents.
// ABOUTME: Yields one start element at a time without building a document tree.
package xmlstream

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/harperreed/healthx/internal/models"
)

const readBufferSize = 1 << 20

// Element is one start element of the document.
// Attrs is freshly allocated per element and never reused by the reader.
type Element struct {
	Tag    string            `json:"tag" yaml:"tag"`
	Parent string            `json:"parent,omitempty" yaml:"parent,omitempty"` // "" for the root
	Depth  int               `json:"depth" yaml:"depth"`                       // root is depth 0
	Attrs  map[string]string `json:"attrs" yaml:"attrs"`
}

// Attr returns the attribute value and whether it was present.
func (e Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// Reader pulls elements from an XML document in document order.
// It keeps only the stack of open tag names, so memory stays bounded
// by nesting depth rather than document size.
type Reader struct {
	f     *os.File
	dec   *xml.Decoder
	stack []string
	seen  bool
}

// Open opens the document at path for streaming.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("open source: %w", err)
	}
	dec := xml.NewDecoder(bufio.NewReaderSize(f, readBufferSize))
	dec.Strict = true
	return &Reader{f: f, dec: dec}, nil
}

// Next returns the next start element. It returns io.EOF after the last element.
// Syntax errors are wrapped with models.ErrMalformedInput.
func (r *Reader) Next() (Element, error) {
	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			if len(r.stack) > 0 {
				return Element{}, fmt.Errorf("%w: unexpected end of document inside <%s>", models.ErrMalformedInput, r.stack[len(r.stack)-1])
			}
			if !r.seen {
				return Element{}, fmt.Errorf("%w: no root element", models.ErrMalformedInput)
			}
			return Element{}, io.EOF
		}
		if err != nil {
			return Element{}, fmt.Errorf("%w: %v", models.ErrMalformedInput, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := Element{
				Tag:   t.Name.Local,
				Depth: len(r.stack),
				Attrs: make(map[string]string, len(t.Attr)),
			}
			if len(r.stack) > 0 {
				el.Parent = r.stack[len(r.stack)-1]
			}
			for _, a := range t.Attr {
				el.Attrs[a.Name.Local] = a.Value
			}
			r.stack = append(r.stack, el.Tag)
			r.seen = true
			return el, nil
		case xml.EndElement:
			r.stack = r.stack[:len(r.stack)-1]
		}
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Elements opens path and returns a single-use sequence of its elements.
// Iteration stops at the first error, which is yielded with a zero Element.
func Elements(path string) iter.Seq2[Element, error] {
	return func(yield func(Element, error) bool) {
		r, err := Open(path)
		if err != nil {
			yield(Element{}, err)
			return
		}
		defer r.Close()

		for {
			el, err := r.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Element{}, err)
				return
			}
			if !yield(el, nil) {
				return
			}
		}
	}
}
