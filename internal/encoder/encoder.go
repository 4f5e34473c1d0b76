// Package encoder turns an SVG file into a self-contained data URI.
package encoder

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/srwiley/oksvg"
)

// DataURIPrefix precedes the base64 payload of every URI built by DataURI.
const DataURIPrefix = "data:image/svg+xml;charset=utf-8;base64,"

var (
	ErrFileNotFound = errors.New("file not found")
	ErrNotUTF8      = errors.New("svg is not valid UTF-8")
)

// ReadSVG reads the whole file at path. Nothing is size limited.
func ReadSVG(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s", ErrNotUTF8, path)
	}
	return data, nil
}

// Encode wraps svg in a data URI.
func Encode(svg []byte) string {
	return DataURIPrefix + base64.StdEncoding.EncodeToString(svg)
}

// DataURI reads the SVG at path and returns it as a data URI.
func DataURI(path string) (string, error) {
	svg, err := ReadSVG(path)
	if err != nil {
		return "", err
	}
	return Encode(svg), nil
}

// Decode reverses Encode.
func Decode(uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, DataURIPrefix) {
		return nil, errors.New("not an svg data uri")
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, DataURIPrefix))
}

// Size is the extent of an SVG document. Fixed is set when it comes from
// absolute width and height attributes on the root element, which is the
// size a browser draws the image at. Otherwise it is the viewBox extent in
// user units.
type Size struct {
	Width  float64
	Height float64
	Fixed  bool
}

func (s Size) String() string {
	return fmt.Sprintf("%gx%g", s.Width, s.Height)
}

// Pixels returns the rendered size in whole pixels when it is known.
func (s Size) Pixels() (int, int, bool) {
	if !s.Fixed || s.Width <= 0 || s.Height <= 0 {
		return 0, 0, false
	}
	return int(math.Round(s.Width)), int(math.Round(s.Height)), true
}

// Probe parses svg and reports its size. Elements the parser does not
// support are ignored; malformed XML is an error.
func Probe(svg []byte) (Size, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return Size{}, fmt.Errorf("parse svg: %w", err)
	}
	size := Size{Width: icon.ViewBox.W, Height: icon.ViewBox.H}
	// oksvg prefers the viewBox over width and height; the browser does not.
	if w, h, ok := rootLength(svg); ok {
		size = Size{Width: w, Height: h, Fixed: true}
	}
	return size, nil
}

// rootLength reads absolute width and height from the root svg element.
// Relative units and missing attributes report false.
func rootLength(svg []byte) (float64, float64, bool) {
	dec := xml.NewDecoder(bytes.NewReader(svg))
	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, 0, false
		}
		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if el.Name.Local != "svg" {
			return 0, 0, false
		}
		var w, h float64
		var hasW, hasH bool
		for _, a := range el.Attr {
			switch a.Name.Local {
			case "width":
				w, hasW = pixels(a.Value)
			case "height":
				h, hasH = pixels(a.Value)
			}
		}
		return w, h, hasW && hasH
	}
}

func pixels(v string) (float64, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}
