package document

import (
	"errors"
	"fmt"
	"strings"
)

// Format is a raster output format.
type Format string

const (
	PNG Format = "png"
	JPG Format = "jpg"
)

// ErrInvalidFormat is returned for any format other than png or jpg.
var ErrInvalidFormat = errors.New("invalid output format")

// ParseFormat accepts exactly "png" or "jpg", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case PNG, JPG:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
}

// MIME is the media type passed to canvas.toDataURL.
func (f Format) MIME() string {
	if f == JPG {
		return "image/jpeg"
	}
	return "image/png"
}

// Opaque reports whether the format lacks an alpha channel.
func (f Format) Opaque() bool {
	return f == JPG
}

// ControlID is the stable element id of the export button for f.
func (f Format) ControlID() string {
	return "save-" + string(f)
}

// Label is the visible text of the export button.
func (f Format) Label() string {
	return "Save as " + strings.ToUpper(string(f))
}

// TempHTMLName is the working-directory file name of the document for f.
func (f Format) TempHTMLName() string {
	return "temp_output_" + string(f) + ".html"
}

// OutputName is the raster file name for a source with the given basename.
func (f Format) OutputName(basename string) string {
	return basename + "." + string(f)
}
