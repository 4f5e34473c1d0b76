// Package document writes the throwaway HTML page that draws an SVG data URI
// onto a canvas and downloads the canvas as PNG or JPG.
package document

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"strings"
)

// DefaultJPEGQuality is the canvas encoder quality used for JPG.
const DefaultJPEGQuality = 0.95

// ExportErrorAttr is set on <body> when the embedded image cannot be decoded.
const ExportErrorAttr = "data-export-error"

// Params describes one document.
type Params struct {
	DataURI        string
	OutputFilename string
	Format         Format
	// JPEGQuality applies to JPG only; zero means DefaultJPEGQuality.
	JPEGQuality float64
}

type pageData struct {
	Title       string
	DataURI     template.URL
	Filename    string
	MIME        string
	Opaque      bool
	Quality     float64
	ControlID   string
	Label       string
	ErrorAttr   string
	ErrorMarker string
}

// The <img> width only scales the preview; the canvas takes naturalWidth and
// naturalHeight of a fresh Image.
var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
</head>
<body>
  <img src="{{.DataURI}}" alt="SVG Image" width="400">
  <script>
    function download() {
      const img = document.querySelector('img');
      const canvas = document.createElement('canvas');
      const ctx = canvas.getContext('2d');

      const image = new Image();
      image.onload = function () {
        canvas.width = image.naturalWidth;
        canvas.height = image.naturalHeight;
        {{- if .Opaque}}
        ctx.fillStyle = '#ffffff';
        ctx.fillRect(0, 0, canvas.width, canvas.height);
        {{- end}}
        ctx.drawImage(image, 0, 0);
        {{- if .Opaque}}
        const data = canvas.toDataURL({{.MIME}}, {{.Quality}});
        {{- else}}
        const data = canvas.toDataURL({{.MIME}});
        {{- end}}
        const a = document.createElement('a');
        a.href = data;
        a.download = {{.Filename}};
        a.click();
      };
      image.onerror = function () {
        document.body.setAttribute({{.ErrorAttr}}, {{.ErrorMarker}});
      };
      image.src = img.src;
    }
  </script>
  <button id="{{.ControlID}}" type="button" onclick="download()">{{.Label}}</button>
</body>
</html>
`))

// Render returns the HTML text for p.
func Render(p Params) ([]byte, error) {
	if _, err := ParseFormat(string(p.Format)); err != nil {
		return nil, err
	}
	if p.OutputFilename == "" {
		return nil, fmt.Errorf("output filename is empty")
	}
	quality := p.JPEGQuality
	if quality == 0 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	err := page.Execute(&buf, pageData{
		Title:       "SVG to " + strings.ToUpper(string(p.Format)),
		DataURI:     template.URL(p.DataURI),
		Filename:    p.OutputFilename,
		MIME:        p.Format.MIME(),
		Opaque:      p.Format.Opaque(),
		Quality:     quality,
		ControlID:   p.Format.ControlID(),
		Label:       p.Format.Label(),
		ErrorAttr:   ExportErrorAttr,
		ErrorMarker: "decode",
	})
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders p to path, replacing any existing file.
func Write(path string, p Params) error {
	html, err := Render(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return fmt.Errorf("write document %s: %w", path, err)
	}
	return nil
}
