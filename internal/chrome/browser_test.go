package chrome

import (
	"context"
	"errors"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svg2img/internal/document"
	"svg2img/internal/encoder"
)

// A 100x50 canvas with a red square on the left half; the right half is transparent.
const logoSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="100" height="50" viewBox="0 0 100 50">` +
	`<rect x="0" y="0" width="50" height="50" fill="#ff0000"/></svg>`

func findChrome(t *testing.T) string {
	t.Helper()
	if v := os.Getenv("CHROME_BIN"); v != "" {
		return v
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome binary available")
	return ""
}

func testExporter(t *testing.T) *Exporter {
	return NewExporter(Options{
		ChromePath: findChrome(t),
		Headless:   true,
		NoSandbox:  true,
		Timeout:    30 * time.Second,
	})
}

func writeDocument(t *testing.T, dir string, f document.Format) string {
	t.Helper()
	html := filepath.Join(dir, f.TempHTMLName())
	require.NoError(t, document.Write(html, document.Params{
		DataURI:        encoder.Encode([]byte(logoSVG)),
		OutputFilename: f.OutputName("logo"),
		Format:         f,
	}))
	return html
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	img, _, err := image.Decode(fh)
	require.NoError(t, err)
	return img
}

func TestExport_PNGKeepsTransparency(t *testing.T) {
	e := testExporter(t)
	dir := t.TempDir()

	out, err := e.Export(context.Background(), writeDocument(t, dir, document.PNG), dir, document.PNG)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "logo.png"), out)

	img := decodeFile(t, out)
	assert.Equal(t, image.Rect(0, 0, 100, 50), img.Bounds())

	_, _, _, a := img.At(75, 25).RGBA()
	assert.Zero(t, a, "uncovered pixel should stay transparent")
	r, g, b, _ := img.At(25, 25).RGBA()
	assert.Greater(t, r, uint32(0xf000))
	assert.Less(t, g, uint32(0x1000))
	assert.Less(t, b, uint32(0x1000))
}

func TestExport_JPGPaintsWhite(t *testing.T) {
	e := testExporter(t)
	dir := t.TempDir()

	out, err := e.Export(context.Background(), writeDocument(t, dir, document.JPG), dir, document.JPG)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "logo.jpg"), out)

	img := decodeFile(t, out)
	assert.Equal(t, image.Rect(0, 0, 100, 50), img.Bounds())

	c := color.RGBAModel.Convert(img.At(75, 25)).(color.RGBA)
	assert.Greater(t, c.R, uint8(240))
	assert.Greater(t, c.G, uint8(240))
	assert.Greater(t, c.B, uint8(240))
}

func TestExport_ControlMismatchFailsOnlyThatFormat(t *testing.T) {
	e := testExporter(t)
	dir := t.TempDir()

	// A PNG document asked for as JPG has no #save-jpg control.
	broken := writeDocument(t, dir, document.PNG)
	_, err := e.Export(context.Background(), broken, dir, document.JPG)
	assert.True(t, errors.Is(err, ErrControlNotFound))

	out, err := e.Export(context.Background(), writeDocument(t, dir, document.JPG), dir, document.JPG)
	require.NoError(t, err)
	assert.FileExists(t, out)
}

func TestExport_UndecodableSVG(t *testing.T) {
	e := testExporter(t)
	dir := t.TempDir()
	html := filepath.Join(dir, document.PNG.TempHTMLName())
	require.NoError(t, document.Write(html, document.Params{
		DataURI:        encoder.Encode([]byte("not an svg")),
		OutputFilename: "broken.png",
		Format:         document.PNG,
	}))

	_, err := e.Export(context.Background(), html, dir, document.PNG)
	assert.True(t, errors.Is(err, ErrImageDecode))
}
