// Package app runs the SVG to raster pipeline: encode once, then for each
// requested format write a document, export it through the browser and clean
// the document up.
package app

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/xid"

	"svg2img/internal/cache"
	"svg2img/internal/chrome"
	"svg2img/internal/cleanup"
	"svg2img/internal/document"
	"svg2img/internal/encoder"
	u "svg2img/internal/utils"
)

// Exporter turns a generated document into a raster file in destDir.
type Exporter interface {
	Export(ctx context.Context, htmlPath, destDir string, f document.Format) (string, error)
}

// Recorder stores the outcome of each attempted format.
type Recorder interface {
	Record(ctx context.Context, rec u.ConversionRecord) error
}

// Remover disposes of temporary documents.
type Remover interface {
	Remove(ctx context.Context, path string) cleanup.Result
}

// Converter holds everything one run needs. Cache and History may be nil.
type Converter struct {
	Config   u.Config
	Exporter Exporter
	Cache    *cache.RenderCache
	History  Recorder
	Cleaner  Remover
}

// Result is the outcome of one requested format.
type Result struct {
	Format  string
	Output  string
	Cached  bool
	Skipped bool
	Err     error
	Cleanup cleanup.Result
}

// Report summarises a run.
type Report struct {
	RunID   string
	Source  string
	Results []Result
}

// Saved counts formats whose raster was written.
func (r *Report) Saved() int {
	n := 0
	for _, res := range r.Results {
		if !res.Skipped && res.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts formats that were attempted and failed.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// source is the encoded input shared by every format of a run.
type source struct {
	svg      []byte
	dataURI  string
	basename string
	// size is the intrinsic size parsed from the SVG; zero when unknown.
	size encoder.Size
}

// Run converts the SVG at svgPath into every configured format, one after
// the other. A missing or unreadable source aborts before any document is
// written. Per-format failures are recorded in the report and do not stop
// the remaining formats. Cancelling ctx stops the run and is returned as
// the error even when it interrupted the last format.
func (c *Converter) Run(ctx context.Context, svgPath string) (*Report, error) {
	report := &Report{RunID: xid.New().String(), Source: svgPath}
	ctx = u.WithFields(ctx, "run_id", report.RunID)
	log := u.FromContext(ctx)

	svg, err := encoder.ReadSVG(svgPath)
	if err != nil {
		return report, err
	}
	src := source{
		svg:      svg,
		dataURI:  encoder.Encode(svg),
		basename: strings.TrimSuffix(filepath.Base(svgPath), filepath.Ext(svgPath)),
	}

	if size, err := encoder.Probe(svg); err != nil {
		log.Warn("SVG preflight parse failed, leaving it to the browser", "source", svgPath, "error", err)
	} else {
		src.size = size
		log.Debug("SVG intrinsic size", "source", svgPath, "size", size.String())
	}

	for _, name := range c.Config.Output.Formats {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		f, err := document.ParseFormat(name)
		if err != nil {
			// Kept as skip-with-warning rather than a startup error.
			log.Warn("Invalid format, skipping", "format", name)
			report.Results = append(report.Results, Result{Format: name, Skipped: true})
			continue
		}

		res := c.convert(ctx, src, f)
		report.Results = append(report.Results, res)
		c.record(ctx, report, res)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (c *Converter) convert(ctx context.Context, src source, f document.Format) Result {
	log := u.FromContext(ctx)
	res := Result{Format: string(f)}
	outName := f.OutputName(src.basename)
	outDir := c.Config.Output.Dir

	key := cache.Key(src.svg, f, c.Config.Output.JPEGQuality)
	if data, ok := c.Cache.Get(ctx, key); ok {
		out := filepath.Join(outDir, outName)
		if err := os.WriteFile(out, data, 0o644); err != nil {
			res.Err = fmt.Errorf("write cached %s: %w", out, err)
			log.Error("Conversion failed", "format", string(f), "error", res.Err)
			return res
		}
		res.Output, res.Cached = out, true
		log.Info("Saved", "path", out, "cached", true)
		return res
	}

	htmlPath := filepath.Join(c.Config.Output.WorkDir, f.TempHTMLName())
	err := document.Write(htmlPath, document.Params{
		DataURI:        src.dataURI,
		OutputFilename: outName,
		Format:         f,
		JPEGQuality:    c.Config.Output.JPEGQuality,
	})
	if err != nil {
		res.Err = err
		log.Error("Conversion failed", "format", string(f), "error", err)
		return res
	}

	out, err := c.Exporter.Export(ctx, htmlPath, outDir, f)
	res.Cleanup = c.Cleaner.Remove(ctx, htmlPath)
	if err != nil {
		res.Err = err
		if chrome.IsSessionInterrupted(err) {
			log.Error("Browser session interrupted", "format", string(f), "error", err)
		} else {
			log.Error("Conversion failed", "format", string(f), "error", err)
		}
		return res
	}

	res.Output = out
	log.Info("Saved", "path", out)
	c.inspect(ctx, out, key, src.size)
	return res
}

// inspect checks the exported raster and caches it when it decodes at the
// expected size.
func (c *Converter) inspect(ctx context.Context, out, key string, want encoder.Size) {
	log := u.FromContext(ctx)
	data, err := os.ReadFile(out)
	if err != nil {
		log.Warn("Cannot read exported raster", "path", out, "error", err)
		return
	}
	cfg, codec, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		log.Warn("Exported file is not a decodable image", "path", out, "error", err)
		return
	}
	log.Debug("Raster written", "path", out, "codec", codec, "width", cfg.Width, "height", cfg.Height)

	if w, h, ok := want.Pixels(); ok && (cfg.Width != w || cfg.Height != h) {
		log.Warn("Raster size differs from the SVG intrinsic size, not caching",
			"path", out, "width", cfg.Width, "height", cfg.Height, "expected", want.String())
		return
	}
	c.Cache.Set(ctx, key, data)
}

func (c *Converter) record(ctx context.Context, report *Report, res Result) {
	if c.History == nil {
		return
	}
	err := c.History.Record(ctx, u.ConversionRecord{
		RunID:  report.RunID,
		Source: report.Source,
		Format: res.Format,
		Output: res.Output,
		Cached: res.Cached,
		Err:    res.Err,
	})
	if err != nil {
		u.FromContext(ctx).Warn("Recording conversion failed", "format", res.Format, "error", err)
	}
}
