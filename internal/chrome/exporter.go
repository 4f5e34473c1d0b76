package chrome

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"svg2img/internal/document"
	u "svg2img/internal/utils"
)

var (
	// ErrControlNotFound means the page has no export button for the format.
	ErrControlNotFound = errors.New("export control not found")
	// ErrDownloadCanceled means the browser aborted the download.
	ErrDownloadCanceled = errors.New("download canceled")
	// ErrImageDecode means the page could not decode the embedded SVG.
	ErrImageDecode = errors.New("browser could not decode the svg")
)

const exportErrorPoll = 100 * time.Millisecond

// Options configures the browser launched for each export.
type Options struct {
	ChromePath  string
	Headless    bool
	NoSandbox   bool
	UserDataDir string
	// Timeout bounds one export. Zero waits forever.
	Timeout time.Duration
}

// OptionsFromConfig maps the browser section of the configuration.
func OptionsFromConfig(cfg u.BrowserConfig) Options {
	return Options{
		ChromePath:  cfg.ChromePath,
		Headless:    cfg.Headless,
		NoSandbox:   cfg.NoSandbox,
		UserDataDir: cfg.UserDataDir,
		Timeout:     time.Duration(cfg.TimeoutSecs) * time.Second,
	}
}

// Exporter opens a generated document in a fresh Chrome, clicks its export
// control and moves the downloaded raster into place.
type Exporter struct {
	opts Options
}

func NewExporter(opts Options) *Exporter {
	return &Exporter{opts: opts}
}

type download struct {
	guid      string
	suggested string
	err       error
}

// Export renders htmlPath and returns the path of the raster written to
// destDir. Every call starts and tears down its own browser: the tab context
// is cancelled first, then the allocator, on every return path.
func (e *Exporter) Export(ctx context.Context, htmlPath, destDir string, f document.Format) (string, error) {
	pageURL, err := fileURL(htmlPath)
	if err != nil {
		return "", err
	}
	destDir, err = filepath.Abs(destDir)
	if err != nil {
		return "", err
	}

	downloadDir, err := os.MkdirTemp(destDir, ".svg2img-download-*")
	if err != nil {
		return "", fmt.Errorf("cannot create download dir: %w", err)
	}
	defer os.RemoveAll(downloadDir)

	profileDir, err := createProfileDir(e.opts.UserDataDir)
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(profileDir)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, e.allocatorOptions(profileDir)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer func() {
		tabCancel()
		allocCancel()
	}()

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithTimeout(tabCtx, e.opts.Timeout)
		defer cancel()
	}

	done := watchDownloads(tabCtx)

	u.FromContext(ctx).Debug("Opening document", "url", pageURL, "format", string(f))
	if err := chromedp.Run(tabCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
		chromedp.Navigate(pageURL),
	); err != nil {
		return "", fmt.Errorf("navigate %s: %w", pageURL, err)
	}

	if err := clickControl(tabCtx, f); err != nil {
		return "", err
	}

	dl, err := waitForDownload(tabCtx, done)
	if err != nil {
		return "", err
	}

	name := filepath.Base(dl.suggested)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("download %s has no suggested filename", dl.guid)
	}
	target := filepath.Join(destDir, name)
	if err := os.Rename(filepath.Join(downloadDir, dl.guid), target); err != nil {
		return "", fmt.Errorf("move download to %s: %w", target, err)
	}
	return target, nil
}

func (e *Exporter) allocatorOptions(profileDir string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profileDir),
		// Software rendering avoids Vulkan/ANGLE issues in minimal environments.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-gpu-compositing", true),
		chromedp.Flag("disable-features", "Vulkan,UseSkiaRenderer"),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("disable-dev-shm-usage", true),
		// The document reads its own data URI only, but file:// pages are
		// otherwise treated as unique origins.
		chromedp.Flag("allow-file-access-from-files", true),
	)
	if !e.opts.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if e.opts.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(e.opts.ChromePath))
	}
	if e.opts.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

// watchDownloads reports the first finished download seen on ctx. Download
// events may arrive on the browser or the target session depending on the
// Chrome version, so both are watched.
func watchDownloads(ctx context.Context) <-chan download {
	done := make(chan download, 1)
	var mu sync.Mutex
	names := make(map[string]string)

	report := func(d download) {
		select {
		case done <- d:
		default:
		}
	}
	listener := func(ev interface{}) {
		switch ev := ev.(type) {
		case *browser.EventDownloadWillBegin:
			mu.Lock()
			names[ev.GUID] = ev.SuggestedFilename
			mu.Unlock()
		case *browser.EventDownloadProgress:
			switch ev.State {
			case browser.DownloadProgressStateCompleted:
				mu.Lock()
				name := names[ev.GUID]
				mu.Unlock()
				report(download{guid: ev.GUID, suggested: name})
			case browser.DownloadProgressStateCanceled:
				report(download{guid: ev.GUID, err: ErrDownloadCanceled})
			}
		}
	}
	chromedp.ListenTarget(ctx, listener)
	chromedp.ListenBrowser(ctx, listener)
	return done
}

// clickControl finds the export button by its id and clicks it.
func clickControl(ctx context.Context, f document.Format) error {
	sel := "#" + f.ControlID()
	var nodes []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return fmt.Errorf("locate %s: %w", sel, err)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %s", ErrControlNotFound, sel)
	}
	if err := chromedp.Run(ctx, chromedp.MouseClickNode(nodes[0])); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

// waitForDownload blocks until a download finishes, the page flags a decode
// error, or ctx ends.
func waitForDownload(ctx context.Context, done <-chan download) (download, error) {
	ticker := time.NewTicker(exportErrorPoll)
	defer ticker.Stop()

	js := fmt.Sprintf(`document.body.getAttribute(%q) || ""`, document.ExportErrorAttr)
	for {
		select {
		case dl := <-done:
			if dl.err != nil {
				return dl, dl.err
			}
			return dl, nil
		case <-ctx.Done():
			return download{}, fmt.Errorf("waiting for download: %w", ctx.Err())
		case <-ticker.C:
			var marker string
			if err := chromedp.Run(ctx, chromedp.Evaluate(js, &marker)); err != nil {
				continue
			}
			if marker != "" {
				return download{}, fmt.Errorf("%w (%s)", ErrImageDecode, marker)
			}
		}
	}
}

func fileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		// Windows drive paths.
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String(), nil
}

func createProfileDir(base string) (string, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return "", fmt.Errorf("cannot create profile base dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(base, "chromedata-*")
	if err != nil {
		return "", fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	return dir, nil
}

// IsSessionInterrupted reports errors caused by the browser going away or the
// context ending, as opposed to problems with the document itself.
func IsSessionInterrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"target closed", "session closed", "websocket", "connection reset", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
