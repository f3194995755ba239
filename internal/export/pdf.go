package export

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// A4 in inches with a 0.2 inch margin on every side.
const (
	paperWidthIn  = 8.27
	paperHeightIn = 11.69
	marginIn      = 0.2
)

var chromeBinaries = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable", "headless-shell"}

// percentEncodeForDataURL encodes s for a data URL. Spaces become %20, not +.
func percentEncodeForDataURL(s string) string {
	var result strings.Builder
	for _, b := range []byte(s) {
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9',
			b == '-', b == '_', b == '.', b == '~':
			result.WriteByte(b)
		default:
			fmt.Fprintf(&result, "%%%02X", b)
		}
	}
	return result.String()
}

func pdfParams() *page.PrintToPDFParams {
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithPaperWidth(paperWidthIn).
		WithPaperHeight(paperHeightIn).
		WithMarginTop(marginIn).
		WithMarginBottom(marginIn).
		WithMarginLeft(marginIn).
		WithMarginRight(marginIn).
		WithPreferCSSPageSize(false)
}

func findChrome() (string, error) {
	for _, name := range chromeBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: no chrome or chromium binary on PATH", ErrPDFDependencyMissing)
}

// chromePDF prints html with a headless browser that lives only for this call.
// Every context is cancelled on return so the browser process is always released.
func chromePDF(ctx context.Context, html string, timeout time.Duration) ([]byte, error) {
	binary, err := findChrome()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(binary),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var pdfData []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate("data:text/html;charset=utf-8,"+percentEncodeForDataURL(html)),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfData, _, err = pdfParams().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: chrome pdf generation: %v", ErrRenderFailed, err)
	}
	return pdfData, nil
}
