package chart

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
)

// RenderPNG opens the chart page in headless Chrome and writes a screenshot of
// the chart element to pngPath. The page loads the ECharts script from its
// assets host, so the browser needs network access.
func RenderPNG(ctx context.Context, htmlPath, pngPath, chromeBin string) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(width+80, height+120),
	)
	if bin := findChromeBinary(chromeBin); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, 60*time.Second)
	defer cancelTimeout()

	var buf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("file://"+htmlPath),
		chromedp.WaitVisible(".item canvas", chromedp.ByQuery),
		chromedp.Screenshot(".item", &buf, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("chart: chromedp screenshot: %w", err)
	}

	if err := os.WriteFile(pngPath, buf, 0644); err != nil {
		return fmt.Errorf("chart: write %s: %w", pngPath, err)
	}
	return nil
}

// findChromeBinary locates a Chrome/Chromium binary; empty lets chromedp search.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
