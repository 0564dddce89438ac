package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var pageImageRe = regexp.MustCompile(`-(\d+)\.jpg$`)

// renderPDF rasterizes every page of a PDF into JPEG files under dir
// using pdftoppm, returning the image paths in page order.
func renderPDF(ctx context.Context, pdfPath, dir string, dpi int) ([]string, error) {
	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-jpeg", "-r", strconv.Itoa(dpi), pdfPath, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %v: %s", err, strings.TrimSpace(stderr.String()))
	}

	paths, err := filepath.Glob(prefix + "-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("list rendered pages: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages")
	}
	sort.Slice(paths, func(i, j int) bool {
		return pageNumber(paths[i]) < pageNumber(paths[j])
	})
	return paths, nil
}

func pageNumber(path string) int {
	m := pageImageRe.FindStringSubmatch(path)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
