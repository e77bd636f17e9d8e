package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsImageFile reports whether name has an extension a registered decoder
// handles.
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// List returns the image files directly inside dir in natural order, so
// "img2.png" sorts before "img10.png".
func List(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var sources []Source
	skipped := 0
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			skipped++
			continue
		}
		sources = append(sources, File(filepath.Join(dir, e.Name())))
	}
	SortNatural(sources)

	slogger().Debug("source: listed directory", "dir", dir,
		"images", len(sources), "skipped", skipped)
	return sources, nil
}

// SortNatural sorts sources by file name, comparing digit runs
// numerically.
func SortNatural(sources []Source) {
	c := collate.New(language.Und, collate.Numeric, collate.IgnoreCase)
	sort.SliceStable(sources, func(i, j int) bool {
		return c.CompareString(sources[i].FileName(), sources[j].FileName()) < 0
	})
}
