// Package disks holds a table of predefined disk image sizes that the
// formatting tool can create images from, along with a suggested inode
// provisioning for each.
package disks

import (
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
)

// ImagePreset describes one predefined image size.
type ImagePreset struct {
	Name string `csv:"name"`
	Slug string `csv:"slug"`
	// SizeBytes is the image size. Always a multiple of the 4096-byte block
	// size.
	SizeBytes int64 `csv:"size_bytes"`
	// SuggestedInodes is a recommended inode count for an image of this size.
	// The formatter does not read it; its inode count is always given
	// explicitly.
	SuggestedInodes uint32 `csv:"suggested_inodes"`
	Notes           string `csv:"notes"`
}

//go:embed image-presets.csv
var imagePresetsRawCSV string
var imagePresets = make(map[string]ImagePreset)

// GetImagePreset looks up a predefined image size by its slug.
func GetImagePreset(slug string) (ImagePreset, error) {
	preset, ok := imagePresets[slug]
	if ok {
		return preset, nil
	}
	return ImagePreset{},
		fmt.Errorf("no predefined image size exists with slug %q", slug)
}

// PresetSlugs returns every known preset slug, sorted.
func PresetSlugs() []string {
	slugs := make([]string, 0, len(imagePresets))
	for slug := range imagePresets {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

func init() {
	reader := strings.NewReader(imagePresetsRawCSV)
	err := gocsv.UnmarshalToCallback(
		reader,
		func(row ImagePreset) error {
			_, exists := imagePresets[row.Slug]
			if exists {
				return fmt.Errorf(
					"duplicate definition for image preset %q", row.Slug)
			}
			imagePresets[row.Slug] = row
			return nil
		},
	)
	if err != nil && err != io.EOF {
		panic(err)
	}
}
