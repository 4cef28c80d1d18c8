// Package zip bundles generated artifacts into a single downloadable
// archive.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
)

type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets packs the assets into a zip archive. Empty or duplicate
// filenames are disambiguated so every asset survives the round trip,
// including assets whose literal name collides with a derived one.
func ArchiveAssets(assets []Asset) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	used := make(map[string]bool, len(assets))
	for i, asset := range assets {
		base := asset.Filename
		if base == "" {
			base = fmt.Sprintf("asset-%03d", i+1)
		}
		name := base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%d-%s", n, base)
		}
		used[name] = true

		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create archive entry %s: %w", name, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("write archive entry %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}
