package watcher

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
)

var extMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// MimeFromExt returns the content type implied by name's extension, or "".
func MimeFromExt(name string) string {
	return extMime[strings.ToLower(filepath.Ext(name))]
}

func isSupportedExt(name string) bool {
	// debug dumps of conditioned images live next to the originals
	if strings.Contains(name, ".ocr.") || strings.HasPrefix(name, ".") {
		return false
	}
	_, ok := extMime[strings.ToLower(filepath.Ext(name))]
	return ok
}

func listImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// moveToProcessed moves src into dir, shrinking images larger than maxBytes.
// It attempts an atomic rename and falls back to copy+remove when necessary.
func moveToProcessed(src, dir string, maxBytes int64) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, filepath.Base(src))
	fi, err := os.Stat(src)
	if err != nil {
		return "", err
	}
	if maxBytes <= 0 || fi.Size() <= maxBytes {
		return dst, renameOrCopy(src, dst)
	}
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return dst, renameOrCopy(src, dst)
	}
	// encoded size roughly follows pixel area
	scale := math.Sqrt(float64(maxBytes) / float64(fi.Size()))
	scale = math.Max(0.1, math.Min(scale, 0.95))
	w := int(math.Max(1, math.Round(float64(img.Bounds().Dx())*scale)))
	img = imaging.Resize(img, w, 0, imaging.Lanczos)
	if err := imaging.Save(img, dst, imaging.JPEGQuality(85)); err != nil {
		return dst, renameOrCopy(src, dst)
	}
	return dst, os.Remove(src)
}

func renameOrCopy(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
