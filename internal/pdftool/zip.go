package pdftool

import (
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// BundleZip пакует файлы в zip (плоско, только базовые имена) —
// для операций с несколькими выходными файлами: split, pdf-to-images.
func BundleZip(paths []string, w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			zw.Close()
			return err
		}
		entry, err := zw.Create(filepath.Base(path))
		if err != nil {
			f.Close()
			zw.Close()
			return err
		}
		if _, err := io.Copy(entry, f); err != nil {
			f.Close()
			zw.Close()
			return err
		}
		f.Close()
	}
	return zw.Close()
}
