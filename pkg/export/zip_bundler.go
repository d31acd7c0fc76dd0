package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"
)

// BundleFile is one entry of a zip bundle. Open is called lazily while writing.
type BundleFile struct {
	Name     string
	Modified time.Time
	Open     func() (io.ReadCloser, error)
}

// ZipBundler packs files into a single zip archive.
type ZipBundler struct{}

// NewZipBundler constructs a zip bundler.
func NewZipBundler() *ZipBundler {
	return &ZipBundler{}
}

// Render writes every file into an in-memory archive. Duplicate names are
// suffixed so no entry is overwritten.
func (b *ZipBundler) Render(files []BundleFile) ([]byte, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("zip requires at least one file")
	}
	buf := &bytes.Buffer{}
	writer := zip.NewWriter(buf)
	seen := make(map[string]int, len(files))
	for _, file := range files {
		name := uniqueName(file.Name, seen)
		if err := b.add(writer, name, file); err != nil {
			_ = writer.Close()
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *ZipBundler) add(writer *zip.Writer, name string, file BundleFile) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer src.Close()

	header := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if !file.Modified.IsZero() {
		header.Modified = file.Modified
	}
	dst, err := writer.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("write zip entry %s: %w", name, err)
	}
	return nil
}

func uniqueName(name string, seen map[string]int) string {
	count := seen[name]
	seen[name] = count + 1
	if count == 0 {
		return name
	}
	return fmt.Sprintf("%d_%s", count, name)
}
