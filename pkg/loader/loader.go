package loader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/xhad/askpdf/internal/models"
)

type LoaderConfig struct {
	Extensions []string
	MaxBytes   int64
}

// Loader turns local paths into upload payloads. Directories are expanded
// one level deep, keeping only files with an allowed extension.
type Loader struct {
	config LoaderConfig
}

func NewWithConfig(config LoaderConfig) *Loader {
	if len(config.Extensions) == 0 {
		config.Extensions = []string{".pdf"}
	}
	if config.MaxBytes == 0 {
		config.MaxBytes = 50 << 20
	}
	return &Loader{config: config}
}

func New() *Loader {
	return NewWithConfig(LoaderConfig{})
}

// Load reads every path. Files that cannot be read are reported in the
// returned error; the rest are still returned.
func (l *Loader) Load(paths ...string) ([]models.File, error) {
	var files []models.File
	var errs []error

	for _, path := range l.expand(paths, &errs) {
		file, err := l.LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		files = append(files, file)
	}
	return files, errors.Join(errs...)
}

func (l *Loader) expand(paths []string, errs *[]error) []string {
	var out []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		if !info.IsDir() {
			out = append(out, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		var found []string
		for _, entry := range entries {
			if !entry.IsDir() && l.Accepts(entry.Name()) {
				found = append(found, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out
}

// Accepts reports whether name has one of the allowed extensions.
func (l *Loader) Accepts(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range l.config.Extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func (l *Loader) LoadFile(path string) (models.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.File{}, fmt.Errorf("%s: %w", path, err)
	}
	if info.Size() > l.config.MaxBytes {
		return models.File{}, fmt.Errorf("%s: file is larger than %d bytes", path, l.config.MaxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.File{}, fmt.Errorf("%s: %w", path, err)
	}

	return models.File{
		Name:  filepath.Base(path),
		Bytes: data,
		Pages: PageCount(data),
	}, nil
}

// PageCount returns the number of pages in a PDF, or 0 if it cannot be read.
// The backend does the real parsing; this is only for display.
func PageCount(data []byte) (pages int) {
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return 0
	}
	defer func() {
		if recover() != nil {
			pages = 0
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0
	}
	return reader.NumPage()
}
