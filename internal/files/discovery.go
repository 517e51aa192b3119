package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/pkg/contracts/domain"
)

// Supported raw file extensions, in order of preference
const (
	ExtCSV  = ".csv"
	ExtXLSX = ".xlsx"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Ext returns the lower-cased extension of the file
func (f FileInfo) Ext() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// Discovery provides file discovery operations
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// FindRawDatasets locates the Olist export files in dir and maps them to
// dataset names. A CSV file wins over a workbook with the same stem, and
// the newest of several same-stem workbooks wins.
// Datasets without a file are simply absent from the result.
func (d *Discovery) FindRawDatasets(dir string) (map[string]FileInfo, error) {
	workbooks, err := d.FindExcelFiles(dir)
	if err != nil {
		return nil, err
	}
	csvs, err := d.FindCSVFiles(dir)
	if err != nil {
		return nil, err
	}

	byStem := make(map[string]FileInfo, len(workbooks)+len(csvs))
	for _, f := range append(workbooks, csvs...) {
		byStem[stemOf(f.Name)] = f
	}

	datasets := make(map[string]FileInfo, len(domain.RawDatasetFiles))
	for dataset, stem := range domain.RawDatasetFiles {
		if f, ok := byStem[stem]; ok {
			datasets[dataset] = f
		}
	}
	return datasets, nil
}

func stemOf(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
}

// FindCSVFiles finds all CSV files in the specified directory
func (d *Discovery) FindCSVFiles(dir string) ([]FileInfo, error) {
	return d.findFiles(dir, ExtCSV)
}

// FindExcelFiles finds all XLSX workbooks in the specified directory, oldest first
func (d *Discovery) FindExcelFiles(dir string) ([]FileInfo, error) {
	files, err := d.findFiles(dir, ExtXLSX)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModTime.Before(files[j].ModTime)
	})
	return files, nil
}

// findFiles lists the regular files of dir with one of the given extensions, sorted by name
func (d *Discovery) findFiles(dir string, exts ...string) ([]FileInfo, error) {
	fullPath := d.resolve(dir)

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		matched := false
		for _, want := range exts {
			if ext == want {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(fullPath, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// resolve joins relative directories to the base path
func (d *Discovery) resolve(dir string) string {
	if filepath.IsAbs(dir) || d.basePath == "" {
		return dir
	}
	return filepath.Join(d.basePath, dir)
}
