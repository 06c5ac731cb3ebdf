package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/platinummonkey/apidelta/pkg/descriptor"
	"github.com/platinummonkey/apidelta/pkg/report"
)

const (
	baselinesDir = "baselines"
	reportsDir   = "reports"
)

// FileSystemStorage implements Store on the local filesystem. Baselines are kept as
// <root>/baselines/<name>.yaml and reports as <root>/reports/<id>.json.
type FileSystemStorage struct {
	rootDir string
	mu      sync.RWMutex
}

// NewFileSystemStorage creates a new filesystem-based storage
func NewFileSystemStorage(rootDir string) (*FileSystemStorage, error) {
	for _, dir := range []string{baselinesDir, reportsDir} {
		if err := os.MkdirAll(filepath.Join(rootDir, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return &FileSystemStorage{rootDir: rootDir}, nil
}

func (s *FileSystemStorage) baselinePath(name string) string {
	return filepath.Join(s.rootDir, baselinesDir, name+".yaml")
}

func (s *FileSystemStorage) reportPath(id string) string {
	return filepath.Join(s.rootDir, reportsDir, id+".json")
}

// PutBaseline implements Store.PutBaseline
func (s *FileSystemStorage) PutBaseline(ctx context.Context, doc *descriptor.BaselineDocument) (BaselineInfo, error) {
	data, info, err := Encode(doc)
	if err != nil {
		return BaselineInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(s.baselinePath(doc.Name), data); err != nil {
		return BaselineInfo{}, fmt.Errorf("failed to write baseline %s: %w", doc.Name, err)
	}
	return info, nil
}

// GetBaseline implements Store.GetBaseline
func (s *FileSystemStorage) GetBaseline(ctx context.Context, name string) (*descriptor.BaselineDocument, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, err := os.ReadFile(s.baselinePath(name))
	s.mu.RUnlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("baseline %s: %w", name, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read baseline %s: %w", name, err)
	}

	return descriptor.Parse(data)
}

// ListBaselines implements Store.ListBaselines
func (s *FileSystemStorage) ListBaselines(ctx context.Context) ([]BaselineInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(s.rootDir, baselinesDir))
	if err != nil {
		return nil, fmt.Errorf("failed to read baselines directory: %w", err)
	}

	infos := []BaselineInfo{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(s.rootDir, baselinesDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read baseline %s: %w", entry.Name(), err)
		}
		doc, err := descriptor.Parse(data)
		if err != nil {
			return nil, err
		}
		_, info, err := Encode(doc)
		if err != nil {
			return nil, fmt.Errorf("stored baseline %s is invalid: %w", entry.Name(), err)
		}
		if fi, err := entry.Info(); err == nil {
			info.UpdatedAt = fi.ModTime().UTC()
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// DeleteBaseline implements Store.DeleteBaseline
func (s *FileSystemStorage) DeleteBaseline(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.baselinePath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("baseline %s: %w", name, ErrNotFound)
	}
	return err
}

// SaveReport implements Store.SaveReport
func (s *FileSystemStorage) SaveReport(ctx context.Context, r *report.Report) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("report must have an id")
	}
	var buf bytes.Buffer
	if err := report.RenderJSON(&buf, r); err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(s.reportPath(r.ID), buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write report %s: %w", r.ID, err)
	}
	return nil
}

// GetReport implements Store.GetReport
func (s *FileSystemStorage) GetReport(ctx context.Context, id string) (*report.Report, error) {
	if err := ValidateName(id); err != nil {
		return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}

	s.mu.RLock()
	data, err := os.ReadFile(s.reportPath(id))
	s.mu.RUnlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", id, err)
	}
	return report.Decode(data)
}

// ListReports implements Store.ListReports, newest first
func (s *FileSystemStorage) ListReports(ctx context.Context, filter ReportFilter) ([]report.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(s.rootDir, reportsDir))
	if err != nil {
		return nil, fmt.Errorf("failed to read reports directory: %w", err)
	}

	summaries := []report.Summary{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.rootDir, reportsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read report %s: %w", entry.Name(), err)
		}
		r, err := report.Decode(data)
		if err != nil {
			return nil, err
		}
		if summary := r.Summarize(); filter.Matches(summary) {
			summaries = append(summaries, summary)
		}
	}

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
	if limit := filter.EffectiveLimit(); len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// HealthCheck implements Store.HealthCheck
func (s *FileSystemStorage) HealthCheck(ctx context.Context) error {
	for _, dir := range []string{baselinesDir, reportsDir} {
		fi, err := os.Stat(filepath.Join(s.rootDir, dir))
		if err != nil {
			return fmt.Errorf("filesystem unhealthy: %w", err)
		}
		if !fi.IsDir() {
			return fmt.Errorf("filesystem unhealthy: %s is not a directory", dir)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
