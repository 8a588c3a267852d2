package storage

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
	"github.com/regdocs/regdocs-backend/internal/profile"
)

var (
	ErrPackageNotFound = errors.New("package not found")
	ErrFileNotFound    = errors.New("file not found")
)

// PackageStore provides in-memory storage for applicant packages.
// Uploaded bytes never enter the store; only file metadata and extraction
// results do. Results are kept in document priority order.
// Packages are automatically cleaned up after a TTL of inactivity.
type PackageStore struct {
	mu       sync.RWMutex
	packages map[string]*domain.Package
	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewPackageStore creates a new in-memory package store with the given TTL.
// A zero TTL disables cleanup.
func NewPackageStore(ttl time.Duration) *PackageStore {
	s := &PackageStore{
		packages: make(map[string]*domain.Package),
		ttl:      ttl,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if ttl > 0 {
		go s.cleanupLoop()
	}
	return s
}

// Close stops the cleanup loop
func (s *PackageStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// GenerateID creates a random identifier for packages and files
func GenerateID() string {
	return uuid.NewString()
}

// CreatePackage registers an empty package and returns a snapshot of it
func (s *PackageStore) CreatePackage() *domain.Package {
	now := s.now()
	pkg := &domain.Package{
		ID:        GenerateID(),
		Files:     []domain.UploadedFile{},
		Results:   []domain.ExtractionResult{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages[pkg.ID] = pkg
	return clonePackage(pkg)
}

// GetPackage returns a copy of the package, safe to read without locking
func (s *PackageStore) GetPackage(packageID string) (*domain.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pkg, ok := s.packages[packageID]
	if !ok {
		return nil, ErrPackageNotFound
	}
	return clonePackage(pkg), nil
}

// AddFile registers an uploaded file in the package
func (s *PackageStore) AddFile(packageID string, file domain.UploadedFile) error {
	return s.update(packageID, func(pkg *domain.Package) error {
		pkg.Files = append(pkg.Files, file)
		return nil
	})
}

// HasFile reports whether the file is still registered in the package
func (s *PackageStore) HasFile(packageID, fileID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pkg, ok := s.packages[packageID]
	if !ok {
		return false
	}
	return fileIndex(pkg, fileID) >= 0
}

// SetFileStatus updates the processing state of a file
func (s *PackageStore) SetFileStatus(packageID, fileID string, status domain.FileStatus) error {
	return s.update(packageID, func(pkg *domain.Package) error {
		i := fileIndex(pkg, fileID)
		if i < 0 {
			return ErrFileNotFound
		}
		pkg.Files[i].Status = status
		return nil
	})
}

// PutResult stores the extraction result for a file, replacing any previous
// result with the same file id.
func (s *PackageStore) PutResult(packageID string, result domain.ExtractionResult) error {
	return s.update(packageID, func(pkg *domain.Package) error {
		if i := resultIndex(pkg, result.FileID); i >= 0 {
			pkg.Results[i] = result
			return nil
		}
		pkg.Results = append(pkg.Results, result)
		return nil
	})
}

// CompleteFile records the result of a finished extraction and the file's
// final status in one step. It fails with ErrFileNotFound when the file was
// removed while it was being processed, so late results are never stored.
func (s *PackageStore) CompleteFile(packageID string, result domain.ExtractionResult, status domain.FileStatus) error {
	return s.update(packageID, func(pkg *domain.Package) error {
		fi := fileIndex(pkg, result.FileID)
		if fi < 0 {
			return ErrFileNotFound
		}
		pkg.Files[fi].Status = status
		if ri := resultIndex(pkg, result.FileID); ri >= 0 {
			pkg.Results[ri] = result
			return nil
		}
		pkg.Results = append(pkg.Results, result)
		return nil
	})
}

// Restore puts a package rebuilt from persistent storage back into memory.
// An existing in-memory package with the same ID wins.
func (s *PackageStore) Restore(pkg *domain.Package) *domain.Package {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.packages[pkg.ID]; ok {
		return clonePackage(existing)
	}
	c := clonePackage(pkg)
	c.Results = profile.SortResults(c.Results)
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = s.now()
	}
	s.packages[c.ID] = c
	return clonePackage(c)
}

// ReplaceResult swaps the payload of an existing result, e.g. after a user
// corrected extracted fields. The result's error is cleared.
func (s *PackageStore) ReplaceResult(packageID, fileID string, payload domain.DocumentPayload) (domain.ExtractionResult, error) {
	var updated domain.ExtractionResult
	err := s.update(packageID, func(pkg *domain.Package) error {
		i := resultIndex(pkg, fileID)
		if i < 0 {
			return ErrFileNotFound
		}
		pkg.Results[i].Data = payload
		pkg.Results[i].Error = ""
		updated = pkg.Results[i]
		return nil
	})
	return updated, err
}

// RemoveFile drops a file and its extraction result from the package
func (s *PackageStore) RemoveFile(packageID, fileID string) error {
	return s.update(packageID, func(pkg *domain.Package) error {
		fi := fileIndex(pkg, fileID)
		ri := resultIndex(pkg, fileID)
		if fi < 0 && ri < 0 {
			return ErrFileNotFound
		}
		if fi >= 0 {
			pkg.Files = slices.Delete(pkg.Files, fi, fi+1)
		}
		if ri >= 0 {
			pkg.Results = slices.Delete(pkg.Results, ri, ri+1)
		}
		return nil
	})
}

// DeletePackage removes a package from storage
func (s *PackageStore) DeletePackage(packageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.packages, packageID)
}

func (s *PackageStore) update(packageID string, fn func(*domain.Package) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg, ok := s.packages[packageID]
	if !ok {
		return ErrPackageNotFound
	}
	if err := fn(pkg); err != nil {
		return err
	}
	pkg.Results = profile.SortResults(pkg.Results)
	pkg.UpdatedAt = s.now()
	return nil
}

func fileIndex(pkg *domain.Package, fileID string) int {
	return slices.IndexFunc(pkg.Files, func(f domain.UploadedFile) bool { return f.FileID == fileID })
}

func resultIndex(pkg *domain.Package, fileID string) int {
	return slices.IndexFunc(pkg.Results, func(r domain.ExtractionResult) bool { return r.FileID == fileID })
}

// Payloads are immutable values once stored, so a shallow copy of the
// slices is enough to isolate readers.
func clonePackage(pkg *domain.Package) *domain.Package {
	c := *pkg
	c.Files = slices.Clone(pkg.Files)
	c.Results = slices.Clone(pkg.Results)
	if c.Files == nil {
		c.Files = []domain.UploadedFile{}
	}
	if c.Results == nil {
		c.Results = []domain.ExtractionResult{}
	}
	return &c
}

// ZeroBytes overwrites a byte slice with zeros.
// Uploaded scans contain personal data and must not linger in memory.
func ZeroBytes(b []byte) {
	clear(b)
}

// cleanupLoop periodically removes expired packages
func (s *PackageStore) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

func (s *PackageStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	for id, pkg := range s.packages {
		if pkg.UpdatedAt.Before(cutoff) {
			delete(s.packages, id)
		}
	}
}
