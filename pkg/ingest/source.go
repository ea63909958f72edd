package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ChangeSource fetches the pending batch for a tenant from one upstream
// system. Implementations own connection details; the worker only sees
// batches.
type ChangeSource interface {
	Fetch(ctx context.Context, tenant string) (*Batch, error)
}

// SourceLookup resolves a change source by name.
type SourceLookup func(source string) (ChangeSource, bool)

// StaticSource is a ChangeSource serving a fixed batch. Used in tests and
// for replaying exported batches.
type StaticSource struct {
	Batch *Batch
	Err   error
}

// Fetch implements ChangeSource.
func (s *StaticSource) Fetch(_ context.Context, _ string) (*Batch, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Batch, nil
}

// FileSource reads batches dropped as JSON files: one file per tenant under
// dir/<source>/<tenant>.json. Upstream exporters write the file, then enqueue
// a run naming the source.
type FileSource struct {
	Dir  string
	Name string
}

// Fetch implements ChangeSource.
func (s *FileSource) Fetch(_ context.Context, tenant string) (*Batch, error) {
	path := filepath.Join(s.Dir, s.Name, tenant+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file %s: %w", path, err)
	}
	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("decode batch file %s: %w", path, err)
	}
	if batch.Tenant == "" {
		batch.Tenant = tenant
	}
	if batch.Tenant != tenant {
		return nil, fmt.Errorf("batch file %s is for tenant %q, run is for %q", path, batch.Tenant, tenant)
	}
	return &batch, nil
}

// FileSourceLookup serves every source name from subdirectories of dir.
func FileSourceLookup(dir string) SourceLookup {
	return func(source string) (ChangeSource, bool) {
		if dir == "" {
			return nil, false
		}
		if info, err := os.Stat(filepath.Join(dir, source)); err != nil || !info.IsDir() {
			return nil, false
		}
		return &FileSource{Dir: dir, Name: source}, true
	}
}
