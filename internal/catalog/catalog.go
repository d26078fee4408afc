// Package catalog reads table descriptors produced by the external catalog.
//
// The catalog owns the descriptors; this package only reads them. One JSON
// document per gold table lives at <dir>/<table_name>.json.
package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"workgov/internal/domain"
)

// FileCatalog implements domain.CatalogReader over a directory of JSON
// descriptor documents.
type FileCatalog struct {
	dir string
}

// NewFileCatalog creates a FileCatalog rooted at dir.
func NewFileCatalog(dir string) *FileCatalog {
	return &FileCatalog{dir: dir}
}

var _ domain.CatalogReader = (*FileCatalog)(nil)

// Load reads one table descriptor. A missing or malformed document is a
// DataUnavailableError; the scoring batch skips the table and continues.
func (c *FileCatalog) Load(_ context.Context, tableName string) (*domain.TableDescriptor, error) {
	path := filepath.Join(c.dir, tableName+".json")
	raw, err := os.ReadFile(path) //nolint:gosec // path derives from catalog dir config
	if err != nil {
		return nil, domain.ErrDataUnavailable(tableName, "read descriptor %s: %v", path, err)
	}

	var desc domain.TableDescriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, domain.ErrDataUnavailable(tableName, "decode descriptor %s: %v", path, err)
	}
	if desc.TableName == "" {
		desc.TableName = tableName
	}
	if desc.TableName != tableName {
		return nil, domain.ErrDataUnavailable(tableName,
			"descriptor %s names table %q", path, desc.TableName)
	}
	return &desc, nil
}

// LoadAll reads every descriptor in the catalog directory, sorted by table
// name. A totally unavailable catalog (missing directory) is a structural
// error; a single bad document is skipped by the caller via Load.
func (c *FileCatalog) LoadAll(ctx context.Context) ([]domain.TableDescriptor, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, domain.ErrDataUnavailable("", "read catalog dir %s: %v", c.dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)

	descs := make([]domain.TableDescriptor, 0, len(names))
	for _, name := range names {
		desc, err := c.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		descs = append(descs, *desc)
	}
	return descs, nil
}
