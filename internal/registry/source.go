// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
)

// DocumentRef locates one contract definition document.
type DocumentRef struct {
	DatasetID string
	Version   int
	Location  string
}

// Source is a backing store of contract definition documents laid out as
// <dataset_id>/v<N>.yaml (or .yml / .json).
type Source interface {
	// List returns every document the source holds.
	List(ctx context.Context) ([]DocumentRef, error)
	// Read returns the raw bytes of one document.
	Read(ctx context.Context, ref DocumentRef) ([]byte, error)
	Name() string
}

var versionFileRe = regexp.MustCompile(`^v([0-9]+)\.(yaml|yml|json)$`)

// parseVersionFile extracts N from "vN.yaml". ok is false for other names.
func parseVersionFile(name string) (int, bool) {
	m := versionFileRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v < 1 {
		return 0, false
	}
	return v, true
}

// DirSource reads contract documents from a file system, typically
// os.DirFS(contractsDir).
type DirSource struct {
	fsys fs.FS
	name string
}

// NewDirSource creates a DirSource. name is used in logs and errors.
func NewDirSource(fsys fs.FS, name string) *DirSource {
	return &DirSource{fsys: fsys, name: name}
}

func (s *DirSource) Name() string {
	return s.name
}

func (s *DirSource) List(_ context.Context) ([]DocumentRef, error) {
	datasets, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("list contracts in %s: %w", s.name, err)
	}

	var refs []DocumentRef
	for _, d := range datasets {
		if !d.IsDir() {
			continue
		}
		entries, err := fs.ReadDir(s.fsys, d.Name())
		if err != nil {
			return nil, fmt.Errorf("list contracts in %s/%s: %w", s.name, d.Name(), err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			version, ok := parseVersionFile(e.Name())
			if !ok {
				continue
			}
			refs = append(refs, DocumentRef{
				DatasetID: d.Name(),
				Version:   version,
				Location:  path.Join(d.Name(), e.Name()),
			})
		}
	}
	return refs, nil
}

func (s *DirSource) Read(_ context.Context, ref DocumentRef) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, ref.Location)
	if err != nil {
		return nil, fmt.Errorf("read contract %s/%s: %w", s.name, ref.Location, err)
	}
	return data, nil
}

// buildIndex groups refs per dataset, sorted by ascending version, and rejects
// two documents claiming the same (dataset, version).
func buildIndex(refs []DocumentRef) (map[string][]DocumentRef, error) {
	index := make(map[string][]DocumentRef)
	for _, ref := range refs {
		index[ref.DatasetID] = append(index[ref.DatasetID], ref)
	}
	for id, list := range index {
		sort.Slice(list, func(i, j int) bool { return list[i].Version < list[j].Version })
		for i := 1; i < len(list); i++ {
			if list[i].Version == list[i-1].Version {
				return nil, fmt.Errorf("dataset %q version %d is defined twice: %s and %s",
					id, list[i].Version, list[i-1].Location, list[i].Location)
			}
		}
	}
	return index, nil
}
