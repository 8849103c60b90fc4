// Package catalog holds the in-memory index of catalogued entities and
// visited paths for one indexing run.
//
// The index is seeded from storage before any path is processed and is the
// single authority for "is this file already indexed" and "which rows does
// this file add". Identifiers enter the index only through Commit, which the
// caller invokes after the storage transaction for those rows succeeded, so
// the index never claims an entity that storage does not hold.
//
// An Index is owned by one goroutine. KnownPaths returns a snapshot that
// may be shared with other goroutines.
package catalog

import (
	"dicom-index/internal/database"
	"dicom-index/internal/header"
)

type set map[string]struct{}

func (s set) has(k string) bool {
	_, ok := s[k]
	return ok
}

func (s set) add(k string) {
	s[k] = struct{}{}
}

// Index tracks the identifiers present in storage and the terminal status of
// every path seen.
type Index struct {
	patients  set
	studies   set
	series    set
	instances set
	paths     map[string]database.PathStatus
}

// New returns an empty index.
func New() *Index {
	return &Index{
		patients:  make(set),
		studies:   make(set),
		series:    make(set),
		instances: make(set),
		paths:     make(map[string]database.PathStatus),
	}
}

// Seed adds identifiers and path statuses read from storage.
func (x *Index) Seed(ids database.Identifiers, statuses map[string]database.PathStatus) {
	for _, id := range ids.Patients {
		x.patients.add(id)
	}
	for _, id := range ids.Studies {
		x.studies.add(id)
	}
	for _, id := range ids.Series {
		x.series.add(id)
	}
	for _, id := range ids.Instances {
		x.instances.add(id)
	}
	for p, s := range statuses {
		x.paths[p] = s
	}
}

// Classification is the result of Classify. Exactly one of Duplicate and
// Rows is meaningful: Duplicate is non-nil when the instance is already
// catalogued, in which case Rows is empty.
type Classification struct {
	Identifiers header.Identifiers
	Duplicate   *database.DuplicateInstance
	Rows        database.Rows
}

// IsDuplicate reports whether the file repeats a catalogued instance.
func (c Classification) IsDuplicate() bool {
	return c.Duplicate != nil
}

// Classify decides what h adds to the catalog. It does not modify the index.
// A header lacking any identifier yields header.ErrMissingRequiredField.
func (x *Index) Classify(h *header.Header, path string) (Classification, error) {
	ids, err := h.Identifiers()
	if err != nil {
		return Classification{}, err
	}

	c := Classification{Identifiers: ids}
	if x.instances.has(ids.SOPInstanceUID) {
		c.Duplicate = &database.DuplicateInstance{Path: path, SOPInstanceUID: ids.SOPInstanceUID}
		return c, nil
	}

	if !x.patients.has(ids.PatientID) {
		c.Rows.Patient = &database.Patient{
			PatientID:  ids.PatientID,
			Attributes: attributes(h, header.PatientFields),
		}
	}
	if !x.studies.has(ids.StudyInstanceUID) {
		c.Rows.Study = &database.Study{
			StudyInstanceUID: ids.StudyInstanceUID,
			PatientID:        ids.PatientID,
			Attributes:       attributes(h, header.StudyFields),
		}
	}
	if !x.series.has(ids.SeriesInstanceUID) {
		c.Rows.Series = &database.Series{
			SeriesInstanceUID: ids.SeriesInstanceUID,
			StudyInstanceUID:  ids.StudyInstanceUID,
			Attributes:        attributes(h, header.SeriesFields),
		}
	}
	c.Rows.Instance = &database.Instance{
		SOPInstanceUID:    ids.SOPInstanceUID,
		SeriesInstanceUID: ids.SeriesInstanceUID,
		Path:              path,
		Attributes:        attributes(h, header.InstanceFields),
	}
	return c, nil
}

func attributes(h *header.Header, fields []string) database.Attributes {
	attrs := make(database.Attributes, len(fields))
	for _, f := range fields {
		if v, ok := h.Get(f); ok {
			attrs[f] = v
		}
	}
	return attrs
}

// Commit adds the four identifiers of a classified file. Call it only after
// the rows from Classify were durably written, and never for duplicates.
func (x *Index) Commit(ids header.Identifiers) {
	x.patients.add(ids.PatientID)
	x.studies.add(ids.StudyInstanceUID)
	x.series.add(ids.SeriesInstanceUID)
	x.instances.add(ids.SOPInstanceUID)
}

// MarkPathStatus records the terminal status of path. A path keeps the
// status it was first given.
func (x *Index) MarkPathStatus(path string, status database.PathStatus) {
	if _, ok := x.paths[path]; ok {
		return
	}
	x.paths[path] = status
}

// IsKnownPath reports whether path already has a terminal status.
func (x *Index) IsKnownPath(path string) bool {
	_, ok := x.paths[path]
	return ok
}

// PathStatus returns the recorded status of path.
func (x *Index) PathStatus(path string) (database.PathStatus, bool) {
	s, ok := x.paths[path]
	return s, ok
}

// Counts are the sizes of the identifier sets and the path map.
type Counts struct {
	Patients  int
	Studies   int
	Series    int
	Instances int
	Paths     int
}

// Counts returns the current set sizes.
func (x *Index) Counts() Counts {
	return Counts{
		Patients:  len(x.patients),
		Studies:   len(x.studies),
		Series:    len(x.series),
		Instances: len(x.instances),
		Paths:     len(x.paths),
	}
}

// KnownPaths returns a copy of the set of paths with a terminal status.
func (x *Index) KnownPaths() PathSet {
	out := make(PathSet, len(x.paths))
	for p := range x.paths {
		out[p] = struct{}{}
	}
	return out
}

// PathSet is an immutable set of paths, safe for concurrent reads.
type PathSet map[string]struct{}

// Contains reports whether p is in the set.
func (s PathSet) Contains(p string) bool {
	_, ok := s[p]
	return ok
}
