package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicom-index/internal/database"
	"dicom-index/internal/header"
)

func hdr(patient, study, series, sop string) *header.Header {
	return &header.Header{Elements: map[string]string{
		header.PatientID:         patient,
		header.StudyInstanceUID:  study,
		header.SeriesInstanceUID: series,
		header.SOPInstanceUID:    sop,
		"PatientName":            "Doe^" + patient,
		"Modality":               "MR",
		"InstanceNumber":         "1",
	}}
}

func TestClassifyNewFileEmitsAllRows(t *testing.T) {
	x := New()

	c, err := x.Classify(hdr("P", "S", "SE", "I"), "/a/1.dcm")
	require.NoError(t, err)
	require.False(t, c.IsDuplicate())

	require.NotNil(t, c.Rows.Patient)
	assert.Equal(t, "P", c.Rows.Patient.PatientID)
	assert.Equal(t, "Doe^P", c.Rows.Patient.Attributes["PatientName"])

	require.NotNil(t, c.Rows.Study)
	assert.Equal(t, "P", c.Rows.Study.PatientID)

	require.NotNil(t, c.Rows.Series)
	assert.Equal(t, "S", c.Rows.Series.StudyInstanceUID)
	assert.Equal(t, "MR", c.Rows.Series.Attributes["Modality"])

	require.NotNil(t, c.Rows.Instance)
	assert.Equal(t, "/a/1.dcm", c.Rows.Instance.Path)
	assert.Equal(t, "SE", c.Rows.Instance.SeriesInstanceUID)
	assert.Equal(t, "1", c.Rows.Instance.Attributes["InstanceNumber"])
	assert.NotContains(t, c.Rows.Instance.Attributes, "PatientName")
}

func TestClassifyDoesNotMutate(t *testing.T) {
	x := New()
	h := hdr("P", "S", "SE", "I")

	_, err := x.Classify(h, "/a")
	require.NoError(t, err)
	assert.Equal(t, Counts{}, x.Counts())

	// Without Commit the same file is still new.
	c, err := x.Classify(h, "/a")
	require.NoError(t, err)
	assert.False(t, c.IsDuplicate())
	assert.NotNil(t, c.Rows.Patient)
}

func TestClassifyAfterCommitEmitsOnlyNewLevels(t *testing.T) {
	x := New()

	first, err := x.Classify(hdr("P", "S", "SE1", "I1"), "/a")
	require.NoError(t, err)
	x.Commit(first.Identifiers)

	c, err := x.Classify(hdr("P", "S", "SE2", "I2"), "/b")
	require.NoError(t, err)
	assert.Nil(t, c.Rows.Patient)
	assert.Nil(t, c.Rows.Study)
	require.NotNil(t, c.Rows.Series)
	assert.Equal(t, "SE2", c.Rows.Series.SeriesInstanceUID)
	require.NotNil(t, c.Rows.Instance)

	assert.Equal(t, Counts{Patients: 1, Studies: 1, Series: 1, Instances: 1}, x.Counts())
}

func TestClassifyDuplicate(t *testing.T) {
	x := New()
	x.Seed(database.Identifiers{Instances: []string{"I"}}, nil)

	c, err := x.Classify(hdr("P", "S", "SE", "I"), "/copy")
	require.NoError(t, err)
	require.True(t, c.IsDuplicate())
	assert.Equal(t, &database.DuplicateInstance{Path: "/copy", SOPInstanceUID: "I"}, c.Duplicate)
	assert.True(t, c.Rows.Empty())
}

func TestClassifyMissingIdentifier(t *testing.T) {
	x := New()
	h := hdr("P", "S", "", "I")

	_, err := x.Classify(h, "/a")
	assert.ErrorIs(t, err, header.ErrMissingRequiredField)
}

func TestSeedAndPaths(t *testing.T) {
	x := New()
	x.Seed(
		database.Identifiers{
			Patients:  []string{"P1", "P2"},
			Studies:   []string{"S1"},
			Series:    []string{"SE1"},
			Instances: []string{"I1", "I2"},
		},
		map[string]database.PathStatus{
			"/a": database.StatusProcessed,
			"/b": database.StatusSkippedNonContainer,
		},
	)

	assert.Equal(t, Counts{Patients: 2, Studies: 1, Series: 1, Instances: 2, Paths: 2}, x.Counts())
	assert.True(t, x.IsKnownPath("/a"))
	assert.False(t, x.IsKnownPath("/c"))

	x.MarkPathStatus("/c", database.StatusSkippedFailed)
	x.MarkPathStatus("/c", database.StatusProcessed)
	s, ok := x.PathStatus("/c")
	require.True(t, ok)
	assert.Equal(t, database.StatusSkippedFailed, s)

	snapshot := x.KnownPaths()
	x.MarkPathStatus("/d", database.StatusProcessed)
	assert.True(t, snapshot.Contains("/b"))
	assert.True(t, snapshot.Contains("/c"))
	assert.False(t, snapshot.Contains("/d"))
}

func TestCommitIsIdempotent(t *testing.T) {
	x := New()
	ids := header.Identifiers{PatientID: "P", StudyInstanceUID: "S", SeriesInstanceUID: "SE", SOPInstanceUID: "I"}
	x.Commit(ids)
	x.Commit(ids)
	assert.Equal(t, Counts{Patients: 1, Studies: 1, Series: 1, Instances: 1}, x.Counts())
}
