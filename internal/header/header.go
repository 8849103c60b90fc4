package header

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotRecognized means the file opened but is not a DICOM Part-10
	// container (no "DICM" magic after the preamble).
	ErrNotRecognized = errors.New("not a recognized DICOM file")

	// ErrMalformed means the container magic was present but the header
	// could not be parsed.
	ErrMalformed = errors.New("malformed DICOM header")

	// ErrMissingRequiredField means the header parsed but lacks one of the
	// identifiers needed to place the file in the catalog.
	ErrMissingRequiredField = errors.New("required identifier missing from header")
)

// Keywords of the four identifiers every catalogued file must carry.
const (
	PatientID         = "PatientID"
	StudyInstanceUID  = "StudyInstanceUID"
	SeriesInstanceUID = "SeriesInstanceUID"
	SOPInstanceUID    = "SOPInstanceUID"
)

// Header is the metadata read from the leading section of a file, keyed by
// DICOM keyword. Values are flattened to strings; multi-valued elements are
// joined with a backslash.
type Header struct {
	Path     string
	Elements map[string]string
}

// Get returns the value for keyword and whether it was present and non-empty.
func (h *Header) Get(keyword string) (string, bool) {
	if h == nil || h.Elements == nil {
		return "", false
	}
	v, ok := h.Elements[keyword]
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Identifiers holds the unique keys of the four entity levels of a file.
type Identifiers struct {
	PatientID         string
	StudyInstanceUID  string
	SeriesInstanceUID string
	SOPInstanceUID    string
}

// Identifiers extracts the entity identifiers, failing with
// ErrMissingRequiredField naming every identifier that is absent.
func (h *Header) Identifiers() (Identifiers, error) {
	var ids Identifiers
	var missing []string

	pick := func(keyword string, dst *string) {
		if v, ok := h.Get(keyword); ok {
			*dst = v
			return
		}
		missing = append(missing, keyword)
	}

	pick(PatientID, &ids.PatientID)
	pick(StudyInstanceUID, &ids.StudyInstanceUID)
	pick(SeriesInstanceUID, &ids.SeriesInstanceUID)
	pick(SOPInstanceUID, &ids.SOPInstanceUID)

	if len(missing) > 0 {
		return Identifiers{}, fmt.Errorf("%w: %s", ErrMissingRequiredField, strings.Join(missing, ", "))
	}
	return ids, nil
}

// Parser reads the header of the file at path. Implementations must be safe
// for concurrent use; the file opener calls Parse from many goroutines.
type Parser interface {
	Parse(path string) (*Header, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(path string) (*Header, error)

// Parse calls f(path).
func (f ParserFunc) Parse(path string) (*Header, error) {
	return f(path)
}
