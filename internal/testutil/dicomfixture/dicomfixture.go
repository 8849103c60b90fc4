// Package dicomfixture writes small DICOM Part-10 files for tests.
package dicomfixture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

const explicitVRLittleEndian = "1.2.840.10008.1.2.1"

// Instance describes one file. Empty strings omit the element, which is how
// tests produce headers with missing identifiers.
type Instance struct {
	PatientID         string
	PatientName       string
	StudyInstanceUID  string
	StudyDescription  string
	SeriesInstanceUID string
	SeriesDescription string
	Modality          string
	SOPInstanceUID    string
	SOPClassUID       string
	InstanceNumber    int
}

// Write encodes inst as an explicit VR little endian Part-10 file at path,
// creating parent directories.
func Write(path string, inst Instance) error {
	data, err := Encode(inst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Encode returns the file bytes for inst.
func Encode(inst Instance) ([]byte, error) {
	classUID := inst.SOPClassUID
	if classUID == "" {
		classUID = "1.2.840.10008.5.1.4.1.1.2"
	}
	mediaInstanceUID := inst.SOPInstanceUID
	if mediaInstanceUID == "" {
		mediaInstanceUID = "1.2.3.4"
	}

	type entry struct {
		t     tag.Tag
		value any
	}
	entries := []entry{
		{tag.FileMetaInformationVersion, []byte{0x00, 0x01}},
		{tag.MediaStorageSOPClassUID, []string{classUID}},
		{tag.MediaStorageSOPInstanceUID, []string{mediaInstanceUID}},
		{tag.TransferSyntaxUID, []string{explicitVRLittleEndian}},
		{tag.SOPClassUID, []string{classUID}},
	}

	optional := []struct {
		t     tag.Tag
		value string
	}{
		{tag.PatientID, inst.PatientID},
		{tag.PatientName, inst.PatientName},
		{tag.StudyInstanceUID, inst.StudyInstanceUID},
		{tag.StudyDescription, inst.StudyDescription},
		{tag.SeriesInstanceUID, inst.SeriesInstanceUID},
		{tag.SeriesDescription, inst.SeriesDescription},
		{tag.Modality, inst.Modality},
		{tag.SOPInstanceUID, inst.SOPInstanceUID},
	}
	for _, o := range optional {
		if o.value != "" {
			entries = append(entries, entry{o.t, []string{o.value}})
		}
	}
	if inst.InstanceNumber > 0 {
		entries = append(entries, entry{tag.InstanceNumber, []string{strconv.Itoa(inst.InstanceNumber)}})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].t, entries[j].t
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})

	ds := dicom.Dataset{}
	for _, e := range entries {
		elem, err := dicom.NewElement(e.t, e.value)
		if err != nil {
			return nil, fmt.Errorf("element %v: %w", e.t, err)
		}
		ds.Elements = append(ds.Elements, elem)
	}

	var buf bytes.Buffer
	if err := dicom.Write(&buf, ds); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteNonContainer writes a file without the Part-10 preamble and magic.
func WriteNonContainer(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("this is not a DICOM file\n"), 0o644)
}

// WriteMalformed writes a file with a valid preamble and magic whose meta
// group is truncated.
func WriteMalformed(path string) error {
	var buf bytes.Buffer
	buf.Write(make([]byte, 128))
	buf.WriteString("DICM")

	// (0002,0000) UL, length 4, claiming 256 bytes of meta elements.
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0x0002))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0x0000))
	buf.WriteString("UL")
	_ = binary.Write(&buf, binary.LittleEndian, uint16(4))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(256))
	buf.Write([]byte{0x02, 0x00, 0x01})

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Archive lays out files as root/<patient>/<study>/<series>/<n>.dcm and
// returns the written paths in layout order.
type Archive struct {
	Root  string
	Paths []string
}

// Add writes inst under root following the patient/study/series layout.
func (a *Archive) Add(inst Instance, name string) (string, error) {
	path := filepath.Join(a.Root, inst.PatientID, inst.StudyInstanceUID, inst.SeriesInstanceUID, name)
	if err := Write(path, inst); err != nil {
		return "", err
	}
	a.Paths = append(a.Paths, path)
	return path, nil
}

// Standard writes the reference archive: 2 patients, 3 studies, 7 series,
// 2 files per series.
func Standard(root string) (*Archive, error) {
	layout := []struct {
		patient string
		studies map[string]int
	}{
		{"PAT001", map[string]int{"1.2.826.0.1.1001": 3, "1.2.826.0.1.1002": 2}},
		{"PAT002", map[string]int{"1.2.826.0.1.2001": 2}},
	}

	a := &Archive{Root: root}
	for _, p := range layout {
		studies := make([]string, 0, len(p.studies))
		for s := range p.studies {
			studies = append(studies, s)
		}
		sort.Strings(studies)

		for _, study := range studies {
			for se := 1; se <= p.studies[study]; se++ {
				series := fmt.Sprintf("%s.%d", study, se)
				for n := 1; n <= 2; n++ {
					inst := Instance{
						PatientID:         p.patient,
						PatientName:       "Test^" + p.patient,
						StudyInstanceUID:  study,
						StudyDescription:  "Study " + study,
						SeriesInstanceUID: series,
						SeriesDescription: fmt.Sprintf("Series %d", se),
						Modality:          "CT",
						SOPInstanceUID:    fmt.Sprintf("%s.%d", series, n),
						InstanceNumber:    n,
					}
					if _, err := a.Add(inst, fmt.Sprintf("IM%04d.dcm", n)); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return a, nil
}
