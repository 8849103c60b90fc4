package header

// Descriptive attributes copied into catalog rows, by entity level. Each
// keyword is a DICOM data dictionary keyword and becomes a TEXT column of
// the matching table.
var (
	PatientFields = []string{
		"PatientName",
		"PatientBirthDate",
		"PatientBirthTime",
		"PatientSex",
		"IssuerOfPatientID",
	}

	StudyFields = []string{
		"StudyDate",
		"StudyTime",
		"StudyDescription",
		"StudyID",
		"AccessionNumber",
		"ReferringPhysicianName",
		"InstitutionName",
		"InstitutionalDepartmentName",
		"ModalitiesInStudy",
		"NumberOfStudyRelatedSeries",
		"NumberOfStudyRelatedInstances",
		"RequestedProcedureID",
		"ProcedureCodeSequence",
	}

	SeriesFields = []string{
		"Modality",
		"SeriesNumber",
		"SeriesDescription",
		"SeriesDate",
		"SeriesTime",
		"BodyPartExamined",
		"Laterality",
		"ProtocolName",
		"PerformingPhysicianName",
		"OperatorsName",
		"FrameOfReferenceUID",
		"NumberOfSeriesRelatedInstances",
		"AnatomicRegionSequence",
	}

	InstanceFields = []string{
		"SOPClassUID",
		"InstanceNumber",
		"ContentDate",
		"ContentTime",
		"TransferSyntaxUID",
		"Manufacturer",
		"ManufacturerModelName",
		"StationName",
		"DeviceSerialNumber",
		"SoftwareVersions",
		"Rows",
		"Columns",
		"BitsAllocated",
		"NumberOfFrames",
		"ConceptNameCodeSequence",
	}
)

// Keywords returns the identifiers plus every descriptive attribute, i.e.
// all elements a parser needs to extract.
func Keywords() []string {
	out := []string{PatientID, StudyInstanceUID, SeriesInstanceUID, SOPInstanceUID}
	for _, group := range [][]string{PatientFields, StudyFields, SeriesFields, InstanceFields} {
		out = append(out, group...)
	}
	return out
}
