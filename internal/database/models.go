package database

import "time"

// PathStatus is the terminal outcome recorded for a visited path.
type PathStatus string

const (
	StatusProcessed             PathStatus = "processed"
	StatusSkippedNonContainer   PathStatus = "skipped_non_container"
	StatusSkippedFailed         PathStatus = "skipped_failed"
	StatusSkippedAlreadyVisited PathStatus = "skipped_already_visited"
)

// Attributes holds descriptive header values keyed by DICOM keyword.
type Attributes map[string]string

type Patient struct {
	PatientID  string
	Attributes Attributes
}

type Study struct {
	StudyInstanceUID string
	PatientID        string
	Attributes       Attributes
}

type Series struct {
	SeriesInstanceUID string
	StudyInstanceUID  string
	Attributes        Attributes
}

type Instance struct {
	SOPInstanceUID    string
	SeriesInstanceUID string
	Path              string
	Attributes        Attributes
}

// Rows are the catalog rows derived from one file. Nil members are already
// catalogued and are not written.
type Rows struct {
	Patient  *Patient
	Study    *Study
	Series   *Series
	Instance *Instance
}

// Empty reports whether no row needs writing.
func (r Rows) Empty() bool {
	return r.Patient == nil && r.Study == nil && r.Series == nil && r.Instance == nil
}

// DuplicateInstance records a file whose SOPInstanceUID was already
// catalogued under another path.
type DuplicateInstance struct {
	Path           string
	SOPInstanceUID string
}

// FailedFile records a file that could not be catalogued.
type FailedFile struct {
	Path   string
	Reason string
}

// Identifiers are the known entity keys of every level.
type Identifiers struct {
	Patients  []string
	Studies   []string
	Series    []string
	Instances []string
}

// RunStatus is the lifecycle state of an index run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one invocation of the indexer against this catalog.
type Run struct {
	ID         string    `json:"id"`
	Root       string    `json:"root"`
	Strategy   string    `json:"strategy"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	Counts     RunCounts `json:"counts"`
}

// RunCounts are the per-outcome totals of a run.
type RunCounts struct {
	Processed      int `json:"processed"`
	Duplicates     int `json:"duplicates"`
	NonContainer   int `json:"nonContainer"`
	Failed         int `json:"failed"`
	AlreadyVisited int `json:"alreadyVisited"`
}
