// Package cmd implements the dicom-index command line.
//
//	dicom-index index ROOT [DATABASE]   catalogue the DICOM files below ROOT
//	dicom-index stats [DATABASE]        row counts of a catalog
//	dicom-index runs [DATABASE]         recorded index runs
//	dicom-index version                 build information
//
// Settings resolve from flags, then DICOMINDEX_* environment variables, then
// the file given with --config, then defaults.
package cmd
