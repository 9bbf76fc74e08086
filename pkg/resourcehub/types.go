package resourcehub

import (
	"io"
	"time"
)

// DefaultUploaderName is recorded when an upload carries no uploader name.
const DefaultUploaderName = "Anonymous"

// Resource types seen in practice. The type field is free text; these are
// not enforced.
const (
	ResourceTypeNotes  = "notes"
	ResourceTypePapers = "papers"
	ResourceTypeOther  = "other"
)

// Resource is the metadata record describing one uploaded file plus its
// usage counter. Every field except DownloadCount is fixed at creation.
type Resource struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Subject       string    `json:"subject"`
	Semester      int       `json:"semester"`
	Type          string    `json:"type"`
	FileName      string    `json:"fileName"`
	StoragePath   string    `json:"-"`
	FileSize      int64     `json:"fileSize"`
	UploaderName  string    `json:"uploaderName"`
	UploadedAt    time.Time `json:"uploadDate"`
	DownloadCount int       `json:"downloadCount"`
}

// RoundUpTime rounds t up to a multiple of d, so a time stored at a coarser
// precision never precedes the instant it was taken.
func RoundUpTime(t time.Time, d time.Duration) time.Time {
	truncated := t.Truncate(d)
	if truncated.Before(t) {
		return truncated.Add(d)
	}
	return truncated
}

// ObjectMeta contains metadata about a blob in storage
type ObjectMeta struct {
	Key       string
	Size      int64
	UpdatedAt time.Time
	ETag      string
}

// Download is the result of resolving a download. The caller owns Reader and
// must close it.
type Download struct {
	Resource *Resource
	Reader   io.ReadCloser
	FileName string
	Size     int64
	ModTime  time.Time
}
