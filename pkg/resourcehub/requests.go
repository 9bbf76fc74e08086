package resourcehub

import (
	"io"
	"path"
	"strings"
)

// UploadResourceRequest contains parameters for uploading a new resource
type UploadResourceRequest struct {
	Title        string
	Subject      string
	Semester     int
	Type         string
	UploaderName string
	FileName     string
	Reader       io.Reader
}

// Validate rejects requests missing required fields.
func (r *UploadResourceRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if strings.TrimSpace(r.Subject) == "" {
		return &ValidationError{Field: "subject", Reason: "is required"}
	}
	if r.Semester < 1 {
		return &ValidationError{Field: "semester", Reason: "must be a positive integer"}
	}
	if CleanFileName(r.FileName) == "" {
		return &ValidationError{Field: "file", Reason: "file name is required"}
	}
	if r.Reader == nil {
		return &ValidationError{Field: "file", Reason: "content is required"}
	}
	return nil
}

// SearchResourcesRequest holds optional filters. Zero values mean "not set".
type SearchResourcesRequest struct {
	Subject  string
	Semester *int
	Keyword  string
}

// IsEmpty reports whether no filter is set.
func (r SearchResourcesRequest) IsEmpty() bool {
	return r.Subject == "" && r.Semester == nil && r.Keyword == ""
}

// CleanFileName drops any directory components a client put in front of the
// file name. Both slash styles are treated as separators.
func CleanFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
