package upload

import (
	"fmt"
	"time"
)

// Status is the outcome of uploading one file.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// ReasonBlobExists is the only reason a file is skipped.
const ReasonBlobExists = "blob_exists"

// Result is the outcome of uploading a single file. Which fields are
// populated depends on Status.
type Result struct {
	Status Status `json:"status"`

	Source      string `json:"source,omitempty"`
	Destination string `json:"destination,omitempty"`
	Bucket      string `json:"bucket,omitempty"`

	// Populated for StatusSuccess.
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	ResourceURI string    `json:"gs_uri,omitempty"`
	PublicURL   string    `json:"public_url,omitempty"`
	Timestamp   time.Time `json:"uploaded_at,omitzero"`

	// Reason is populated for StatusSkipped.
	Reason string `json:"reason,omitempty"`

	// Error and Kind are populated for StatusError.
	Error string    `json:"error,omitempty"`
	Kind  ErrorKind `json:"error_kind,omitempty"`

	// Err is the underlying error for skipped and error results.
	Err error `json:"-"`
}

func skippedResult(source, bucket, destination string) *Result {
	return &Result{
		Status:      StatusSkipped,
		Source:      source,
		Destination: destination,
		Bucket:      bucket,
		Reason:      ReasonBlobExists,
		Err:         fmt.Errorf("%w: %s", ErrConflict, destination),
	}
}

func errorResult(source, bucket, destination string, err error) *Result {
	return &Result{
		Status:      StatusError,
		Source:      source,
		Destination: destination,
		Bucket:      bucket,
		Error:       err.Error(),
		Kind:        Classify(err),
		Err:         err,
	}
}

// Batch holds one result per discovered file, in discovery order.
type Batch []*Result

// Summary counts the outcomes in a batch.
type Summary struct {
	Successful int `json:"successful"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Total is the number of results counted.
func (s Summary) Total() int {
	return s.Successful + s.Skipped + s.Failed
}

// Summarize scans the batch and counts each outcome.
func Summarize(batch Batch) Summary {
	var s Summary
	for _, r := range batch {
		switch r.Status {
		case StatusSuccess:
			s.Successful++
		case StatusSkipped:
			s.Skipped++
		case StatusError:
			s.Failed++
		}
	}
	return s
}

// Failed returns the error results in the batch.
func (b Batch) Failed() Batch {
	var failed Batch
	for _, r := range b {
		if r.Status == StatusError {
			failed = append(failed, r)
		}
	}
	return failed
}
