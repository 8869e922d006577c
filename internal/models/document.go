package models

import "time"

type DocumentStatus string

const (
	StatusPending   DocumentStatus = "pending"
	StatusProcessed DocumentStatus = "processed"
	StatusFailed    DocumentStatus = "failed"
)

// DocumentEntry is one file registered with the backend knowledge base.
type DocumentEntry struct {
	Name       string
	ChunkCount int
	Status     DocumentStatus
	IngestedAt time.Time
	Pages      int // 0 when the page count could not be read locally
}

// File is a local document ready to be uploaded.
type File struct {
	Name  string
	Bytes []byte
	Pages int
}

// UploadOutcome reports what happened to one file of a batch.
type UploadOutcome struct {
	Name   string
	Chunks int
	Err    error
}

func (o UploadOutcome) OK() bool {
	return o.Err == nil
}

// BatchResult is the structured result of submitting several documents.
type BatchResult struct {
	Outcomes    []UploadOutcome
	TotalChunks int
}

// Succeeded counts the files that were ingested.
func (b BatchResult) Succeeded() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}
