package types

import (
	"context"

	"github.com/xhad/askpdf/internal/models"
)

// Fragments is a single-pass, in-order sequence of streamed text.
type Fragments interface {
	// Next blocks until the next fragment arrives. ok is false once the
	// sequence has ended, after which Err reports why (nil on a clean end).
	Next() (fragment string, ok bool)
	Err() error
	Close() error
}

// Backend is the remote document question-answering service.
type Backend interface {
	UploadDocument(ctx context.Context, name string, data []byte) (int, error)
	Query(ctx context.Context, question string, topK int) (string, []models.Source, error)
	QueryStream(ctx context.Context, question string, topK int) (Fragments, error)
	GetStatus(ctx context.Context) (documentCount int, ok bool)
	HealthCheck(ctx context.Context) bool
}

// Logger is the structured logger shared by every package.
type Logger interface {
	Debug(module, message string, details map[string]interface{})
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
	Sync() error
}
