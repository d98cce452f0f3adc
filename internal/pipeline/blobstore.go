package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sampoursoltan11/paddock-sub000/internal/compliance"
	"github.com/sampoursoltan11/paddock-sub000/pkg/storage"
)

const stateContentType = "application/json"

type blobStore struct {
	storage storage.System
	logger  *slog.Logger
}

// NewBlobStore creates a Store persisting JSON records in blob storage.
// State and report records live under workflows/<document-id>/.
func NewBlobStore(store storage.System, logger *slog.Logger) Store {
	return &blobStore{
		storage: store,
		logger:  logger.With("system", "workflow-store"),
	}
}

// StateKey returns the blob key holding a document's workflow state.
func StateKey(documentID uuid.UUID) string {
	return fmt.Sprintf("workflows/%s/state.json", documentID)
}

// ReportKey returns the blob key holding a document's compliance report.
func ReportKey(documentID uuid.UUID) string {
	return fmt.Sprintf("workflows/%s/report.json", documentID)
}

func (b *blobStore) State(ctx context.Context, documentID uuid.UUID) (*WorkflowState, bool, error) {
	var state WorkflowState
	found, err := b.load(ctx, StateKey(documentID), &state)
	if err != nil || !found {
		return nil, found, err
	}
	return &state, true, nil
}

func (b *blobStore) PutState(ctx context.Context, documentID uuid.UUID, state *WorkflowState) error {
	return b.save(ctx, StateKey(documentID), state)
}

func (b *blobStore) Report(ctx context.Context, documentID uuid.UUID) (*compliance.Report, bool, error) {
	var report compliance.Report
	found, err := b.load(ctx, ReportKey(documentID), &report)
	if err != nil || !found {
		return nil, found, err
	}
	return &report, true, nil
}

func (b *blobStore) PutReport(ctx context.Context, documentID uuid.UUID, report *compliance.Report) error {
	return b.save(ctx, ReportKey(documentID), report)
}

func (b *blobStore) load(ctx context.Context, key string, target any) (bool, error) {
	result, err := b.storage.Download(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: download %s: %w", ErrStoreUnavailable, key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %w", ErrStoreUnavailable, key, err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}

	return true, nil
}

func (b *blobStore) save(ctx context.Context, key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	if err := b.storage.Upload(ctx, key, bytes.NewReader(data), stateContentType); err != nil {
		return fmt.Errorf("%w: upload %s: %w", ErrStoreUnavailable, key, err)
	}

	return nil
}
