// Package artifacts persists stage results so downstream tooling can
// inspect a run after the orchestrator exits.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/ember-labs/ember-go/internal/domain"
	"github.com/ember-labs/ember-go/internal/storage/objectstore"
)

// ResultFileName is the artifact written for every completed stage.
const ResultFileName = "result.json"

// Sink writes stage result artifacts into an object store bucket, keyed by
// run id and stage name.
type Sink struct {
	store  objectstore.Store
	bucket string
}

func NewSink(store objectstore.Store, bucket string) (*Sink, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &Sink{store: store, bucket: bucket}, nil
}

func (s *Sink) WriteStageResult(ctx context.Context, result domain.StageResult) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("artifact sink not initialized")
	}
	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode stage result: %w", err)
	}
	key := path.Join(result.RunID, result.Stage, ResultFileName)
	if err := s.store.Put(ctx, s.bucket, key, bytes.NewReader(raw), int64(len(raw)), "application/json"); err != nil {
		return fmt.Errorf("store stage result: %w", err)
	}
	return nil
}

// ReadStageResult loads a previously written stage result artifact.
func (s *Sink) ReadStageResult(ctx context.Context, runID, stage string) (domain.StageResult, error) {
	if s == nil || s.store == nil {
		return domain.StageResult{}, fmt.Errorf("artifact sink not initialized")
	}
	key := path.Join(runID, stage, ResultFileName)
	body, _, err := s.store.Get(ctx, s.bucket, key)
	if err != nil {
		return domain.StageResult{}, fmt.Errorf("load stage result: %w", err)
	}
	defer body.Close()

	var result domain.StageResult
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		return domain.StageResult{}, fmt.Errorf("decode stage result: %w", err)
	}
	return result, nil
}
