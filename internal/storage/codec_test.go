package storage

import (
	"errors"
	"testing"

	"gridlab/internal/model"
)

func TestRunCodecRoundTrip(t *testing.T) {
	run := model.RunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              "run-1",
		Kind:            "sir",
		Params:          map[string]any{"population": float64(50)},
		Seed:            7,
		Steps:           25,
	}
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != run.ID || got.Kind != run.Kind || got.Steps != run.Steps {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDecodeRunRejectsVersionMismatch(t *testing.T) {
	run := model.RunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion + 1, CodecVersion: CurrentCodecVersion},
		ID:              "run-1",
	}
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestDecodeBatchRejectsVersionMismatch(t *testing.T) {
	batch := model.BatchRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion + 1},
		ID:              "batch-1",
	}
	data, err := EncodeBatch(batch)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeBatch(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestLedgerCodecRoundTrip(t *testing.T) {
	input := map[int]map[int]int{
		3: {5: 2, 7: 1},
		5: {3: 2},
		7: {3: 1},
	}
	data, err := EncodeLedgers(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	output, err := DecodeLedgers(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if output[3][5] != 2 || output[7][3] != 1 {
		t.Fatalf("round trip mismatch: %+v", output)
	}
}
