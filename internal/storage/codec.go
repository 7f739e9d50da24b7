package storage

import (
	"encoding/json"
	"errors"

	"gridlab/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeBatch(b model.BatchRecord) ([]byte, error) {
	return json.Marshal(b)
}

func DecodeBatch(data []byte) (model.BatchRecord, error) {
	var batch model.BatchRecord
	if err := json.Unmarshal(data, &batch); err != nil {
		return model.BatchRecord{}, err
	}
	if err := checkVersion(batch.VersionedRecord); err != nil {
		return model.BatchRecord{}, err
	}
	return batch, nil
}

func EncodeModelRows(rows []model.ModelRow) ([]byte, error) {
	return json.Marshal(rows)
}

func DecodeModelRows(data []byte) ([]model.ModelRow, error) {
	var rows []model.ModelRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func EncodeAgentRows(rows []model.AgentRow) ([]byte, error) {
	return json.Marshal(rows)
}

func DecodeAgentRows(data []byte) ([]model.AgentRow, error) {
	var rows []model.AgentRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func EncodeLedgers(ledgers map[int]map[int]int) ([]byte, error) {
	return json.Marshal(ledgers)
}

func DecodeLedgers(data []byte) (map[int]map[int]int, error) {
	var ledgers map[int]map[int]int
	if err := json.Unmarshal(data, &ledgers); err != nil {
		return nil, err
	}
	return ledgers, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
