package collect

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gridlab/internal/model"
)

// WriteModelCSV writes the model-level table with a header row of
// {step, columns...}. Missing values render as empty fields.
func WriteModelCSV(w io.Writer, columns []string, rows []model.ModelRow) error {
	writer := csv.NewWriter(w)
	header := append([]string{"step"}, columns...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write model table header: %w", err)
	}
	for i, row := range rows {
		record := make([]string, 0, len(header))
		record = append(record, strconv.Itoa(row.Step))
		for _, name := range columns {
			value, ok := row.Values[name]
			if !ok {
				record = append(record, "")
				continue
			}
			record = append(record, strconv.FormatFloat(value, 'g', -1, 64))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write model table row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteAgentCSV writes the agent-level table with a header row of
// {step, agent_id, columns...}.
func WriteAgentCSV(w io.Writer, columns []string, rows []model.AgentRow) error {
	writer := csv.NewWriter(w)
	header := append([]string{"step", "agent_id"}, columns...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write agent table header: %w", err)
	}
	for i, row := range rows {
		record := make([]string, 0, len(header))
		record = append(record, strconv.Itoa(row.Step), strconv.Itoa(row.AgentID))
		for _, name := range columns {
			value, ok := row.Values[name]
			if !ok {
				record = append(record, "")
				continue
			}
			record = append(record, strconv.FormatFloat(value, 'g', -1, 64))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write agent table row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// TableFile is the JSON materialization of a collected run.
type TableFile struct {
	Columns      []string         `json:"columns"`
	AgentColumns []string         `json:"agent_columns,omitempty"`
	Rows         []model.ModelRow `json:"rows"`
	AgentRows    []model.AgentRow `json:"agent_rows,omitempty"`
}

func WriteTableFile(path string, table TableFile) error {
	if path == "" {
		return fmt.Errorf("table file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func ReadTableFile(path string) (TableFile, error) {
	if path == "" {
		return TableFile{}, fmt.Errorf("table file path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return TableFile{}, err
	}
	var table TableFile
	if err := json.Unmarshal(data, &table); err != nil {
		return TableFile{}, err
	}
	return table, nil
}
