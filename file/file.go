// Package file provides helpers for loading datasets and persisting fit
// results and debug logs to disk.
package file

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/CK6170/MaxFactor-go/matrix"
	models "github.com/CK6170/MaxFactor-go/models"
	ui "github.com/CK6170/MaxFactor-go/ui"
)

// LoadDataset reads and validates a DATASET from a JSON file.
func LoadDataset(path string) (*models.DATASET, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ds models.DATASET
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &ds, nil
}

// LoadJob reads a fitmode JOB file. Both DATASET and FIT must be present.
func LoadJob(path string) (*models.JOB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var job models.JOB
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if job.FIT == nil {
		return nil, fmt.Errorf("%s: missing FIT section", path)
	}
	if err := job.DATASET.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &job, nil
}

// ResultPath returns the sibling path used for a job's saved result:
// "run.json" becomes "run_fit.json".
func ResultPath(jobPath string) string {
	return strings.TrimSuffix(jobPath, ".json") + "_fit.json"
}

// SaveToJSON writes a fit result to disk, indented.
func SaveToJSON(path string, result *models.FITRESULT) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		ui.Warningf("Warning: failed to write JSON file: %v\n", err)
		return err
	}
	ui.Greenf("%s Saved\n", path)
	return nil
}

// AppendToFile appends content + newline to file, creating it if it does not
// exist.
func AppendToFile(file, content string) {
	f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		ui.Warningf("Warning: failed to open file for append: %v\n", err)
		return
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content + "\n"); err != nil {
		ui.Warningf("Warning: failed to write to file: %v\n", err)
	}
}

// RecordData prints vec and returns debug with its CSV form appended.
// Fitted parameters ("F") are highlighted.
func RecordData(debug string, vec *matrix.Vector, title, format string) string {
	text, csv := vec.ToStrings(title, format)
	if title == "F" {
		fmt.Fprint(ui.Out, "\033[38;5;208m")
		fmt.Fprintln(ui.Out, text)
		fmt.Fprint(ui.Out, "\033[0m")
	} else {
		fmt.Fprintln(ui.Out, text)
	}
	return debug + csv + "\n"
}

// RecordMatrix is RecordData for matrices.
func RecordMatrix(debug string, m *matrix.Matrix, title, format string) string {
	text, csv := m.ToStrings(title, format)
	fmt.Fprintln(ui.Out, text)
	return debug + csv + "\n"
}
