package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/evapdev/evap/modules/evaluation/importer"
)

func writeJSONLine(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return withCode(exitDB, fmt.Errorf("json encode: %w", err))
	}
	return nil
}

type reportLine struct {
	Level    string `json:"level"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

// writeReport prints every diagnostic as one JSON line, grouped by category
// in the report's fixed order.
func writeReport(rep *importer.Report) error {
	for _, m := range rep.Messages() {
		line := reportLine{
			Level:    m.Level.String(),
			Category: m.Category.ID(),
			Message:  m.Text,
		}
		if err := writeJSONLine(line); err != nil {
			return err
		}
	}
	return nil
}

func reportExitError(rep *importer.Report) error {
	if rep.HasErrors() {
		return withCode(exitValidation, fmt.Errorf("import failed: the input data has errors"))
	}
	return nil
}
