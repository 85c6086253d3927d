package output

import (
	"encoding/json"
	"io"

	"github.com/buemura/reconcraft/pkg/types"
)

// JSONFormatter renders the outcome as indented JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(w io.Writer, outcome *types.ScanOutcome) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(outcome)
}
