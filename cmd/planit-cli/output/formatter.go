// Package output provides formatters for CLI output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// KVPair represents a key-value pair for output.
type KVPair struct {
	Key   string
	Value string
}

// Formatter defines the interface for output formatting.
type Formatter interface {
	// Print outputs the data in the formatter's format.
	Print(data any) error
	// PrintTable outputs tabular data with headers.
	PrintTable(headers []string, rows [][]string)
	// PrintKeyValue outputs key-value pairs.
	PrintKeyValue(pairs []KVPair)
}

// GetFormatter returns the appropriate formatter based on the format flag.
func GetFormatter(jsonOutput bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{Writer: os.Stdout}
	}
	return &TableFormatter{Writer: os.Stdout}
}

// TableFormatter outputs human-readable tables.
type TableFormatter struct {
	Writer io.Writer
}

func (f *TableFormatter) Print(data any) error {
	fmt.Fprintf(f.Writer, "%+v\n", data)
	return nil
}

func (f *TableFormatter) PrintTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(f.Writer, "No data available.")
		return
	}

	w := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
}

func (f *TableFormatter) PrintKeyValue(pairs []KVPair) {
	maxKeyLen := 0
	for _, pair := range pairs {
		if len(pair.Key) > maxKeyLen {
			maxKeyLen = len(pair.Key)
		}
	}
	for _, pair := range pairs {
		fmt.Fprintf(f.Writer, "  %-*s  %s\n", maxKeyLen+1, pair.Key+":", pair.Value)
	}
}

// JSONFormatter outputs pretty-printed JSON.
type JSONFormatter struct {
	Writer io.Writer
}

func (f *JSONFormatter) Print(data any) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func (f *JSONFormatter) PrintTable(headers []string, rows [][]string) {
	result := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]string)
		for i, header := range headers {
			if i < len(row) {
				obj[strings.ToLower(strings.ReplaceAll(header, " ", "_"))] = row[i]
			}
		}
		result = append(result, obj)
	}
	f.Print(result)
}

func (f *JSONFormatter) PrintKeyValue(pairs []KVPair) {
	obj := make(map[string]string)
	for _, pair := range pairs {
		obj[strings.ToLower(strings.ReplaceAll(pair.Key, " ", "_"))] = pair.Value
	}
	f.Print(obj)
}
