package cmd

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Siddhant-K-code/swarmcluster/pkg/types"
)

// PointInput is one observation as accepted by the file loader, the HTTP
// API and the MCP tool. Values is accepted as an alias of Features.
type PointInput struct {
	ID       string    `json:"id,omitempty"`
	Features []float64 `json:"features,omitempty"`
	Values   []float64 `json:"values,omitempty"`
	Label    string    `json:"label,omitempty"`
}

// toPoints converts inputs into a validated dataset. Missing IDs are
// replaced by the row index.
func toPoints(inputs []PointInput) (types.Points, error) {
	points := make(types.Points, 0, len(inputs))
	for i, in := range inputs {
		features := in.Features
		if len(features) == 0 {
			features = in.Values
		}
		id := in.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		d := types.NewDatum(id, features)
		d.Label = in.Label
		points = append(points, d)
	}
	if err := points.Validate(); err != nil {
		return nil, err
	}
	return points, nil
}

// loadPointsFromFile reads a dataset from a .jsonl or .csv file.
func loadPointsFromFile(filePath string) (types.Points, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv":
		return loadPointsCSV(file)
	case ".jsonl", ".ndjson", ".json":
		return loadPointsJSONL(file)
	default:
		return nil, fmt.Errorf("unsupported file type %q (use .jsonl or .csv)", filepath.Ext(filePath))
	}
}

func loadPointsJSONL(r io.Reader) (types.Points, error) {
	var inputs []PointInput
	scanner := bufio.NewScanner(r)

	// Increase buffer for large lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var p PointInput
		if err := json.Unmarshal(line, &p); err != nil {
			// Skip malformed lines but warn
			slog.Warn("skipping malformed line", "line", lineNum, "error", err)
			continue
		}
		if len(p.Features) == 0 && len(p.Values) == 0 {
			slog.Warn("skipping line without features", "line", lineNum)
			continue
		}
		if p.ID == "" {
			p.ID = fmt.Sprintf("line_%d", lineNum)
		}
		inputs = append(inputs, p)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return toPoints(inputs)
}

// loadPointsCSV reads numeric rows. A first row that does not parse as
// numbers is treated as a header; columns named "id" and "label" are taken
// as identifiers and labels instead of features.
func loadPointsCSV(r io.Reader) (types.Points, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return types.Points{}, nil
	}

	idCol, labelCol := -1, -1
	start := 0
	if !numericRow(records[0]) {
		start = 1
		for i, name := range records[0] {
			switch strings.ToLower(strings.TrimSpace(name)) {
			case "id":
				idCol = i
			case "label", "class":
				labelCol = i
			}
		}
	}

	inputs := make([]PointInput, 0, len(records)-start)
	for row := start; row < len(records); row++ {
		rec := records[row]
		p := PointInput{ID: fmt.Sprintf("row_%d", row+1)}
		for i, field := range rec {
			switch i {
			case idCol:
				p.ID = strings.TrimSpace(field)
				continue
			case labelCol:
				p.Label = strings.TrimSpace(field)
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", row+1, i+1, err)
			}
			p.Features = append(p.Features, v)
		}
		inputs = append(inputs, p)
	}

	return toPoints(inputs)
}

func numericRow(rec []string) bool {
	for _, field := range rec {
		if _, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err != nil {
			return false
		}
	}
	return len(rec) > 0
}
