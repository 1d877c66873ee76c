package ingest

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/gapscout/gapscout/internal/models"
)

// transcriptFile mirrors the exported JSON transcript shape. Some exports
// use "conversation" instead of "turns".
type transcriptFile struct {
	ID           string            `json:"id"`
	Turns        []Turn            `json:"turns"`
	Conversation []Turn            `json:"conversation"`
	Metadata     map[string]string `json:"metadata"`
}

// ParseTranscriptDirectory walks dir recursively and parses every .json,
// .jsonl, and .xlsx file. Files that fail to parse become warnings; the rest
// of the batch still loads.
func ParseTranscriptDirectory(dir string) ([]Transcript, []models.Warning, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, nil, fmt.Errorf("transcript directory not found: %s", dir)
	}

	var transcripts []Transcript
	var warnings []models.Warning
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".json" && ext != ".jsonl" && ext != ".xlsx" {
			return nil
		}
		t, parseErr := ParseTranscriptFile(path)
		if parseErr != nil {
			warnings = append(warnings, models.Warning{
				Stage:  "ingest",
				ItemID: filepath.Base(path),
				Reason: parseErr.Error(),
			})
			return nil
		}
		transcripts = append(transcripts, *t)
		return nil
	})
	if err != nil {
		return nil, warnings, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	return transcripts, warnings, nil
}

// ParseTranscriptFile parses one transcript file by extension.
func ParseTranscriptFile(path string) (*Transcript, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return parseTranscriptJSON(path)
	case ".jsonl":
		return parseTranscriptJSONL(path)
	case ".xlsx":
		return parseTranscriptXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported transcript file type: %s", filepath.Ext(path))
	}
}

func parseTranscriptJSON(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file transcriptFile
	if err := json.Unmarshal(data, &file); err != nil {
		// Some exports are a bare array of turns.
		var turns []Turn
		if arrErr := json.Unmarshal(data, &turns); arrErr != nil {
			return nil, fmt.Errorf("invalid transcript JSON in %s: %w", path, err)
		}
		file = transcriptFile{Turns: turns}
	}

	turns := file.Turns
	if len(turns) == 0 {
		turns = file.Conversation
	}
	turns = dropEmptyTurns(turns)
	if len(turns) == 0 {
		return nil, fmt.Errorf("no valid turns in %s", path)
	}

	id := file.ID
	if id == "" {
		id = fileStem(path)
	}
	return &Transcript{ID: id, Turns: turns, Metadata: file.Metadata}, nil
}

// parseTranscriptJSONL reads one turn per line.
func parseTranscriptJSONL(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var turns []Turn
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var turn Turn
		if err := json.Unmarshal([]byte(line), &turn); err != nil {
			return nil, fmt.Errorf("invalid turn on line %d of %s: %w", i+1, path, err)
		}
		turns = append(turns, turn)
	}
	turns = dropEmptyTurns(turns)
	if len(turns) == 0 {
		return nil, fmt.Errorf("no valid turns in %s", path)
	}
	return &Transcript{ID: fileStem(path), Turns: turns}, nil
}

// parseTranscriptXLSX reads the first sheet with columns speaker, text and
// optional timestamp. A header row is detected and skipped.
func parseTranscriptXLSX(path string) (*Transcript, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in %s", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	var turns []Turn
	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		if i == 0 && strings.EqualFold(strings.TrimSpace(row[0]), "speaker") {
			continue
		}
		turn := Turn{Speaker: strings.TrimSpace(row[0]), Text: strings.TrimSpace(row[1])}
		if len(row) > 2 {
			turn.Timestamp = strings.TrimSpace(row[2])
		}
		turns = append(turns, turn)
	}
	turns = dropEmptyTurns(turns)
	if len(turns) == 0 {
		return nil, fmt.Errorf("no valid turns in %s", path)
	}
	return &Transcript{ID: fileStem(path), Turns: turns}, nil
}

func dropEmptyTurns(turns []Turn) []Turn {
	out := turns[:0]
	for _, t := range turns {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		if t.Speaker == "" {
			t.Speaker = "unknown"
		}
		out = append(out, t)
	}
	return out
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
