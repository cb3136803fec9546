package sync

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/relay/internal/model"
	"github.com/alfredjeanlab/relay/internal/store"
)

const formatVersion = "1"

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version   string    `json:"version"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// trailer is the last record; its count lets ImportJSONL detect truncation.
type trailer struct {
	Type       string `json:"type"`
	EventCount int    `json:"event_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string       `json:"type"`
	Data *model.Event `json:"data"`
}

// ExportJSONL streams every stored event, oldest first, as JSONL to w.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:   formatVersion,
		Type:      "header",
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	count := 0
	err := s.ScanEvents(ctx, func(e *model.Event) error {
		if err := enc.Encode(record{Type: "event", Data: e}); err != nil {
			return fmt.Errorf("encode event %s: %w", e.ID, err)
		}
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan events: %w", err)
	}

	if err := enc.Encode(trailer{Type: "trailer", EventCount: count}); err != nil {
		return fmt.Errorf("encode trailer: %w", err)
	}
	return nil
}

// ImportStats summarizes an ImportJSONL run.
type ImportStats struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
}

// ImportJSONL reads an export produced by ExportJSONL and inserts every event.
// Events already present are counted as duplicates. Signatures are not
// re-verified: shared-file events are stored with their content cleared.
func ImportJSONL(ctx context.Context, s store.Store, r io.Reader) (ImportStats, error) {
	var stats ImportStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		sawHeader  bool
		sawTrailer bool
		events     int
		line       int
	)
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var probe struct {
			Type       string          `json:"type"`
			Version    string          `json:"version"`
			Data       json.RawMessage `json:"data"`
			EventCount int             `json:"event_count"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return stats, fmt.Errorf("line %d: decode record: %w", line, err)
		}

		switch probe.Type {
		case "header":
			if probe.Version != formatVersion {
				return stats, fmt.Errorf("line %d: unsupported export version %q", line, probe.Version)
			}
			sawHeader = true
		case "event":
			if !sawHeader {
				return stats, fmt.Errorf("line %d: event before header", line)
			}
			var e model.Event
			if err := json.Unmarshal(probe.Data, &e); err != nil {
				return stats, fmt.Errorf("line %d: decode event: %w", line, err)
			}
			if e.Tags == nil {
				e.Tags = model.Tags{}
			}
			res, err := s.InsertEvent(ctx, &e)
			if err != nil {
				return stats, fmt.Errorf("line %d: %w", line, err)
			}
			if res == store.Duplicate {
				stats.Duplicates++
			} else {
				stats.Inserted++
			}
			events++
		case "trailer":
			if probe.EventCount != events {
				return stats, fmt.Errorf("trailer expects %d events, read %d", probe.EventCount, events)
			}
			sawTrailer = true
		default:
			return stats, fmt.Errorf("line %d: unknown record type %q", line, probe.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read export: %w", err)
	}
	if !sawTrailer {
		return stats, fmt.Errorf("export is truncated: no trailer after %d events", events)
	}
	return stats, nil
}
