package recorder

import (
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/factory"
	"Go2NetSDN/internal/model"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

func init() {
	factory.RegisterWriter("csv", func(def config.WriterDef, interval time.Duration) (model.Writer, error) {
		return NewCSVWriter(def.CSV.Path, interval)
	})
}

var csvHeader = []string{
	"timestamp", "dpid", "priority", "match", "identity", "duration_sec",
	"packet_rate", "byte_rate", "mean_packet_size", "packet_count", "byte_count",
	"verdict",
}

// CSVWriter appends sample records to a CSV file, one row per sample. The
// column layout is the one offline training scripts read.
type CSVWriter struct {
	file     *os.File
	w        *csv.Writer
	interval time.Duration
}

// NewCSVWriter opens path for appending and writes the header if the file is new.
func NewCSVWriter(path string, interval time.Duration) (*CSVWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("csv writer requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cw := &CSVWriter{file: file, w: csv.NewWriter(file), interval: interval}
	if info.Size() == 0 {
		if err := cw.w.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write csv header: %w", err)
		}
		cw.w.Flush()
	}
	return cw, nil
}

// GetInterval returns the configured flush interval for this writer.
func (w *CSVWriter) GetInterval() time.Duration {
	return w.interval
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// Write appends one row per record and flushes the file.
func (w *CSVWriter) Write(records []model.SampleRecord) error {
	for _, r := range records {
		row := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.DPID.String(),
			strconv.Itoa(int(r.Priority)),
			r.MatchKey,
			r.Identity,
			formatFloat(r.Duration.Seconds()),
			formatFloat(r.Features.PacketRate),
			formatFloat(r.Features.ByteRate),
			formatFloat(r.Features.MeanPacketSize),
			strconv.FormatUint(r.Features.PacketCount, 10),
			strconv.FormatUint(r.Features.ByteCount, 10),
			r.Verdict.String(),
		}
		if err := w.w.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.w.Flush()
	return w.w.Error()
}

// Close flushes and closes the file.
func (w *CSVWriter) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
