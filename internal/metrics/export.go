package metrics

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// StartCSVExport periodically appends a CSV row per metric kind to
// tmp/metrics/<component>_<kind>.csv while running, per spec.md §4.7. It
// blocks until ctx is cancelled.
func (c *Collector) StartCSVExport(ctx context.Context, dir string, interval time.Duration) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := c.Snapshot()
			if err := appendLatencyRow(dir, c.component, snap); err != nil {
				return err
			}
			if err := appendCounterRow(dir, c.component, snap); err != nil {
				return err
			}
		}
	}
}

func appendLatencyRow(dir, component string, snap Snapshot) error {
	path := filepath.Join(dir, fmt.Sprintf("%s_assembly_latency.csv", component))
	return appendCSVRow(path,
		[]string{"timestamp", "count", "min_ns", "max_ns", "mean_ns", "median_ns"},
		[]string{
			snap.Timestamp.Format(time.RFC3339),
			strconv.Itoa(snap.Latency.Count),
			strconv.FormatInt(int64(snap.Latency.Min), 10),
			strconv.FormatInt(int64(snap.Latency.Max), 10),
			strconv.FormatInt(int64(snap.Latency.Mean), 10),
			strconv.FormatInt(int64(snap.Latency.Median), 10),
		})
}

func appendCounterRow(dir, component string, snap Snapshot) error {
	path := filepath.Join(dir, fmt.Sprintf("%s_counters.csv", component))

	names := make([]string, 0, len(snap.Counters)+len(snap.Gauges))
	for name := range snap.Counters {
		names = append(names, name)
	}
	for name := range snap.Gauges {
		names = append(names, name)
	}
	sort.Strings(names)

	header := append([]string{"timestamp"}, names...)
	row := make([]string, 0, len(header))
	row = append(row, snap.Timestamp.Format(time.RFC3339))
	for _, name := range names {
		if v, ok := snap.Counters[name]; ok {
			row = append(row, strconv.FormatInt(v, 10))
			continue
		}
		row = append(row, strconv.FormatFloat(snap.Gauges[name], 'f', -1, 64))
	}

	return appendCSVRow(path, header, row)
}

func appendCSVRow(path string, header, row []string) error {
	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	//nolint:gosec // path is composed from application-controlled components only
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open metrics CSV: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// WriteShutdownSnapshot writes one timestamped JSON snapshot holding every
// metric kind to <dir>/<component>_snapshot_<ts>.json and returns its
// path. The format is intentionally not a stable wire contract.
func (c *Collector) WriteShutdownSnapshot(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create metrics directory: %w", err)
	}

	snap := c.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metrics snapshot: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_snapshot_%s.json", c.component, time.Now().UTC().Format("20060102T150405Z")))
	//nolint:gosec // path is composed from application-controlled components only
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("failed to write metrics snapshot: %w", err)
	}
	return path, nil
}
