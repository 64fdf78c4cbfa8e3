// Package artifact writes report CSV files and resolves their public URLs
package artifact

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"storewatch/internal/core/uptime"
	perr "storewatch/internal/platform/errors"
)

// Header is the fixed artifact column order
var Header = []string{
	"store_id",
	"uptime_last_hour",
	"uptime_last_day",
	"uptime_last_week",
	"downtime_last_hour",
	"downtime_last_day",
	"downtime_last_week",
}

// Writer persists report rows as CSV under a base directory
type Writer struct {
	dir string
}

// NewWriter builds a Writer rooted at dir; the reports subdirectory is
// created on first write
func NewWriter(dir string) *Writer { return &Writer{dir: dir} }

// Write emits <report_id>.csv with rows sorted by store_id and returns the
// internal file reference. Hour columns are whole minutes; day and week
// columns are hours rounded to two decimals. The write is atomic:
// a temp file is renamed into place so readers never see a partial artifact
func (w *Writer) Write(reportID string, rows []uptime.Row) (string, error) {
	reportsDir := filepath.Join(w.dir, "reports")
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "create reports dir")
	}

	sorted := make([]uptime.Row, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StoreID < sorted[j].StoreID })

	tmp, err := os.CreateTemp(reportsDir, reportID+".*.tmp")
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "create temp artifact")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	cw := csv.NewWriter(tmp)
	if err := cw.Write(Header); err != nil {
		tmp.Close()
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "write artifact header")
	}
	for _, r := range sorted {
		rec := []string{
			r.StoreID,
			strconv.Itoa(r.UptimeHourMin),
			hours2(r.UptimeDayMin),
			hours2(r.UptimeWeekMin),
			strconv.Itoa(r.DowntimeHourMin),
			hours2(r.DowntimeDayMin),
			hours2(r.DowntimeWeekMin),
		}
		if err := cw.Write(rec); err != nil {
			tmp.Close()
			return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "write artifact row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		tmp.Close()
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "flush artifact")
	}
	if err := tmp.Close(); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "close artifact")
	}

	final := filepath.Join(reportsDir, reportID+".csv")
	if err := os.Rename(tmpName, final); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "publish artifact")
	}

	abs, err := filepath.Abs(final)
	if err != nil {
		abs = final
	}
	return "file://" + abs, nil
}

// Path returns the on-disk location for a published artifact name
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, "reports", name)
}

// hours2 renders minutes as hours with two decimals
func hours2(min int) string {
	return fmt.Sprintf("%.2f", float64(min)/60.0)
}

// PublicURL translates an internal file reference into the public download
// path. References kept from JSON-era runs are rewritten to the CSV filename
// under the same identity; non-file references pass through unchanged
func PublicURL(ref string) string {
	if !strings.HasPrefix(ref, "file://") {
		return ref
	}
	name := filepath.Base(strings.TrimPrefix(ref, "file://"))
	if ext := filepath.Ext(name); ext != "" && ext != ".csv" {
		name = strings.TrimSuffix(name, ext) + ".csv"
	}
	return "/files/reports/" + name
}
