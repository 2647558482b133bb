// Package store provides a SQLite-backed cache for parsed plot logs.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/theirongolddev/plotlog/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Cache provides SQLite-backed plot caching.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// FileInfo holds the tracked mtime and size for a file.
type FileInfo struct {
	MtimeNs   int64
	SizeBytes int64
}

// GetTrackedFiles returns a map of file_path -> FileInfo for all tracked files.
func (c *Cache) GetTrackedFiles() (map[string]FileInfo, error) {
	rows, err := c.db.Query("SELECT file_path, mtime_ns, size_bytes FROM file_tracker")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]FileInfo)
	for rows.Next() {
		var path string
		var fi FileInfo
		if err := rows.Scan(&path, &fi.MtimeNs, &fi.SizeBytes); err != nil {
			return nil, err
		}
		result[path] = fi
	}
	return result, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s.String)
	return t
}

// SavePlot stores a parsed plot, its resumable snapshot and its file
// tracking info.
func (c *Cache) SavePlot(p model.PlotStats, snapshot []byte, mtimeNs, sizeBytes int64) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)

	_, err = tx.Exec(`INSERT OR REPLACE INTO plots
		(file_path, plot_id, plot_size, buckets, threads, tmp_dirs, state, phase, total_phases,
		 start_time, end_time, total_secs, copy_secs, cpu_percent, final_size_gib,
		 created, modified, byte_offset, snapshot, file_mtime_ns, file_size, parsed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.FilePath, p.PlotID, p.K, p.Buckets, p.Threads, strings.Join(p.TmpDirs, "\n"),
		string(p.State), p.Phase, p.TotalPhases,
		formatTime(p.StartTime), formatTime(p.EndTime), p.TotalSeconds, p.CopySeconds, p.CPUPercent, p.FinalSizeGiB,
		formatTime(p.Created), formatTime(p.Modified), p.Offset, snapshot, mtimeNs, sizeBytes, now,
	)
	if err != nil {
		return err
	}

	// Replace phase rows for this plot
	_, err = tx.Exec("DELETE FROM plot_phases WHERE file_path = ?", p.FilePath)
	if err != nil {
		return err
	}

	for i, ph := range p.Phases {
		_, err = tx.Exec(`INSERT INTO plot_phases
			(file_path, phase, start_time, end_time, seconds, cpu_percent)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.FilePath, i+1, formatTime(ph.StartTime), formatTime(ph.EndTime), ph.Seconds, ph.CPUPercent,
		)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO file_tracker (file_path, mtime_ns, size_bytes)
		VALUES (?, ?, ?)`, p.FilePath, mtimeNs, sizeBytes)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// LoadAllPlots reads all cached plots from the database, ordered by path.
func (c *Cache) LoadAllPlots() ([]model.PlotStats, error) {
	rows, err := c.db.Query(`SELECT
		file_path, plot_id, plot_size, buckets, threads, tmp_dirs, state, phase, total_phases,
		start_time, end_time, total_secs, copy_secs, cpu_percent, final_size_gib,
		created, modified, byte_offset
		FROM plots ORDER BY file_path`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var plots []model.PlotStats
	for rows.Next() {
		var p model.PlotStats
		var plotID, tmpDirs, state sql.NullString
		var startStr, endStr, createdStr, modifiedStr sql.NullString

		err := rows.Scan(
			&p.FilePath, &plotID, &p.K, &p.Buckets, &p.Threads, &tmpDirs, &state, &p.Phase, &p.TotalPhases,
			&startStr, &endStr, &p.TotalSeconds, &p.CopySeconds, &p.CPUPercent, &p.FinalSizeGiB,
			&createdStr, &modifiedStr, &p.Offset,
		)
		if err != nil {
			return nil, err
		}

		p.PlotID = plotID.String
		p.State = model.PlotState(state.String)
		if tmpDirs.Valid && tmpDirs.String != "" {
			p.TmpDirs = strings.Split(tmpDirs.String, "\n")
		}
		p.StartTime = parseTime(startStr)
		p.EndTime = parseTime(endStr)
		p.Created = parseTime(createdStr)
		p.Modified = parseTime(modifiedStr)
		plots = append(plots, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Batch-load phase data
	phaseRows, err := c.db.Query(`SELECT
		file_path, phase, start_time, end_time, seconds, cpu_percent
		FROM plot_phases ORDER BY file_path, phase`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = phaseRows.Close() }()

	plotIdx := make(map[string]int)
	for i, p := range plots {
		plotIdx[p.FilePath] = i
	}

	for phaseRows.Next() {
		var path string
		var n int
		var startStr, endStr sql.NullString
		var ph model.PhaseRecord
		if err := phaseRows.Scan(&path, &n, &startStr, &endStr, &ph.Seconds, &ph.CPUPercent); err != nil {
			return nil, err
		}
		ph.StartTime = parseTime(startStr)
		ph.EndTime = parseTime(endStr)
		if idx, ok := plotIdx[path]; ok {
			plots[idx].Phases = append(plots[idx].Phases, ph)
		}
	}

	return plots, phaseRows.Err()
}

// LoadSnapshot returns the stored resumable snapshot for a plot log, or nil
// if none is cached.
func (c *Cache) LoadSnapshot(filePath string) ([]byte, error) {
	var snap []byte
	err := c.db.QueryRow("SELECT snapshot FROM plots WHERE file_path = ?", filePath).Scan(&snap)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return snap, err
}

// DeletePlot removes a plot, its phases and its file tracking entry.
func (c *Cache) DeletePlot(filePath string) error {
	if _, err := c.db.Exec("DELETE FROM plots WHERE file_path = ?", filePath); err != nil {
		return err
	}
	return c.DeleteFileTracker(filePath)
}

// DeleteFileTracker removes a file tracking entry.
func (c *Cache) DeleteFileTracker(filePath string) error {
	_, err := c.db.Exec("DELETE FROM file_tracker WHERE file_path = ?", filePath)
	return err
}

// PlotCount returns the number of cached plots.
func (c *Cache) PlotCount() (int, error) {
	var count int
	err := c.db.QueryRow("SELECT COUNT(*) FROM plots").Scan(&count)
	return count, err
}

// SaveTailOffset records how far a followed log has been consumed.
func (c *Cache) SaveTailOffset(filePath string, offset int64) error {
	_, err := c.db.Exec(`INSERT OR REPLACE INTO tail_offsets (file_path, byte_offset, updated_at)
		VALUES (?, ?, ?)`, filePath, offset, time.Now().UTC().Format(time.RFC3339))
	return err
}

// TailOffset returns the recorded offset for a followed log.
func (c *Cache) TailOffset(filePath string) (offset int64, ok bool, err error) {
	err = c.db.QueryRow("SELECT byte_offset FROM tail_offsets WHERE file_path = ?", filePath).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return offset, true, nil
}
