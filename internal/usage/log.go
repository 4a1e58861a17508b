package usage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Logger appends usage and feedback records. Every record goes to the
// database and is mirrored to a CSV file for quick offline inspection.
type Logger struct {
	db           *gorm.DB
	csvPath      string
	feedbackPath string
	mu           sync.Mutex
}

func NewLogger(db *gorm.DB, csvPath, feedbackPath string) *Logger {
	return &Logger{db: db, csvPath: csvPath, feedbackPath: feedbackPath}
}

// Append stores one completed generation.
func (l *Logger) Append(ctx context.Context, rec *Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if err := l.db.WithContext(ctx).Create(rec).Error; err != nil {
		return err
	}
	return l.appendCSV(l.csvPath, []string{
		rec.CreatedAt.Format("2006-01-02 15:04:05"),
		rec.SourceURL,
		rec.Context,
		rec.Generated,
	})
}

// AppendFeedback stores one user rating.
func (l *Logger) AppendFeedback(ctx context.Context, fb *Feedback) error {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}
	if err := l.db.WithContext(ctx).Create(fb).Error; err != nil {
		return err
	}
	return l.appendCSV(l.feedbackPath, []string{
		fb.CreatedAt.Format("2006-01-02 15:04:05"),
		fb.SourceURL,
		strconv.Itoa(fb.Rating),
		fb.Comment,
	})
}

func (l *Logger) appendCSV(path string, fields []string) error {
	if path == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(fields); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
