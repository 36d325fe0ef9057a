package accounting

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ReportHeader is the first line of the quarterly CSV report
var ReportHeader = []string{"Date", "ID", "File", "Pages", "Copies", "Type", "Color"}

// Store keeps authorized users and the print log
type Store struct {
	db       *gorm.DB
	logger   *zap.Logger
	now      func() time.Time
	adminIDs map[int64]bool
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithAdmins grants admin rights to ids regardless of the users table
func WithAdmins(ids ...int64) Option {
	return func(s *Store) {
		for _, id := range ids {
			s.adminIDs[id] = true
		}
	}
}

// Open opens the database at dsn and migrates the schema. PostgreSQL URLs
// and keyword DSNs select PostgreSQL, anything else is a sqlite path.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := gorm.Open(dialectorFor(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open accounting database: %w", err)
	}
	return New(db, opts...)
}

func dialectorFor(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// New wraps an existing connection and migrates the schema
func New(db *gorm.DB, opts ...Option) (*Store, error) {
	if err := db.AutoMigrate(&UserModel{}, &PrintLogModel{}); err != nil {
		return nil, fmt.Errorf("migrate accounting schema: %w", err)
	}

	s := &Store{
		db:       db,
		logger:   zap.NewNop(),
		now:      time.Now,
		adminIDs: make(map[int64]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertUser creates or updates a user
func (s *Store) UpsertUser(ctx context.Context, id int64, role Role, name string) error {
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q", role)
	}
	user := UserModel{ID: id, Role: role, Name: name}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "name", "updated_at"}),
	}).Create(&user).Error
}

// IsAuthorized reports whether id may print. Lookup failures deny access.
func (s *Store) IsAuthorized(ctx context.Context, id int64) bool {
	if s.adminIDs[id] {
		return true
	}
	var user UserModel
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("authorization lookup failed", zap.Int64("chat_id", id), zap.Error(err))
		}
		return false
	}
	return user.Role.IsValid()
}

// IsAdmin reports whether id has the admin role
func (s *Store) IsAdmin(ctx context.Context, id int64) bool {
	if s.adminIDs[id] {
		return true
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ? AND role = ?", id, RoleAdmin).
		Count(&count).Error
	if err != nil {
		s.logger.Error("admin lookup failed", zap.Int64("chat_id", id), zap.Error(err))
		return false
	}
	return count > 0
}

// Admins returns every admin id. Lookup failures return the configured
// admins only.
func (s *Store) Admins(ctx context.Context) []int64 {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("role = ?", RoleAdmin).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		s.logger.Error("failed to list admins", zap.Error(err))
		ids = nil
	}

	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for id := range s.adminIDs {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// LogPrint records a delivered job. A failed write is logged and
// reported but never undoes the delivery.
func (s *Store) LogPrint(ctx context.Context, entry PrintLog) error {
	row := PrintLogModel{
		Date:      s.now().UTC(),
		ChatID:    entry.ChatID,
		FileName:  entry.FileName,
		Pages:     entry.Pages,
		Copies:    entry.Copies,
		PrintType: entry.PrintType,
		Color:     entry.Color,
		JobID:     entry.JobID,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logger.Error("failed to log print job", zap.Int64("chat_id", entry.ChatID), zap.Error(err))
		return fmt.Errorf("log print job: %w", err)
	}
	return nil
}

// MonthlyPages sums the pages chatID printed in the calendar month of now
func (s *Store) MonthlyPages(ctx context.Context, chatID int64) int {
	now := s.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var total int64
	err := s.db.WithContext(ctx).Model(&PrintLogModel{}).
		Where("chat_id = ? AND date >= ? AND date < ?", chatID, start, end).
		Select("COALESCE(SUM(pages), 0)").
		Scan(&total).Error
	if err != nil {
		s.logger.Error("failed to read user stats", zap.Int64("chat_id", chatID), zap.Error(err))
		return 0
	}
	return int(total)
}

// QuarterlyReport renders the print log of the last three months as CSV
func (s *Store) QuarterlyReport(ctx context.Context) (string, error) {
	since := s.now().UTC().AddDate(0, -3, 0)

	var rows []PrintLogModel
	if err := s.db.WithContext(ctx).
		Where("date >= ?", since).
		Order("date, id").
		Find(&rows).Error; err != nil {
		return "", fmt.Errorf("read print log: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(ReportHeader)
	for _, r := range rows {
		_ = w.Write([]string{
			r.Date.Format(time.DateOnly),
			strconv.FormatInt(r.ChatID, 10),
			r.FileName,
			strconv.Itoa(r.Pages),
			strconv.Itoa(r.Copies),
			r.PrintType,
			strconv.FormatBool(r.Color),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return buf.String(), nil
}
