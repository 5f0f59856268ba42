package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"aq-panel/internal/config"
)

// Document is one row of the documents table.
type Document struct {
	Path      string    `gorm:"primaryKey;type:varchar(512)"`
	Parent    string    `gorm:"type:varchar(512);index;not null"`
	Key       string    `gorm:"column:doc_key;type:varchar(255);not null"`
	NumKey    *int64    `gorm:"index"` // doc_key as an integer, nil when it does not parse
	Value     string    `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Document) TableName() string {
	return "documents"
}

// GormStore keeps documents in a single SQL table.
type GormStore struct {
	db *gorm.DB
}

// OpenGorm connects to SQLite or MySQL and migrates the documents table.
func OpenGorm(cfg config.StoreConfig, debug bool) (*GormStore, error) {
	var dialector gorm.Dialector

	switch cfg.Type {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLite.Path)
	case "mysql":
		mc := mysqldriver.NewConfig()
		mc.User = cfg.MySQL.Username
		mc.Passwd = cfg.MySQL.Password
		mc.Net = "tcp"
		mc.Addr = fmt.Sprintf("%s:%d", cfg.MySQL.Host, cfg.MySQL.Port)
		mc.DBName = cfg.MySQL.Database
		mc.ParseTime = true
		mc.Params = map[string]string{"charset": "utf8mb4"}
		dialector = mysql.Open(mc.FormatDSN())
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Type == "sqlite" {
		// SQLite allows one writer; serialize through a single connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return NewGormStore(db)
}

// NewGormStore wraps an open connection.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, path string, dst any) error {
	p, err := cleanPath(path)
	if err != nil {
		return err
	}

	var doc Document
	if err := s.db.WithContext(ctx).First(&doc, "path = ?", p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal([]byte(doc.Value), dst)
}

func (s *GormStore) Set(ctx context.Context, path string, value any) error {
	parent, key, err := split(path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	doc := Document{
		Path:   strings.Trim(path, "/"),
		Parent: parent,
		Key:    key,
		NumKey: numericKey(key),
		Value:  string(data),
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&doc).Error
}

func (s *GormStore) Update(ctx context.Context, path string, fields map[string]any) error {
	p, err := cleanPath(path)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc Document
		if err := tx.First(&doc, "path = ?", p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		merged, err := merge([]byte(doc.Value), fields)
		if err != nil {
			return err
		}
		return tx.Model(&Document{}).Where("path = ?", p).Updates(map[string]any{
			"value":      string(merged),
			"updated_at": time.Now(),
		}).Error
	})
}

func (s *GormStore) Remove(ctx context.Context, path string) (bool, error) {
	p, err := cleanPath(path)
	if err != nil {
		return false, err
	}

	res := s.db.WithContext(ctx).Where("path = ?", p).Delete(&Document{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) Children(ctx context.Context, path string, limitToLast int) ([]Child, error) {
	p, err := cleanPath(path)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Where("parent = ?", p)
	if limitToLast > 0 {
		// newest tail first: non-numeric keys sort after numeric ones
		q = q.Order("num_key IS NULL DESC").
			Order("num_key DESC").
			Order("doc_key DESC").
			Limit(limitToLast)
	}

	var docs []Document
	if err := q.Find(&docs).Error; err != nil {
		return nil, err
	}

	children := make([]Child, 0, len(docs))
	for _, d := range docs {
		children = append(children, Child{Key: d.Key, Value: json.RawMessage(d.Value)})
	}
	sortChildren(children)
	return limitLast(children, limitToLast), nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
