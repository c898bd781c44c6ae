package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tomz197/sshtargets/internal/leaderboard"
)

// highScore is the table row for one retained record.
type highScore struct {
	Position int       `gorm:"primaryKey;autoIncrement:false"`
	RecordID int64     `gorm:"not null;uniqueIndex"`
	Name     string    `gorm:"not null"`
	Score    int       `gorm:"not null;check:score >= 0"`
	Date     time.Time `gorm:"not null"`
}

func (highScore) TableName() string { return "high_scores" }

// Gorm keeps the list in a SQL database through gorm. OpenPostgres is the
// configured entry point; any gorm dialector works with NewGorm.
type Gorm struct {
	db *gorm.DB
}

// OpenPostgres connects to the Postgres database at dsn and migrates it.
func OpenPostgres(ctx context.Context, dsn string) (*Gorm, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres store: empty POSTGRES_DSN")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewGorm(ctx, db)
}

// NewGorm wraps an open gorm connection and migrates the schema.
func NewGorm(ctx context.Context, db *gorm.DB) (*Gorm, error) {
	if err := db.WithContext(ctx).AutoMigrate(&highScore{}); err != nil {
		return nil, fmt.Errorf("failed to migrate high_scores: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *Gorm) Load(ctx context.Context) ([]leaderboard.Record, error) {
	var rows []highScore
	if err := g.db.WithContext(ctx).Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query high scores: %w", err)
	}
	records := make([]leaderboard.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, leaderboard.Record{
			ID:    row.RecordID,
			Name:  row.Name,
			Score: row.Score,
			Date:  row.Date.UTC(),
		})
	}
	return leaderboard.Normalize(records), nil
}

func (g *Gorm) Save(ctx context.Context, records []leaderboard.Record) error {
	rows := make([]highScore, 0, len(records))
	for i, r := range records {
		rows = append(rows, highScore{
			Position: i,
			RecordID: r.ID,
			Name:     r.Name,
			Score:    r.Score,
			Date:     r.Date.UTC(),
		})
	}
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&highScore{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace high scores: %w", err)
	}
	return nil
}
