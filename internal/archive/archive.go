// Package archive keeps an optional local history of captured events in
// Postgres. Archival is strictly best-effort: a write failure is logged
// and forgotten, never surfaced to the capture path.
package archive

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Crit-Fumble/fumblebot-sub002/internal/models"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/config"
	"github.com/Crit-Fumble/fumblebot-sub002/pkg/logger"
)

// RollRecord is one archived dice roll.
type RollRecord struct {
	ID            uint      `gorm:"primaryKey"`
	EventID       string    `gorm:"uniqueIndex;size:128"`
	Platform      string    `gorm:"index;size:32"`
	GameSystem    string    `gorm:"size:32"`
	RollerID      string    `gorm:"size:128"`
	RollerName    string    `gorm:"size:256"`
	Expression    string    `gorm:"size:512"`
	Total         int
	Critical      bool
	Fumble        bool
	CypherEffect  string `gorm:"size:32"`
	Label         string `gorm:"size:512"`
	CharacterName string `gorm:"size:256"`
	RolledAt      time.Time
	CreatedAt     time.Time
}

// MessageRecord is one archived chat message.
type MessageRecord struct {
	ID         uint   `gorm:"primaryKey"`
	EventID    string `gorm:"uniqueIndex;size:128"`
	Platform   string `gorm:"index;size:32"`
	SenderID   string `gorm:"size:128"`
	SenderName string `gorm:"size:256"`
	Kind       string `gorm:"size:32"`
	Content    string
	SentAt     time.Time
	CreatedAt  time.Time
}

// Archive writes captured events to the archive database.
type Archive struct {
	db  *gorm.DB
	log *logger.Logger
}

// New connects to the archive database and runs migrations.
func New(cfg *config.Config, log *logger.Logger) (*Archive, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
		cfg.Database.Password, cfg.Database.Name, cfg.Database.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&RollRecord{}, &MessageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Archive{db: db, log: log}, nil
}

// ArchiveEvent records one captured event. Roll and message events are
// stored; lifecycle events are not.
func (a *Archive) ArchiveEvent(event models.VTTEvent) {
	switch event.Kind {
	case models.EventRoll:
		if event.Roll != nil {
			a.saveRoll(*event.Roll)
		}
	case models.EventMessage:
		if event.Message != nil {
			a.saveMessage(*event.Message)
		}
	}
}

func (a *Archive) saveRoll(roll models.Roll) {
	record := RollRecord{
		EventID:       roll.ID,
		Platform:      string(roll.Platform),
		GameSystem:    string(roll.GameSystem),
		RollerID:      roll.Roller.ID,
		RollerName:    roll.Roller.Name,
		Expression:    roll.Expression,
		Total:         roll.Total,
		Critical:      roll.Critical,
		Fumble:        roll.Fumble,
		CypherEffect:  string(roll.CypherEffect),
		Label:         roll.Label,
		CharacterName: roll.CharacterName,
		RolledAt:      roll.Timestamp,
	}
	if err := a.db.Create(&record).Error; err != nil {
		a.log.Warn("archiving roll failed", "event_id", roll.ID, "error", err)
	}
}

func (a *Archive) saveMessage(message models.Message) {
	record := MessageRecord{
		EventID:    message.ID,
		Platform:   string(message.Platform),
		SenderID:   message.Sender.ID,
		SenderName: message.Sender.Name,
		Kind:       string(message.Type),
		Content:    message.Content,
		SentAt:     message.Timestamp,
	}
	if err := a.db.Create(&record).Error; err != nil {
		a.log.Warn("archiving message failed", "event_id", message.ID, "error", err)
	}
}

// RecentRolls returns the newest archived rolls, most recent first.
func (a *Archive) RecentRolls(limit int) ([]RollRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var records []RollRecord
	err := a.db.Order("rolled_at desc").Limit(limit).Find(&records).Error
	return records, err
}

// Ping checks database connectivity, for health checks.
func (a *Archive) Ping() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
