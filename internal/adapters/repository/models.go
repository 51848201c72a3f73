package repository

import (
	"time"

	"github.com/okian/vnclub/internal/domain/model"
)

type titleModel struct {
	ID          string    `gorm:"primaryKey"`
	StartPeriod string    `gorm:"not null;index"`
	EndPeriod   string    `gorm:"not null"`
	Points      int       `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (titleModel) TableName() string { return "titles" }

func (m titleModel) toDomain() model.TitleEntry {
	return model.TitleEntry{
		ID:          m.ID,
		StartPeriod: model.Period(m.StartPeriod),
		EndPeriod:   model.Period(m.EndPeriod),
		Points:      m.Points,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

func titleFromDomain(e model.TitleEntry) titleModel {
	return titleModel{
		ID:          e.ID,
		StartPeriod: e.StartPeriod.String(),
		EndPeriod:   e.EndPeriod.String(),
		Points:      e.Points,
		CreatedAt:   e.CreatedAt,
	}
}

type metadataModel struct {
	ID            string `gorm:"primaryKey"`
	TitleEN       string `gorm:"column:title_en;not null;default:''"`
	TitleJA       string `gorm:"column:title_ja;not null;default:''"`
	ThumbnailURL  string `gorm:"not null;default:''"`
	ThumbnailNSFW bool   `gorm:"column:thumbnail_nsfw;not null;default:false"`
	LengthMinutes *int
	LengthClass   *int
	Description   string    `gorm:"not null;default:''"`
	FetchedAt     time.Time `gorm:"not null"`
}

func (metadataModel) TableName() string { return "metadata_cache" }

func (m metadataModel) toDomain() model.MetadataEntry {
	return model.MetadataEntry{
		ID:            m.ID,
		TitleEN:       m.TitleEN,
		TitleJA:       m.TitleJA,
		ThumbnailURL:  m.ThumbnailURL,
		ThumbnailNSFW: m.ThumbnailNSFW,
		LengthMinutes: m.LengthMinutes,
		LengthClass:   m.LengthClass,
		Description:   m.Description,
		FetchedAt:     m.FetchedAt.UTC(),
	}
}

func metadataFromDomain(e model.MetadataEntry) metadataModel {
	return metadataModel{
		ID:            e.ID,
		TitleEN:       e.TitleEN,
		TitleJA:       e.TitleJA,
		ThumbnailURL:  e.ThumbnailURL,
		ThumbnailNSFW: e.ThumbnailNSFW,
		LengthMinutes: e.LengthMinutes,
		LengthClass:   e.LengthClass,
		Description:   e.Description,
		FetchedAt:     e.FetchedAt,
	}
}

type completionModel struct {
	ID          int64   `gorm:"primaryKey;autoIncrement"`
	UserID      string  `gorm:"not null;uniqueIndex:ux_completions_user_title"`
	TitleID     *string `gorm:"uniqueIndex:ux_completions_user_title"`
	Rating      *int
	Reason      string    `gorm:"not null"`
	Period      string    `gorm:"not null;index"`
	Points      int       `gorm:"not null"`
	Comment     string    `gorm:"not null;default:''"`
	CommunityID *string   `gorm:"index"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (completionModel) TableName() string { return "completions" }

func (m completionModel) toDomain() model.CompletionEvent {
	return model.CompletionEvent{
		ID:          m.ID,
		UserID:      m.UserID,
		TitleID:     m.TitleID,
		Rating:      m.Rating,
		Reason:      m.Reason,
		Period:      model.Period(m.Period),
		Points:      m.Points,
		Comment:     m.Comment,
		CommunityID: m.CommunityID,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

func completionFromDomain(e model.CompletionEvent) completionModel {
	return completionModel{
		UserID:      e.UserID,
		TitleID:     e.TitleID,
		Rating:      e.Rating,
		Reason:      e.Reason,
		Period:      e.Period.String(),
		Points:      e.Points,
		Comment:     e.Comment,
		CommunityID: e.CommunityID,
		CreatedAt:   e.CreatedAt,
	}
}
