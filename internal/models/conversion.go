package models

import "time"

// Conversion is one persisted transcription run
type Conversion struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	RequestID     string    `gorm:"index" json:"request_id"`
	UserID        string    `gorm:"index" json:"user_id,omitempty"`
	Source        string    `gorm:"not null" json:"source"` // "logits", "tokens", "labels"
	Timesteps     int       `json:"timesteps"`
	Tokens        int       `gorm:"not null" json:"tokens"`
	Notes         int       `gorm:"not null" json:"notes"`
	DurationBeats float64   `json:"duration_beats"`
	MIDIBytes     int       `json:"midi_bytes"`
	SemanticText  string    `gorm:"type:text" json:"semantic_text"`
	LatencyMs     int64     `json:"latency_ms"`
}
