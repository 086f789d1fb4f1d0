package model

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []any{
	&Session{},
	&CalibrationSample{},
	&StatusEvent{},
	&StatusSpan{},
}

// Session is one calibration + monitoring run.
type Session struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Subject   string    `json:"subject" gorm:"size:127;index:idx_session_subject"`
	Source    string    `json:"source" gorm:"size:31"`
	Host      string    `json:"host" gorm:"size:127"`
	Version   string    `json:"version" gorm:"size:31"`
	Margin    float64   `json:"margin"`
	StartTime time.Time `json:"startTime" gorm:"index:idx_session_start_time"`

	// Region is the acceptance region, set once calibration completes.
	Region        datatypes.JSON `json:"region"`
	CalibratedAt  sql.NullTime   `json:"calibratedAt"`
	EndTime       sql.NullTime   `json:"endTime"`
	EndReason     string         `json:"endReason" gorm:"size:127"`
	Frames        uint64         `json:"frames"`
	InsideFrames  uint64         `json:"insideFrames"`
	OutsideFrames uint64         `json:"outsideFrames"`
	NoFaceFrames  uint64         `json:"noFaceFrames"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (*Session) TableName() string {
	return "sessions"
}

// CalibrationSample is the gaze ratio captured for one target.
type CalibrationSample struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID   string    `json:"sessionId" gorm:"size:36;index:idx_calibration_session_id"`
	TargetIndex int       `json:"targetIndex"`
	Target      string    `json:"target" gorm:"size:15"`
	RatioX      float64   `json:"ratioX"`
	RatioY      float64   `json:"ratioY"`
	CapturedAt  time.Time `json:"capturedAt"`
}

func (*CalibrationSample) TableName() string {
	return "calibration_samples"
}

// StatusEvent is the classification of one monitored frame.
type StatusEvent struct {
	ID        uint            `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID string          `json:"sessionId" gorm:"size:36;index:idx_status_session_seq,priority:1"`
	Seq       uint64          `json:"seq" gorm:"index:idx_status_session_seq,priority:2"`
	Time      time.Time       `json:"time" gorm:"index:idx_status_time"`
	Status    string          `json:"status" gorm:"size:7"`
	RatioX    sql.NullFloat64 `json:"ratioX"`
	RatioY    sql.NullFloat64 `json:"ratioY"`
	Reason    string          `json:"reason" gorm:"size:63"`
}

func (*StatusEvent) TableName() string {
	return "status_events"
}

// StatusSpan is a run of consecutive frames sharing one status.
type StatusSpan struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID string    `json:"sessionId" gorm:"size:36;index:idx_span_session_id"`
	Status    string    `json:"status" gorm:"size:7"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	FirstSeq  uint64    `json:"firstSeq"`
	LastSeq   uint64    `json:"lastSeq"`
	Frames    uint64    `json:"frames"`
}

func (*StatusSpan) TableName() string {
	return "status_spans"
}
