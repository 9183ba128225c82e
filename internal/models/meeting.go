package models

import "time"

// Meeting is one recorded meeting and the three objects stored for it.
type Meeting struct {
	ID                 uint      `json:"id" gorm:"column:id;primaryKey"`
	CompanyName        string    `json:"company_name" gorm:"column:company_name;size:100;not null"`
	MeetingName        string    `json:"meeting_name" gorm:"column:meeting_name;size:200;not null"`
	MeetingDatetime    time.Time `json:"meeting_datetime" gorm:"column:meeting_datetime;not null"`
	WavURL             string    `json:"wav_url" gorm:"column:wav_url;size:500;not null"`
	SummaryTxtURL      string    `json:"summary_txt_url" gorm:"column:summary_txt_url;size:500;not null"`
	WholeMeetingTxtURL string    `json:"whole_meeting_txt_url" gorm:"column:whole_meeting_txt_url;size:500;not null"`
	CreatedAt          time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (Meeting) TableName() string {
	return "meetings"
}

// Artifact names one of the three files attached to a meeting.
type Artifact string

const (
	ArtifactWav     Artifact = "wav"
	ArtifactSummary Artifact = "summary"
	ArtifactWhole   Artifact = "whole"
)

// Artifacts lists the attachments in upload and deletion order.
var Artifacts = []Artifact{ArtifactWav, ArtifactSummary, ArtifactWhole}

func (a Artifact) Valid() bool {
	switch a {
	case ArtifactWav, ArtifactSummary, ArtifactWhole:
		return true
	}
	return false
}

// URL returns the stored URL for the given artifact.
func (m Meeting) URL(a Artifact) (string, bool) {
	switch a {
	case ArtifactWav:
		return m.WavURL, true
	case ArtifactSummary:
		return m.SummaryTxtURL, true
	case ArtifactWhole:
		return m.WholeMeetingTxtURL, true
	default:
		return "", false
	}
}

// MeetingUpdate holds the metadata fields an update may change. Nil fields are left as stored.
type MeetingUpdate struct {
	CompanyName     *string
	MeetingName     *string
	MeetingDatetime *time.Time
}

func (u MeetingUpdate) IsEmpty() bool {
	return u.CompanyName == nil && u.MeetingName == nil && u.MeetingDatetime == nil
}

// Columns maps the set fields to their column names.
func (u MeetingUpdate) Columns() map[string]any {
	cols := make(map[string]any, 3)
	if u.CompanyName != nil {
		cols["company_name"] = *u.CompanyName
	}
	if u.MeetingName != nil {
		cols["meeting_name"] = *u.MeetingName
	}
	if u.MeetingDatetime != nil {
		cols["meeting_datetime"] = *u.MeetingDatetime
	}
	return cols
}
