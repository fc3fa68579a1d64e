// Package models provides database models for the playback module.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

// DecisionRecord is one persisted playback decision.
type DecisionRecord struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	ProfileName string `gorm:"size:200;index" json:"profile_name"`
	DeviceName  string `gorm:"size:200" json:"device_name,omitempty"`
	UserAgent   string `gorm:"size:500" json:"user_agent,omitempty"`

	MediaPath       string `gorm:"size:1000" json:"media_path,omitempty"`
	SourceContainer string `gorm:"size:20" json:"source_container"`
	MediaType       string `gorm:"size:20" json:"media_type,omitempty"`

	Kind             string `gorm:"size:20;index" json:"kind"` // direct_play, direct_stream, transcode, unsupported
	RuleIndex        int    `json:"rule_index"`
	TargetContainer  string `gorm:"size:20" json:"target_container,omitempty"`
	TargetVideoCodec string `gorm:"size:20" json:"target_video_codec,omitempty"`
	TargetAudioCodec string `gorm:"size:20" json:"target_audio_codec,omitempty"`
	Settings         string `gorm:"type:text" json:"settings,omitempty"` // canonical Name=value;... form
	PlanKey          string `gorm:"type:text" json:"plan_key,omitempty"`
	Reason           string `gorm:"size:1000" json:"reason,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns an ID when none was set.
func (r *DecisionRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// NewDecisionRecord flattens a decision for storage.
func NewDecisionRecord(decision *types.PlaybackDecision, media *types.MediaDescriptor) *DecisionRecord {
	record := &DecisionRecord{
		ID:          uuid.NewString(),
		ProfileName: decision.ProfileName,
		Kind:        string(decision.Kind),
		RuleIndex:   decision.RuleIndex,
		Reason:      decision.Reason,
	}
	if media != nil {
		record.MediaPath = media.Path
		record.SourceContainer = types.NormalizeContainer(media.Container)
		record.MediaType = string(media.MediaType())
	}

	record.TargetContainer = decision.Container
	if plan := decision.Plan; plan != nil {
		record.TargetContainer = plan.TargetContainer()
		record.TargetVideoCodec = plan.TargetVideoCodec()
		record.TargetAudioCodec = plan.TargetAudioCodec()
		record.Settings = plan.Settings().Encode()
		record.PlanKey = plan.CacheKey()
	}
	return record
}

// AllModels lists the models to migrate.
func AllModels() []interface{} {
	return []interface{}{&DecisionRecord{}}
}
