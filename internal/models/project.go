package models

import (
	"strconv"
	"time"
)

// AspectRatio is the frame shape requested from the image backend.
type AspectRatio string

const (
	AspectWide AspectRatio = "wide"
	AspectTall AspectRatio = "tall"
)

// Valid reports whether r is one of the supported ratios.
func (r AspectRatio) Valid() bool {
	return r == AspectWide || r == AspectTall
}

// Ratio returns the width:height string understood by the image backend.
func (r AspectRatio) Ratio() string {
	if r == AspectTall {
		return "9:16"
	}
	return "16:9"
}

// FrameStatus tracks a frame through generation.
type FrameStatus string

const (
	FramePending    FrameStatus = "pending"
	FrameGenerating FrameStatus = "generating"
	FrameRendered   FrameStatus = "rendered"
	FrameErrored    FrameStatus = "errored"
)

// Project is the unit of persistence for one storyboarding session.
type Project struct {
	ID             string                `json:"id"`
	OwnerID        string                `json:"owner_id"`
	Title          string                `json:"title,omitempty"`
	Script         string                `json:"script"`
	Genre          string                `json:"genre,omitempty"`
	Tone           string                `json:"tone,omitempty"`
	Style          string                `json:"style,omitempty"`
	AspectRatio    AspectRatio           `json:"aspect_ratio"`
	StyleReference string                `json:"style_reference,omitempty"`
	Characters     []CharacterDefinition `json:"characters"`
	Shots          []Shot                `json:"shots"`
	Frames         []Frame               `json:"frames"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// Shot is one planned storyboard panel.
type Shot struct {
	// ID is assigned once by the store and survives renumbering.
	ID             string   `json:"id"`
	Number         int      `json:"number"`
	Description    string   `json:"description"`
	CameraAngle    string   `json:"camera_angle"`
	Characters     []string `json:"characters"`
	VisualElements string   `json:"visual_elements"`
	Duration       string   `json:"duration"`

	// Populated by the detailed breakdown only.
	Location      string `json:"location,omitempty"`
	Lighting      string `json:"lighting,omitempty"`
	EmotionalTone string `json:"emotional_tone,omitempty"`
	KeyProps      string `json:"key_props,omitempty"`
	Dialogue      string `json:"dialogue,omitempty"`
}

// Frame is the rendered counterpart of a shot. At most one frame exists per shot number.
type Frame struct {
	ShotNumber    int         `json:"shot_number"`
	Status        FrameStatus `json:"status"`
	Image         string      `json:"image,omitempty"`
	GeneratedAt   *time.Time  `json:"generated_at,omitempty"`
	Error         string      `json:"error,omitempty"`
	Fallback      bool        `json:"fallback,omitempty"`
	StyleOverride string      `json:"style_override,omitempty"`
}

// HasImage reports whether the frame currently holds an image.
func (f Frame) HasImage() bool {
	return f.Image != ""
}

// CharacterDefinition is a named visual anchor referenced from shots by name.
type CharacterDefinition struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Traits         []string `json:"traits,omitempty"`
	ReferenceImage string   `json:"reference_image,omitempty"`
}

// ProjectSummary is the listing view of a project.
type ProjectSummary struct {
	ID          string      `json:"id" db:"id"`
	Title       string      `json:"title" db:"title"`
	Genre       string      `json:"genre" db:"genre"`
	Tone        string      `json:"tone" db:"tone"`
	AspectRatio AspectRatio `json:"aspect_ratio" db:"aspect_ratio"`
	ShotCount   int         `json:"shot_count" db:"shot_count"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// ScriptUpdate is a partial update of the project's script-level fields.
// Nil fields are left untouched.
type ScriptUpdate struct {
	Title          *string      `json:"title,omitempty"`
	Script         *string      `json:"script,omitempty"`
	Genre          *string      `json:"genre,omitempty"`
	Tone           *string      `json:"tone,omitempty"`
	Style          *string      `json:"style,omitempty"`
	AspectRatio    *AspectRatio `json:"aspect_ratio,omitempty"`
	StyleReference *string      `json:"style_reference,omitempty"`
}

// Apply copies the non-nil fields onto p.
func (u ScriptUpdate) Apply(p *Project) {
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Script != nil {
		p.Script = *u.Script
	}
	if u.Genre != nil {
		p.Genre = *u.Genre
	}
	if u.Tone != nil {
		p.Tone = *u.Tone
	}
	if u.Style != nil {
		p.Style = *u.Style
	}
	if u.AspectRatio != nil {
		p.AspectRatio = *u.AspectRatio
	}
	if u.StyleReference != nil {
		p.StyleReference = *u.StyleReference
	}
}

// ShotRef names a shot by its stable ID or, when the ID is empty, by its current number.
type ShotRef struct {
	ID     string
	Number int
}

// Index returns the position of the referenced shot in shots, or -1.
func (r ShotRef) Index(shots []Shot) int {
	if r.ID != "" {
		return ShotIndexByID(shots, r.ID)
	}
	return ShotIndex(shots, r.Number)
}

func (r ShotRef) String() string {
	if r.ID != "" {
		return "id " + r.ID
	}
	return strconv.Itoa(r.Number)
}

// ShotPatch is a field-level edit of one shot. The shot number is not editable.
type ShotPatch struct {
	Description    *string   `json:"description,omitempty"`
	CameraAngle    *string   `json:"camera_angle,omitempty"`
	Characters     *[]string `json:"characters,omitempty"`
	VisualElements *string   `json:"visual_elements,omitempty"`
	Duration       *string   `json:"duration,omitempty"`
	Location       *string   `json:"location,omitempty"`
	Lighting       *string   `json:"lighting,omitempty"`
	EmotionalTone  *string   `json:"emotional_tone,omitempty"`
	KeyProps       *string   `json:"key_props,omitempty"`
	Dialogue       *string   `json:"dialogue,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ShotPatch) IsEmpty() bool {
	return p == ShotPatch{}
}

// Apply copies the non-nil fields onto s.
func (p ShotPatch) Apply(s *Shot) {
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.CameraAngle != nil {
		s.CameraAngle = *p.CameraAngle
	}
	if p.Characters != nil {
		s.Characters = append([]string(nil), (*p.Characters)...)
	}
	if p.VisualElements != nil {
		s.VisualElements = *p.VisualElements
	}
	if p.Duration != nil {
		s.Duration = *p.Duration
	}
	if p.Location != nil {
		s.Location = *p.Location
	}
	if p.Lighting != nil {
		s.Lighting = *p.Lighting
	}
	if p.EmotionalTone != nil {
		s.EmotionalTone = *p.EmotionalTone
	}
	if p.KeyProps != nil {
		s.KeyProps = *p.KeyProps
	}
	if p.Dialogue != nil {
		s.Dialogue = *p.Dialogue
	}
}
