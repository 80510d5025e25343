package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ApplyShotList replaces the project's shots with shots, renumbering them 1..N in order.
//
// Each incoming shot's Number is read as the number it had before the edit; zero marks a new
// shot. Frames follow their shot to its new number, new shots get a pending frame, and frames
// whose shot is gone are dropped.
func ApplyShotList(p *Project, shots []Shot) {
	byOld := make(map[int]Frame, len(p.Frames))
	for _, f := range p.Frames {
		byOld[f.ShotNumber] = f
	}

	newShots := make([]Shot, len(shots))
	newFrames := make([]Frame, 0, len(shots))
	for i, s := range shots {
		oldNumber := s.Number
		s.Number = i + 1
		s.Characters = append([]string(nil), s.Characters...)
		newShots[i] = s

		f, ok := byOld[oldNumber]
		if oldNumber > 0 && ok {
			// a duplicated old number keeps its frame only once
			delete(byOld, oldNumber)
			f.ShotNumber = s.Number
			newFrames = append(newFrames, f)
			continue
		}
		newFrames = append(newFrames, Frame{ShotNumber: s.Number, Status: FramePending})
	}

	EnsureShotIDs(newShots)
	p.Shots = newShots
	p.Frames = newFrames
}

// EnsureShotIDs gives every shot without an ID, or with an ID already used earlier in the
// list, a fresh one.
func EnsureShotIDs(shots []Shot) {
	seen := make(map[string]bool, len(shots))
	for i := range shots {
		if shots[i].ID == "" || seen[shots[i].ID] {
			shots[i].ID = uuid.NewString()
		}
		seen[shots[i].ID] = true
	}
}

// RenumberShots assigns 1..N to shots in their current order.
func RenumberShots(shots []Shot) []Shot {
	out := make([]Shot, len(shots))
	for i, s := range shots {
		s.Number = i + 1
		out[i] = s
	}
	return out
}

// InitialFrames builds one pending frame per shot.
func InitialFrames(shots []Shot) []Frame {
	frames := make([]Frame, len(shots))
	for i, s := range shots {
		frames[i] = Frame{ShotNumber: s.Number, Status: FramePending}
	}
	return frames
}

// InsertShotAfter returns the shot list with an empty shot placed after shot number after.
// after == 0 inserts at the front. Numbers of existing shots are kept so ApplyShotList can carry
// their frames.
func InsertShotAfter(shots []Shot, after int) ([]Shot, error) {
	if after < 0 || after > len(shots) {
		return nil, fmt.Errorf("%w: cannot insert after shot %d of %d", ErrInvalidInput, after, len(shots))
	}
	out := make([]Shot, 0, len(shots)+1)
	out = append(out, shots[:after]...)
	out = append(out, Shot{ID: uuid.NewString(), Characters: []string{}})
	out = append(out, shots[after:]...)
	return out, nil
}

// RemoveShot returns the shot list without shot number.
func RemoveShot(shots []Shot, number int) ([]Shot, error) {
	idx := ShotIndex(shots, number)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %d", ErrShotNotFound, number)
	}
	out := make([]Shot, 0, len(shots)-1)
	out = append(out, shots[:idx]...)
	out = append(out, shots[idx+1:]...)
	return out, nil
}

// ShotIndex returns the position of shot number, or -1.
func ShotIndex(shots []Shot, number int) int {
	for i, s := range shots {
		if s.Number == number {
			return i
		}
	}
	return -1
}

// ShotIndexByID returns the position of the shot with the given ID, or -1.
func ShotIndexByID(shots []Shot, id string) int {
	if id == "" {
		return -1
	}
	for i, s := range shots {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// FrameFor returns the frame for shot number. A shot without a frame record is reported as a
// pending frame.
func (p *Project) FrameFor(number int) Frame {
	for _, f := range p.Frames {
		if f.ShotNumber == number {
			return f
		}
	}
	return Frame{ShotNumber: number, Status: FramePending}
}

// Shot returns shot number, or false.
func (p *Project) Shot(number int) (Shot, bool) {
	idx := ShotIndex(p.Shots, number)
	if idx < 0 {
		return Shot{}, false
	}
	return p.Shots[idx], true
}

// CheckFrames reports frames that reference unknown shots or repeat a shot number.
func CheckFrames(shots []Shot, frames []Frame) error {
	known := make(map[int]bool, len(shots))
	for _, s := range shots {
		known[s.Number] = true
	}
	seen := make(map[int]bool, len(frames))
	for _, f := range frames {
		if !known[f.ShotNumber] {
			return fmt.Errorf("%w: shot %d", ErrOrphanFrame, f.ShotNumber)
		}
		if seen[f.ShotNumber] {
			return fmt.Errorf("%w: duplicate frame for shot %d", ErrInvalidInput, f.ShotNumber)
		}
		seen[f.ShotNumber] = true
	}
	return nil
}

// SortFrames orders frames by shot number.
func SortFrames(frames []Frame) {
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].ShotNumber < frames[j].ShotNumber })
}

// MergeFrame upserts f into the project's frame list by shot number.
//
// Generation fields are replaced; the style override is kept unless f sets one. A new generation
// timestamp never lands at or before the one it replaces.
func MergeFrame(p *Project, f Frame) error {
	if ShotIndex(p.Shots, f.ShotNumber) < 0 {
		return fmt.Errorf("%w: shot %d", ErrOrphanFrame, f.ShotNumber)
	}
	for i, existing := range p.Frames {
		if existing.ShotNumber != f.ShotNumber {
			continue
		}
		if f.StyleOverride == "" {
			f.StyleOverride = existing.StyleOverride
		}
		if f.GeneratedAt != nil && existing.GeneratedAt != nil && !f.GeneratedAt.After(*existing.GeneratedAt) {
			bumped := existing.GeneratedAt.Add(time.Microsecond)
			f.GeneratedAt = &bumped
		}
		p.Frames[i] = f
		return nil
	}
	p.Frames = append(p.Frames, f)
	SortFrames(p.Frames)
	return nil
}

// MergeShotFrame merges f into the frame of the shot with the given ID, wherever that shot
// currently sits. f.ShotNumber is overwritten with the shot's current number.
func MergeShotFrame(p *Project, shotID string, f Frame) (Frame, error) {
	idx := ShotIndexByID(p.Shots, shotID)
	if idx < 0 {
		return Frame{}, fmt.Errorf("%w: id %s", ErrShotNotFound, shotID)
	}
	f.ShotNumber = p.Shots[idx].Number
	if err := MergeFrame(p, f); err != nil {
		return Frame{}, err
	}
	return p.FrameFor(f.ShotNumber), nil
}

// SetFrameStyle sets or, with an empty style, clears the style override of shot number's frame.
// A shot without a frame record gets a pending frame carrying the override.
func SetFrameStyle(p *Project, number int, style string) error {
	if ShotIndex(p.Shots, number) < 0 {
		return fmt.Errorf("%w: %d", ErrShotNotFound, number)
	}
	style = strings.TrimSpace(style)
	for i := range p.Frames {
		if p.Frames[i].ShotNumber == number {
			p.Frames[i].StyleOverride = style
			return nil
		}
	}
	p.Frames = append(p.Frames, Frame{ShotNumber: number, Status: FramePending, StyleOverride: style})
	SortFrames(p.Frames)
	return nil
}

// MergeCharacters upserts defs into the project's characters, matching names case-insensitively.
// Existing order is kept and new names are appended.
func MergeCharacters(p *Project, defs []CharacterDefinition) error {
	for _, d := range defs {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("%w: character name is required", ErrInvalidInput)
		}
	}
	for _, d := range defs {
		d.Traits = append([]string(nil), d.Traits...)
		if existing := FindCharacter(p.Characters, d.Name); existing != nil {
			*existing = d
			continue
		}
		p.Characters = append(p.Characters, d)
	}
	return nil
}

// FindCharacter looks a character up by case-insensitive name. It returns nil when the name is
// not defined, which is a normal outcome: shots may name characters that do not exist yet.
func FindCharacter(defs []CharacterDefinition, name string) *CharacterDefinition {
	needle := strings.TrimSpace(name)
	for i := range defs {
		if strings.EqualFold(strings.TrimSpace(defs[i].Name), needle) {
			return &defs[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	c.Shots = make([]Shot, len(p.Shots))
	for i, s := range p.Shots {
		s.Characters = append([]string(nil), s.Characters...)
		c.Shots[i] = s
	}
	c.Frames = make([]Frame, len(p.Frames))
	for i, f := range p.Frames {
		if f.GeneratedAt != nil {
			t := *f.GeneratedAt
			f.GeneratedAt = &t
		}
		c.Frames[i] = f
	}
	c.Characters = make([]CharacterDefinition, len(p.Characters))
	for i, d := range p.Characters {
		d.Traits = append([]string(nil), d.Traits...)
		c.Characters[i] = d
	}
	return &c
}

// Summary returns the listing view of the project.
func (p *Project) Summary() ProjectSummary {
	return ProjectSummary{
		ID:          p.ID,
		Title:       p.Title,
		Genre:       p.Genre,
		Tone:        p.Tone,
		AspectRatio: p.AspectRatio,
		ShotCount:   len(p.Shots),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
