package planner

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"storyboard-server/internal/models"

	"github.com/go-playground/validator/v10"
)

// fenceRegex matches a ```lang ... ``` block; group 1 is the body.
var fenceRegex = regexp.MustCompile(`(?s)` + "```" + `(?:\w+)?\s*(.*?)\s*` + "```")

var validate = validator.New(validator.WithRequiredStructEnabled())

// PlanOutcome tags a PlanResult.
type PlanOutcome int

const (
	PlanRejected PlanOutcome = iota
	PlanAccepted
)

// PlanResult is the validated form of raw model output. Shots is set only when accepted.
type PlanResult struct {
	Outcome PlanOutcome
	Shots   []models.Shot
	Reason  string
	err     error

	// sourceNumbers maps each number the model gave a shot to the shot's final number. It is
	// nil unless every shot carried a distinct number.
	sourceNumbers map[int]int
}

// Accepted reports whether the plan passed validation.
func (r PlanResult) Accepted() bool {
	return r.Outcome == PlanAccepted
}

// Err returns nil for an accepted plan and a wrapped ErrInvalidPlan or ErrInvalidPlanSize otherwise.
func (r PlanResult) Err() error {
	if r.Accepted() {
		return nil
	}
	return r.err
}

func accepted(shots []models.Shot) PlanResult {
	return PlanResult{Outcome: PlanAccepted, Shots: shots}
}

func rejected(sentinel error, format string, args ...any) PlanResult {
	reason := fmt.Sprintf(format, args...)
	return PlanResult{Outcome: PlanRejected, Reason: reason, err: fmt.Errorf("%w: %s", sentinel, reason)}
}

// rawShot is the shot shape the model is asked to produce.
type rawShot struct {
	Number         *int            `json:"number"`
	Description    string          `json:"description" validate:"required"`
	CameraAngle    string          `json:"camera_angle" validate:"required"`
	Characters     []string        `json:"characters"`
	VisualElements string          `json:"visual_elements"`
	Duration       json.RawMessage `json:"duration"`
	Location       string          `json:"location"`
	Lighting       string          `json:"lighting"`
	EmotionalTone  string          `json:"emotional_tone"`
	KeyProps       string          `json:"key_props"`
	Dialogue       string          `json:"dialogue"`
}

// detailedShot additionally requires the fields of the detailed breakdown.
type detailedShot struct {
	Location      string `validate:"required"`
	Lighting      string `validate:"required"`
	EmotionalTone string `validate:"required"`
}

type shotEnvelope struct {
	Shots *[]rawShot `json:"shots"`
}

// ValidatePlan checks raw model output against the detailed shot schema and the expected count.
func ValidatePlan(raw string, target int) PlanResult {
	return validatePlan(raw, target, true)
}

// validatePlan parses the model output; when detailed is false only the base shot fields are required.
func validatePlan(raw string, target int, detailed bool) PlanResult {
	body := StripFences(raw)
	if body == "" {
		return rejected(models.ErrInvalidPlan, "empty model output")
	}

	var shots []rawShot
	switch body[0] {
	case '[':
		if err := json.Unmarshal([]byte(body), &shots); err != nil {
			return rejected(models.ErrInvalidPlan, "shot array is not valid JSON: %v", err)
		}
	case '{':
		var env shotEnvelope
		if err := json.Unmarshal([]byte(body), &env); err != nil {
			return rejected(models.ErrInvalidPlan, "shot object is not valid JSON: %v", err)
		}
		if env.Shots == nil {
			return rejected(models.ErrInvalidPlan, "object has no shots array")
		}
		shots = *env.Shots
	default:
		return rejected(models.ErrInvalidPlan, "output is neither a JSON array nor an object")
	}

	if len(shots) == 0 {
		return rejected(models.ErrInvalidPlan, "shots array is empty")
	}

	out := make([]models.Shot, 0, len(shots))
	for i, rs := range shots {
		if err := validate.Struct(rs); err != nil {
			return rejected(models.ErrInvalidPlan, "shot %d: %s", i+1, describeValidation(err))
		}
		if detailed {
			d := detailedShot{Location: rs.Location, Lighting: rs.Lighting, EmotionalTone: rs.EmotionalTone}
			if err := validate.Struct(d); err != nil {
				return rejected(models.ErrInvalidPlan, "shot %d: %s", i+1, describeValidation(err))
			}
		}
		out = append(out, rs.toShot())
	}

	if target > 0 && len(out) != target {
		return rejected(models.ErrInvalidPlanSize, "expected %d shots, got %d", target, len(out))
	}
	result := accepted(models.RenumberShots(out))
	result.sourceNumbers = sourceNumbers(shots)
	return result
}

// sourceNumbers maps model-given shot numbers to 1-based positions, or returns nil when a shot
// has no number or two shots share one.
func sourceNumbers(shots []rawShot) map[int]int {
	out := make(map[int]int, len(shots))
	for i, rs := range shots {
		if rs.Number == nil {
			return nil
		}
		if _, dup := out[*rs.Number]; dup {
			return nil
		}
		out[*rs.Number] = i + 1
	}
	return out
}

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if m := fenceRegex.FindStringSubmatch(cleaned); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return cleaned
}

func (rs rawShot) toShot() models.Shot {
	chars := make([]string, 0, len(rs.Characters))
	for _, c := range rs.Characters {
		if c = strings.TrimSpace(c); c != "" {
			chars = append(chars, c)
		}
	}
	return models.Shot{
		Description:    strings.TrimSpace(rs.Description),
		CameraAngle:    strings.TrimSpace(rs.CameraAngle),
		Characters:     chars,
		VisualElements: strings.TrimSpace(rs.VisualElements),
		Duration:       durationString(rs.Duration),
		Location:       strings.TrimSpace(rs.Location),
		Lighting:       strings.TrimSpace(rs.Lighting),
		EmotionalTone:  strings.TrimSpace(rs.EmotionalTone),
		KeyProps:       strings.TrimSpace(rs.KeyProps),
		Dialogue:       strings.TrimSpace(rs.Dialogue),
	}
}

// durationString accepts "3s" as well as a bare number of seconds.
func durationString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String() + "s"
	}
	return ""
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		names := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			names = append(names, fe.Field())
		}
		return "missing required field(s) " + strings.Join(names, ", ")
	}
	return err.Error()
}
