package planner

import (
	"fmt"
	"strings"

	"storyboard-server/internal/models"
)

const detailedSystemPrompt = `You are a storyboard artist and first assistant director.
Break the screenplay you are given into exactly %d shots, in story order.

Respond with JSON only, no prose and no markdown, in this form:
{"shots":[{
  "number": 1,
  "description": "what happens in the shot",
  "camera_angle": "shot type and angle, e.g. wide establishing, close-up, over-the-shoulder",
  "characters": ["names of characters visible in the shot"],
  "visual_elements": "composition, movement, notable visual details",
  "duration": "estimated duration, e.g. 4s",
  "location": "where the shot takes place",
  "lighting": "lighting setup and mood",
  "emotional_tone": "the emotion the shot should convey",
  "key_props": "important props",
  "dialogue": "dialogue spoken during the shot, empty if none"
}]}

The shots array must contain exactly %d elements. Every field except characters, key_props and
dialogue must be non-empty.`

const reviseSystemPrompt = `You edit a single storyboard shot according to the user's instruction.

Respond with JSON only: an object holding ONLY the fields that change. Allowed keys are
description, camera_angle, characters (array of strings), visual_elements, duration, location,
lighting, emotional_tone, key_props and dialogue. Never include the shot number. Respond with {}
when nothing should change.`

func detailedPrompt(target int) string {
	return fmt.Sprintf(detailedSystemPrompt, target, target)
}

func detailedUserInput(req PlanRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Genre: %s\n", req.Genre)
	fmt.Fprintf(&b, "Tone: %s\n", req.Tone)
	b.WriteString("\nScreenplay:\n")
	b.WriteString(req.Script)
	return b.String()
}

func reviseUserInput(shot models.Shot, instruction string) string {
	var b strings.Builder
	b.WriteString("Current shot:\n")
	fmt.Fprintf(&b, "description: %s\n", shot.Description)
	fmt.Fprintf(&b, "camera_angle: %s\n", shot.CameraAngle)
	fmt.Fprintf(&b, "characters: %s\n", strings.Join(shot.Characters, ", "))
	fmt.Fprintf(&b, "visual_elements: %s\n", shot.VisualElements)
	fmt.Fprintf(&b, "duration: %s\n", shot.Duration)
	if shot.Location != "" {
		fmt.Fprintf(&b, "location: %s\n", shot.Location)
	}
	if shot.Lighting != "" {
		fmt.Fprintf(&b, "lighting: %s\n", shot.Lighting)
	}
	if shot.EmotionalTone != "" {
		fmt.Fprintf(&b, "emotional_tone: %s\n", shot.EmotionalTone)
	}
	if shot.KeyProps != "" {
		fmt.Fprintf(&b, "key_props: %s\n", shot.KeyProps)
	}
	if shot.Dialogue != "" {
		fmt.Fprintf(&b, "dialogue: %s\n", shot.Dialogue)
	}
	b.WriteString("\nInstruction:\n")
	b.WriteString(instruction)
	return b.String()
}
