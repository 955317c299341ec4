package profile

import (
	"time"

	"github.com/kalambet/simkit/internal/style"
)

// Persona is the profile of the real person a Sim represents: who they are,
// what they know, and samples of how they talk.
type Persona struct {
	ID              string           `json:"id" yaml:"id"`
	Name            string           `json:"name" yaml:"name"`
	Title           string           `json:"title,omitempty" yaml:"title,omitempty"`
	Profession      string           `json:"profession,omitempty" yaml:"profession,omitempty"`
	Location        string           `json:"location,omitempty" yaml:"location,omitempty"`
	Education       string           `json:"education,omitempty" yaml:"education,omitempty"`
	YearsExperience int              `json:"years_experience,omitempty" yaml:"years_experience,omitempty"`
	Expertise       string           `json:"expertise,omitempty" yaml:"expertise,omitempty"` // free text, comma or semicolon separated
	Background      string           `json:"background,omitempty" yaml:"background,omitempty"`
	Interests       []string         `json:"interests,omitempty" yaml:"interests,omitempty"`
	Skills          []string         `json:"skills,omitempty" yaml:"skills,omitempty"`
	WritingSample   string           `json:"writing_sample,omitempty" yaml:"writing_sample,omitempty"`
	Scenarios       []style.Scenario `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`
	WelcomeMessage  string           `json:"welcome_message,omitempty" yaml:"welcome_message,omitempty"`
	CreatedAt       time.Time        `json:"created_at" yaml:"-"`
	UpdatedAt       time.Time        `json:"updated_at" yaml:"-"`
}
