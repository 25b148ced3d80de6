package marketing

import (
	"time"

	"github.com/kalambet/flowcraft/internal/aimodel"
)

// Channel identifies a publishing destination.
type Channel string

const (
	Blog      Channel = "blog"
	Twitter   Channel = "twitter"
	LinkedIn  Channel = "linkedin"
	Instagram Channel = "instagram"
	Facebook  Channel = "facebook"
	TikTok    Channel = "tiktok"
	Telegram  Channel = "telegram"
	WhatsApp  Channel = "whatsapp"
	Email     Channel = "email"
)

// ContentType is the shape of content a step produces.
type ContentType string

const (
	Post    ContentType = "post"
	Article ContentType = "article"
	Image   ContentType = "image"
	Video   ContentType = "video"
	Story   ContentType = "story"
	Reel    ContentType = "reel"
	Message ContentType = "message"
	Voice   ContentType = "voice"
)

// StepKind is what a step does in a flow.
type StepKind string

const (
	KindGenerate StepKind = "generate"
	KindRespond  StepKind = "respond"
	KindAnalyze  StepKind = "analyze"
	KindOptimize StepKind = "optimize"
)

// Status is the lifecycle state of a flow.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusActive Status = "active"
	StatusPaused Status = "paused"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusActive || s == StatusPaused
}

// Trigger says when a flow runs.
type Trigger struct {
	Type        string `json:"type"` // schedule, event or manual
	Schedule    string `json:"schedule,omitempty"`
	Event       string `json:"event,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	Frequency   string `json:"frequency,omitempty"` // once, daily, weekly, monthly
	RepeatCount int    `json:"repeatCount,omitempty"`
}

// Analytics is a flow-level performance snapshot.
type Analytics struct {
	Impressions float64 `json:"impressions"`
	Engagements float64 `json:"engagements"`
	Conversions float64 `json:"conversions"`
	ROI         float64 `json:"roi"`
}

// StepSchedule is the publishing slot of a step.
type StepSchedule struct {
	Time     string   `json:"time"` // HH:mm
	Days     []string `json:"days"`
	Timezone string   `json:"timezone"`
}

// StepPerformance is a per-step performance snapshot.
type StepPerformance struct {
	Impressions float64 `json:"impressions"`
	Engagements float64 `json:"engagements"`
	Conversions float64 `json:"conversions"`
	Sentiment   string  `json:"sentiment"` // positive, neutral, negative
}

// Step is one node of a flow.
type Step struct {
	ID          string           `json:"id"`
	Kind        StepKind         `json:"kind"`
	Channel     Channel          `json:"channel"`
	ContentType ContentType      `json:"contentType"`
	Settings    map[string]any   `json:"settings"`
	DependsOn   []string         `json:"dependsOn,omitempty"`
	Schedule    *StepSchedule    `json:"schedule,omitempty"`
	Performance *StepPerformance `json:"performance,omitempty"`
	Model       aimodel.Config   `json:"model"`
	ABTest      *ABTest          `json:"abTest,omitempty"`
}

// Variant is one arm of an A/B test.
type Variant struct {
	ID           string         `json:"id"`
	Model        aimodel.Config `json:"model"`
	Distribution float64        `json:"distribution"` // percent of audience
	Parameters   map[string]any `json:"parameters,omitempty"`
}

// Metric is one A/B test measurement.
type Metric struct {
	Impressions float64 `json:"impressions"`
	Engagements float64 `json:"engagements"`
	Conversions float64 `json:"conversions"`
	Confidence  float64 `json:"confidence"`
}

// ABTest compares model variants.
type ABTest struct {
	ID               string    `json:"id"`
	Variants         []Variant `json:"variants"`
	Metrics          []Metric  `json:"metrics"`
	WinningVariantID string    `json:"winningVariantId,omitempty"`
}

// Flow is a compiled marketing flow.
type Flow struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Trigger     Trigger              `json:"trigger"`
	Steps       []Step               `json:"steps"`
	Status      Status               `json:"status"`
	Analytics   Analytics            `json:"analytics"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
	AIConfig    *aimodel.Preferences `json:"aiConfig,omitempty"`
	ABTests     map[string]ABTest    `json:"abTests"`
}

// Channels returns the distinct channels of f's steps in step order.
func (f *Flow) Channels() []Channel {
	seen := make(map[Channel]bool)
	var out []Channel
	for _, s := range f.Steps {
		if !seen[s.Channel] {
			seen[s.Channel] = true
			out = append(out, s.Channel)
		}
	}
	return out
}
