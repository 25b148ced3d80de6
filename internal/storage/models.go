package storage

import (
	"errors"
	"time"

	"github.com/kalambet/flowcraft/internal/marketing"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Generation statuses.
const (
	GenerationPending   = "pending"
	GenerationCompleted = "completed"
	GenerationFailed    = "failed"
)

// Generation is a content generation request and its result.
type Generation struct {
	ID            string
	Prompt        string
	ContentType   string
	Channel       string
	OverridesJSON string
	Status        string
	OutputJSON    string
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // one of the Job* constants
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// FlowFilter narrows ListFlows. Zero values match everything.
type FlowFilter struct {
	Status  marketing.Status
	Channel marketing.Channel
	Limit   int
}
