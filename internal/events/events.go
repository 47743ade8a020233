package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "learner-service"
	EventVersion = "1.0"
)

// Topics
const (
	TopicUser     = "learner.user"
	TopicProgress = "learner.progress"
)

type EventType string

const (
	EventUserCreated     EventType = "user.created"
	EventLessonCompleted EventType = "lesson.completed"
	EventCourseCompleted EventType = "course.completed"
)

// Event is the envelope published on every topic
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// TopicFor routes an event type to its topic
func TopicFor(eventType EventType) string {
	switch eventType {
	case EventUserCreated:
		return TopicUser
	default:
		return TopicProgress
	}
}

type UserCreatedData struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type LessonCompletedData struct {
	UserID       string   `json:"user_id"`
	LessonID     string   `json:"lesson_id"`
	EnrollmentID string   `json:"enrollment_id"`
	Progress     *float64 `json:"progress,omitempty"`
}

type CourseCompletedData struct {
	UserID      string `json:"user_id"`
	CourseID    string `json:"course_id"`
	CourseTitle string `json:"course_title"`
	Points      int    `json:"points"`
}

// EventPublisher publishes domain events. Publishing is best-effort for
// callers: a failure never undoes the store writes it describes.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
