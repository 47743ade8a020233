package models

import (
	"time"
)

type Course struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Title     string    `json:"title" gorm:"not null;size:200"`
	Lessons   []Lesson  `json:"lessons,omitempty" gorm:"foreignKey:CourseID"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Course) TableName() string {
	return "courses"
}

type Lesson struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CourseID  string    `json:"course_id" gorm:"not null;index;size:36"`
	Title     string    `json:"title" gorm:"not null;size:200"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// Enrollment links a user to a course. Progress and CompletedAt are derived
// from lesson progress in the document store and only written by the
// progress aggregator.
type Enrollment struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	UserID      string     `json:"user_id" gorm:"not null;index;size:36"`
	CourseID    string     `json:"course_id" gorm:"not null;index;size:36"`
	Progress    float64    `json:"progress" gorm:"default:0"` // 0-100
	CompletedAt *time.Time `json:"completed_at"`
	IsActive    bool       `json:"is_active" gorm:"default:true;index"`
	EnrolledAt  time.Time  `json:"enrolled_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Course Course `json:"course" gorm:"foreignKey:CourseID"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
