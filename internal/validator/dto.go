package validator

// CreateUserRequest carries the identity fields of a new learner
type CreateUserRequest struct {
	Email     string  `json:"email" validate:"required,email,max=255"`
	Username  string  `json:"username" validate:"required,username"`
	Password  string  `json:"password" validate:"required,min=8,max=128"`
	FirstName string  `json:"first_name" validate:"required,not_blank,max=100"`
	LastName  string  `json:"last_name" validate:"required,not_blank,max=100"`
	Bio       *string `json:"bio" validate:"omitempty,max=1000"`
	City      *string `json:"city" validate:"omitempty,max=100"`
	Country   *string `json:"country" validate:"omitempty,max=100"`
}

// UpdateProfileRequest is a partial update; nil fields are not supplied
type UpdateProfileRequest struct {
	FirstName   *string           `json:"first_name,omitempty" validate:"omitempty,not_blank,max=100"`
	LastName    *string           `json:"last_name,omitempty" validate:"omitempty,not_blank,max=100"`
	Avatar      *string           `json:"avatar,omitempty" validate:"omitempty,url,max=500"`
	Bio         *string           `json:"bio,omitempty" validate:"omitempty,max=1000"`
	City        *string           `json:"city,omitempty" validate:"omitempty,max=100"`
	Country     *string           `json:"country,omitempty" validate:"omitempty,max=100"`
	SocialLinks map[string]string `json:"social_links,omitempty" validate:"omitempty,max=10,dive,keys,oneof=website twitter linkedin github facebook instagram youtube,endkeys,url"`
}

func (r *UpdateProfileRequest) IsEmpty() bool {
	return r.FirstName == nil && r.LastName == nil && r.Avatar == nil &&
		r.Bio == nil && r.City == nil && r.Country == nil && r.SocialLinks == nil
}

type CompleteLessonRequest struct {
	EnrollmentID string                 `json:"enrollment_id" validate:"required,max=36"`
	TimeSpent    *int                   `json:"time_spent,omitempty" validate:"omitempty,min=0,max=86400"`
	QuizResults  map[string]interface{} `json:"quiz_results,omitempty"`
	Notes        *string                `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

type RecordAttemptRequest struct {
	EnrollmentID string `json:"enrollment_id" validate:"required,max=36"`
	TimeSpent    int    `json:"time_spent" validate:"min=0,max=86400"`
}
