package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestValidator_CreateUserRequest(t *testing.T) {
	v := New()

	valid := &CreateUserRequest{
		Email:     "ana@example.com",
		Username:  "ana.lopez",
		Password:  "s3cretpass",
		FirstName: "Ana",
		LastName:  "Lopez",
	}
	require.NoError(t, v.Validate(valid))

	tests := []struct {
		name  string
		mut   func(r *CreateUserRequest)
		field string
		rule  string
	}{
		{"bad email", func(r *CreateUserRequest) { r.Email = "not-an-email" }, "email", "email"},
		{"short username", func(r *CreateUserRequest) { r.Username = "ab" }, "username", "username"},
		{"username with spaces", func(r *CreateUserRequest) { r.Username = "ana lopez" }, "username", "username"},
		{"short password", func(r *CreateUserRequest) { r.Password = "123" }, "password", "min"},
		{"blank first name", func(r *CreateUserRequest) { r.FirstName = "   " }, "first_name", "not_blank"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := *valid
			tt.mut(&req)

			err := v.Validate(&req)
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
			assert.Equal(t, tt.rule, verrs[0].Rule)
		})
	}
}

func TestValidator_UpdateProfileRequest(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&UpdateProfileRequest{}))
	assert.True(t, (&UpdateProfileRequest{}).IsEmpty())

	ok := &UpdateProfileRequest{
		Bio:         strPtr("Learning English"),
		SocialLinks: map[string]string{"github": "https://github.com/ana"},
	}
	assert.NoError(t, v.Validate(ok))
	assert.False(t, ok.IsEmpty())

	badKey := &UpdateProfileRequest{SocialLinks: map[string]string{"myspace": "https://myspace.com/ana"}}
	assert.Error(t, v.Validate(badKey))

	badURL := &UpdateProfileRequest{Avatar: strPtr("not a url")}
	err := v.Validate(badURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "avatar")
}

func TestValidator_CompleteLessonRequest(t *testing.T) {
	v := New()

	negative := -5
	err := v.Validate(&CompleteLessonRequest{EnrollmentID: "e1", TimeSpent: &negative})
	require.Error(t, err)

	assert.Error(t, v.Validate(&CompleteLessonRequest{}))
	assert.NoError(t, v.Validate(&CompleteLessonRequest{EnrollmentID: "e1"}))
}

func TestValidator_ValidateID(t *testing.T) {
	v := New()

	assert.NoError(t, v.ValidateID("lesson_id", "0b8f4c3e-2a51-4c8e-9f43-7d5f1e2b9a10"))

	err := v.ValidateID("lesson_id", strings.Repeat("a", 37))
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "lesson_id", verrs[0].Field)
	assert.Equal(t, "max", verrs[0].Rule)

	err = v.ValidateID("lesson_id", "")
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "required", verrs[0].Rule)
}

func TestValidationErrors_Error(t *testing.T) {
	assert.Equal(t, "validation failed", ValidationErrors{}.Error())
	assert.Equal(t, "validation failed: email is required", ValidationErrors{{Field: "email", Message: "is required"}}.Error())
	assert.Equal(t, "validation failed: 2 field errors", ValidationErrors{{}, {}}.Error())
}
