package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Profile is the user record returned by the backend alongside a credential.
// Student and teacher specific fields are only present for those roles.
type Profile struct {
	ID       int    `json:"id" yaml:"id"`
	Username string `json:"username" yaml:"username"`
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
	FullName string `json:"full_name,omitempty" yaml:"full_name,omitempty"`
	Role     Role   `json:"role" yaml:"role"`
	IsActive bool   `json:"is_active" yaml:"is_active"`

	StudentID  *int   `json:"student_id,omitempty" yaml:"student_id,omitempty"`
	RollNumber string `json:"roll_number,omitempty" yaml:"roll_number,omitempty"`
	ClassID    *int   `json:"class_id,omitempty" yaml:"class_id,omitempty"`

	TeacherID  *int   `json:"teacher_id,omitempty" yaml:"teacher_id,omitempty"`
	EmployeeID string `json:"employee_id,omitempty" yaml:"employee_id,omitempty"`
}

// DisplayName returns the name to greet the user with.
func (p Profile) DisplayName() string {
	if name := strings.TrimSpace(p.FullName); name != "" {
		return name
	}
	if p.Username != "" {
		return p.Username
	}
	return fmt.Sprintf("user #%d", p.ID)
}

// Clone returns a deep copy so callers can't mutate shared state.
func (p Profile) Clone() Profile {
	c := p
	c.StudentID = cloneInt(p.StudentID)
	c.ClassID = cloneInt(p.ClassID)
	c.TeacherID = cloneInt(p.TeacherID)
	return c
}

// MarshalProfile serializes a profile for persistence.
func MarshalProfile(p Profile) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}
	return string(b), nil
}

// UnmarshalProfile parses a persisted profile. A document that decodes but
// carries no identity (no id and no username) is rejected.
func UnmarshalProfile(s string) (Profile, error) {
	var p Profile
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return Profile{}, fmt.Errorf("unmarshal profile: %w", err)
	}
	if p.ID == 0 && p.Username == "" {
		return Profile{}, fmt.Errorf("unmarshal profile: missing id and username")
	}
	return p, nil
}

// ProfileUpdate is a partial profile. Nil fields are left untouched.
type ProfileUpdate struct {
	Username   *string
	Email      *string
	FullName   *string
	IsActive   *bool
	RollNumber *string
	ClassID    *int
	EmployeeID *string
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Username == nil && u.Email == nil && u.FullName == nil &&
		u.IsActive == nil && u.RollNumber == nil && u.ClassID == nil && u.EmployeeID == nil
}

// Apply merges the update into a copy of p. Identity and role are never
// changed by a profile update.
func (u ProfileUpdate) Apply(p Profile) Profile {
	out := p.Clone()
	if u.Username != nil {
		out.Username = *u.Username
	}
	if u.Email != nil {
		out.Email = *u.Email
	}
	if u.FullName != nil {
		out.FullName = *u.FullName
	}
	if u.IsActive != nil {
		out.IsActive = *u.IsActive
	}
	if u.RollNumber != nil {
		out.RollNumber = *u.RollNumber
	}
	if u.ClassID != nil {
		out.ClassID = cloneInt(u.ClassID)
	}
	if u.EmployeeID != nil {
		out.EmployeeID = *u.EmployeeID
	}
	return out
}

// LoginInput carries the credentials typed by the user.
type LoginInput struct {
	Username string
	Password string
}

// Validate rejects blank fields before any network call is made.
func (in LoginInput) Validate() error {
	if strings.TrimSpace(in.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if in.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
