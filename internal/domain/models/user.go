// internal/domain/models/user.go
package models

import "time"

// User is an employee who can sign in and view granted reports.
//
// NOTE:
//   - Report access is not embedded on User.
//     Use the user_report_access table to discover a user's reports.
//   - PasswordHash is a bcrypt hash and is never serialized.
type User struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"` // lowercase, trimmed
	PasswordHash      string    `json:"-"`
	Role              string    `json:"role"`
	Designation       string    `json:"designation"`
	IsPasswordChanged bool      `json:"isPasswordChanged"`
	CreatedAt         time.Time `json:"createdAt"`
}
