package models

import (
	"time"

	"campus-events/internal/actor"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string     `bun:"id,pk" json:"id"`
	Name         string     `bun:"name,notnull" json:"name"`
	Email        string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash string     `bun:"password_hash,notnull" json:"-"`
	Role         actor.Role `bun:"role,notnull" json:"role"`
	CreatedAt    time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// Actor converts the stored user into the caller identity used by services.
func (u *User) Actor() actor.Actor {
	return actor.Actor{UserID: u.ID, Email: u.Email, Role: u.Role}
}

type Department struct {
	bun.BaseModel `bun:"table:departments,alias:d"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull,unique" json:"name"`
}

// UserProfile holds the optional details a user fills in about themselves.
type UserProfile struct {
	bun.BaseModel `bun:"table:user_profiles,alias:up"`

	UserID         string    `bun:"user_id,pk" json:"-"`
	Department     string    `bun:"department,nullzero" json:"department,omitempty"`
	StudentID      string    `bun:"student_id,nullzero" json:"student_id,omitempty"`
	GraduationYear *int      `bun:"graduation_year" json:"graduation_year,omitempty"`
	Position       string    `bun:"position,nullzero" json:"position,omitempty"`
	Bio            string    `bun:"bio,nullzero" json:"bio,omitempty"`
	ContactInfo    string    `bun:"contact_info,nullzero" json:"contact_info,omitempty"`
	UpdatedAt      time.Time `bun:"updated_at,notnull" json:"updated_at"`
}
