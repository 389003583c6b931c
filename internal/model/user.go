package model

import "time"

// User is the account on whose behalf bookings are made.  Session issuance
// and profile management live outside this service; only identity and the
// password hash needed by the auth boundary are kept.
//
// Fields:
//  ID           – primary key identifier.
//  Email        – unique login email.
//  PasswordHash – bcrypt hash of the password.
//  FullName     – display name.
//  CreatedAt    – creation timestamp.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	FullName     string    // users.full_name
	CreatedAt    time.Time // users.created_at
}
