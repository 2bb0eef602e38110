package models

import "time"

// User is the account record. The verification-token pair and the OTP pair
// are always set or cleared together: a non-nil token always has an expiry.
type User struct {
	BaseModel
	Email        string   `gorm:"uniqueIndex;not null"`
	PasswordHash string   `gorm:"not null" json:"-"`
	Role         UserRole `gorm:"type:varchar(20);not null"`
	FirstName    string
	LastName     string
	PhoneNumber  string

	// IsVerified flips to true exactly once; verification is not revocable.
	IsVerified bool `gorm:"default:false"`
	// Approved is set by the admin approval flow and only read here.
	Approved bool `gorm:"default:false"`

	// Hash of the outstanding verification token. Only the hash is stored;
	// the raw token lives in the emailed link.
	VerificationToken    *string `gorm:"index" json:"-"`
	VerificationTokenExp *time.Time

	// OTP is the outstanding password-reset code, stored as issued.
	OTP    *string    `gorm:"column:otp" json:"-"`
	OTPExp *time.Time `gorm:"column:otp_exp"`
}

// DisplayName returns the name shown in account summaries.
func (u *User) DisplayName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
