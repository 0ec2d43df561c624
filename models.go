package multitoken

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Token is a session token. The row existing is the session being active.
type Token struct {
	bun.BaseModel `bun:"table:multitoken_tokens,alias:tok"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Key           string    `bun:"key,notnull,unique" json:"-"`
	OwnerID       uuid.UUID `bun:"owner_id,notnull,type:uuid" json:"owner_id"`
	Name          string    `bun:"name,notnull" json:"name"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	LastKnownIP   string    `bun:"last_known_ip,notnull" json:"last_known_ip"`
	UserAgent     string    `bun:"user_agent,notnull" json:"user_agent"`
}

// ResetToken is a password reset token
type ResetToken struct {
	bun.BaseModel `bun:"table:multitoken_reset_tokens,alias:rst"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Key           string    `bun:"key,notnull,unique" json:"-"`
	OwnerID       uuid.UUID `bun:"owner_id,notnull,type:uuid" json:"owner_id"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	IPAddress     string    `bun:"ip_address,notnull" json:"ip_address"`
	UserAgent     string    `bun:"user_agent,notnull" json:"user_agent"`
}

// ExpiresAt is the last instant the token is still valid
func (r *ResetToken) ExpiresAt(expiryHours int) time.Time {
	return r.CreatedAt.Add(time.Duration(expiryHours) * time.Hour)
}

// IsExpired is strict, now equal to ExpiresAt is still valid
func (r *ResetToken) IsExpired(now time.Time, expiryHours int) bool {
	return IsOutsideThresholdPeriod(r.CreatedAt, now, time.Duration(expiryHours)*time.Hour)
}

// UnusablePasswordPrefix marks a password hash that can never match, used
// for externally managed accounts
const UnusablePasswordPrefix = "!"

// User is the reference credential store model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Active        bool       `bun:"is_active,notnull" json:"is_active"`
	Superuser     bool       `bun:"is_superuser,notnull" json:"is_superuser"`
	LoggedInAt    *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// HasUsablePassword is false for empty or unusable hashes
func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != "" && !strings.HasPrefix(u.PasswordHash, UnusablePasswordPrefix)
}

// SetUnusablePassword marks the account as externally managed
func (u *User) SetUnusablePassword() *User {
	u.PasswordHash = UnusablePasswordPrefix + uuid.NewString()
	return u
}
