package model

import "time"

// AccountStatus gates login.
type AccountStatus int

const (
	AccountBanned AccountStatus = 0
	AccountNormal AccountStatus = 1
)

// Account is a password login. Guests never get a row; their player id
// exists only in the token, so their records are orphaned when it expires.
type Account struct {
	ID           int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID     string        `gorm:"uniqueIndex;size:36;not null" json:"player_id"`
	Username     string        `gorm:"uniqueIndex;size:32;not null" json:"username"`
	PasswordHash string        `gorm:"size:64;not null" json:"-"`
	Status       AccountStatus `gorm:"default:1" json:"status"`
	CreatedAt    time.Time     `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt  *time.Time    `json:"last_login_at"`
	LastLoginIP  string        `gorm:"size:45" json:"last_login_ip"`
}

// Banned reports whether logins are refused.
func (a *Account) Banned() bool { return a.Status == AccountBanned }
