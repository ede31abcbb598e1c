package models

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"not null"                 json:"name"`
	Username     string `gorm:"uniqueIndex;not null"     json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
}

// RefreshToken is one issued refresh token. Token holds the SHA-256 digest
// of the signed value.
type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"           json:"id"`
	UserID    uint   `gorm:"index;not null"       json:"user_id"`
	Token     string `gorm:"uniqueIndex;not null" json:"-"`
	JTI       string `gorm:"uniqueIndex;not null" json:"jti"`
	ExpiresAt int64  `gorm:"index;not null"       json:"expires_at"`
}

// BlacklistEntry revokes an access token by jti until Expiry, the token's
// own expiry in Unix seconds.
type BlacklistEntry struct {
	JTI    string `gorm:"primaryKey"     json:"jti"`
	Token  string `gorm:"not null"       json:"-"`
	UserID uint   `gorm:"index;not null" json:"user_id"`
	Expiry int64  `gorm:"index;not null" json:"expiry"`
}

func (BlacklistEntry) TableName() string { return "token_blacklist" }

func All() []any {
	return []any{&User{}, &RefreshToken{}, &BlacklistEntry{}}
}
