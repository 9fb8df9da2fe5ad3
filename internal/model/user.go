package model

import "time"

// User represents an application user record as stored in the `users`
// table.  Staff users may modify the catalog; every authenticated user may
// browse it and book tickets.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email (lower-cased, unique)
    PasswordHash string    // users.password_hash (bcrypt)
    IsStaff      bool      // users.is_staff
    CreatedAt    time.Time // users.created_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is never stored, only its SHA-256 hash.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
}
