package models

// Credential is the long-lived session credential persisted once onboarding
// completes. ExpiresAt is absolute epoch seconds, computed from the relative
// lifetime reported by the server at the moment the credential was issued.
type Credential struct {
	Token     string
	ExpiresAt int64
	User      User
}
