package domain

// WebAuthn ceremony types.
const (
	CeremonyRegistration   = "registration"
	CeremonyAuthentication = "authentication"
)

// Challenge binds the two steps of a WebAuthn ceremony together.
// PK: challenge (the opaque random value). Lifecycle is issued -> consumed
// or issued -> expired; both end states are terminal.
type Challenge struct {
	Challenge string `json:"challenge" dynamodbav:"challenge"`
	UserID    string `json:"user_id" dynamodbav:"user_id"`
	Ceremony  string `json:"ceremony" dynamodbav:"ceremony"` // "registration" | "authentication"
	CreatedAt int64  `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds, creation+5m
	Used      bool   `json:"used" dynamodbav:"used"`
}
