package domain

import "time"

// Credential is a registered WebAuthn authenticator.
// PK: credential_id. GSI: user_id-index.
// SignCount is monotonically non-decreasing; a reported counter that does not
// exceed the stored one indicates a cloned or replayed authenticator.
type Credential struct {
	CredentialID string    `json:"credential_id" dynamodbav:"credential_id"`
	UserID       string    `json:"user_id" dynamodbav:"user_id"`
	PublicKey    string    `json:"-" dynamodbav:"public_key"`
	SignCount    uint32    `json:"sign_count" dynamodbav:"sign_count"`
	Name         string    `json:"name,omitempty" dynamodbav:"name"`
	Transports   []string  `json:"transports,omitempty" dynamodbav:"transports"`
	AAGUID       string    `json:"aaguid,omitempty" dynamodbav:"aaguid"`
	CreatedAt    time.Time `json:"created_at" dynamodbav:"created_at"`
	LastUsedAt   time.Time `json:"last_used_at" dynamodbav:"last_used_at"`
}
