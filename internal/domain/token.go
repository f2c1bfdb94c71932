package domain

// Token purposes. Each user holds at most one live token per purpose.
const (
	PurposeEmailVerify   = "email_verify"
	PurposePasswordReset = "password_reset"
)

// Token is a single-use, time-bound secret backing the email-verification
// and password-reset flows.
// PK: token (the opaque random value). GSI: user-purpose-index (user_id, purpose).
// A token is live iff ConsumedAt == 0 and now < ExpiresAt.
type Token struct {
	Token      string `json:"-" dynamodbav:"token"`
	UserID     string `json:"user_id" dynamodbav:"user_id"`
	Purpose    string `json:"purpose" dynamodbav:"purpose"`
	CreatedAt  int64  `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt  int64  `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds
	ConsumedAt int64  `json:"consumed_at,omitempty" dynamodbav:"consumed_at,omitempty"`
}
