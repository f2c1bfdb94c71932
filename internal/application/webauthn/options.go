package webauthn

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/go-auth-api/internal/domain"
)

// COSE algorithm identifiers offered to authenticators.
const (
	algES256 = -7
	algRS256 = -257
)

const ceremonyTimeoutMillis = 60000

// RelyingParty identifies this service to authenticators.
type RelyingParty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CredentialDescriptor references a registered credential in option payloads.
type CredentialDescriptor struct {
	Type       string   `json:"type"` // always "public-key"
	ID         string   `json:"id"`
	Transports []string `json:"transports,omitempty"`
}

// PubKeyCredParam advertises an acceptable public-key algorithm.
type PubKeyCredParam struct {
	Type string `json:"type"`
	Alg  int    `json:"alg"`
}

// UserEntity is the user block of registration options.
type UserEntity struct {
	ID          string `json:"id"` // base64url user handle
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// AuthenticatorSelection mirrors the WebAuthn authenticatorSelection block.
type AuthenticatorSelection struct {
	RequireResidentKey bool   `json:"requireResidentKey"`
	ResidentKey        string `json:"residentKey"`
	UserVerification   string `json:"userVerification"`
}

// RegistrationOptions is the payload for the first registration step.
type RegistrationOptions struct {
	Challenge              string                 `json:"challenge"`
	RP                     RelyingParty           `json:"rp"`
	User                   UserEntity             `json:"user"`
	PubKeyCredParams       []PubKeyCredParam      `json:"pubKeyCredParams"`
	Timeout                int                    `json:"timeout"`
	Attestation            string                 `json:"attestation"`
	AuthenticatorSelection AuthenticatorSelection `json:"authenticatorSelection"`
	ExcludeCredentials     []CredentialDescriptor `json:"excludeCredentials,omitempty"`
}

// AuthenticationOptions is the payload for the first authentication step.
type AuthenticationOptions struct {
	Challenge        string                 `json:"challenge"`
	RPID             string                 `json:"rpId"`
	Timeout          int                    `json:"timeout"`
	AllowCredentials []CredentialDescriptor `json:"allowCredentials"`
	UserVerification string                 `json:"userVerification"`
}

// CredentialResponse is the client's answer to either ceremony step.
type CredentialResponse struct {
	ID       string `json:"id"`
	RawID    string `json:"rawId"`
	Type     string `json:"type"`
	Response struct {
		ClientDataJSON    string   `json:"clientDataJSON"`
		AttestationObject string   `json:"attestationObject,omitempty"`
		AuthenticatorData string   `json:"authenticatorData,omitempty"`
		Signature         string   `json:"signature,omitempty"`
		UserHandle        string   `json:"userHandle,omitempty"`
		Transports        []string `json:"transports,omitempty"`
	} `json:"response"`
}

// clientData is the decoded clientDataJSON payload.
type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

// challengeFromResponse extracts the challenge value the authenticator signed
// over from the client's base64url-encoded clientDataJSON.
func challengeFromResponse(resp *CredentialResponse) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(resp.Response.ClientDataJSON)
	if err != nil {
		// Some clients pad their encoding.
		raw, err = base64.URLEncoding.DecodeString(resp.Response.ClientDataJSON)
		if err != nil {
			return "", fmt.Errorf("decode clientDataJSON: %w", domain.ErrBadRequest)
		}
	}
	var cd clientData
	if err := json.Unmarshal(raw, &cd); err != nil {
		return "", fmt.Errorf("parse clientDataJSON: %w", domain.ErrBadRequest)
	}
	if cd.Challenge == "" {
		return "", fmt.Errorf("clientDataJSON missing challenge: %w", domain.ErrBadRequest)
	}
	return cd.Challenge, nil
}

// signCountFromResponse pulls the authenticator's signature counter out of
// the assertion's authenticatorData (big-endian uint32 at bytes 33..37).
// Returns ok=false when the response carries no usable authenticator data.
func signCountFromResponse(resp *CredentialResponse) (uint32, bool) {
	if resp.Response.AuthenticatorData == "" {
		return 0, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(resp.Response.AuthenticatorData)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(resp.Response.AuthenticatorData)
		if err != nil {
			return 0, false
		}
	}
	if len(raw) < 37 {
		return 0, false
	}
	return binary.BigEndian.Uint32(raw[33:37]), true
}
