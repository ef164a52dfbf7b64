package types

// OktaUserAuthn is the decoded body of an Okta authn API response. The same
// shape is returned by the initial /api/v1/authn call and by every factor
// verify endpoint, so one struct is threaded through the whole negotiation.
type OktaUserAuthn struct {
	StateToken   string                `json:"stateToken"`
	SessionToken string                `json:"sessionToken"`
	ExpiresAt    string                `json:"expiresAt"`
	Status       string                `json:"status"`
	FactorResult string                `json:"factorResult"`
	Links        OktaUserAuthnLinks    `json:"_links"`
	Embedded     OktaUserAuthnEmbedded `json:"_embedded"`
}

type OktaUserAuthnLinks struct {
	Next OktaUserAuthnLink `json:"next"`
}

type OktaUserAuthnLink struct {
	Href string `json:"href"`
}

type OktaUserAuthnEmbedded struct {
	Factors []OktaUserAuthnFactor `json:"factors"`
	Factor  OktaUserAuthnFactor   `json:"factor"`

	// Challenge is only present on webauthn MFA_CHALLENGE responses.
	Challenge OktaUserAuthnChallenge `json:"challenge"`
}

type OktaUserAuthnFactor struct {
	Id         string                      `json:"id"`
	FactorType string                      `json:"factorType"`
	Provider   string                      `json:"provider"`
	VendorName string                      `json:"vendorName"`
	Profile    OktaUserAuthnFactorProfile  `json:"profile"`
	Embedded   OktaUserAuthnFactorEmbedded `json:"_embedded"`
	Links      OktaUserAuthnFactorLinks    `json:"_links"`
}

type OktaUserAuthnFactorLinks struct {
	Verify OktaUserAuthnLink `json:"verify"`
}

type OktaUserAuthnFactorProfile struct {
	CredentialId string `json:"credentialId"`
	AppId        string `json:"appId"`
	Version      string `json:"version"`
}

type OktaUserAuthnFactorEmbedded struct {
	Challenge OktaUserAuthnChallenge `json:"challenge"`
}

type OktaUserAuthnChallenge struct {
	Challenge      string `json:"challenge"`
	Nonce          string `json:"nonce"`
	TimeoutSeconds int    `json:"timeoutSeconds"`

	// CorrectAnswer is the number-matching answer Okta Verify shows the
	// user for some push challenges. Zero when absent.
	CorrectAnswer int `json:"correctAnswer"`
}

// OktaStateToken is the request body posted to factor verify endpoints.
// PassCode is omitted when empty, which Okta treats as "issue the challenge".
type OktaStateToken struct {
	StateToken string `json:"stateToken"`
	PassCode   string `json:"passCode,omitempty"`
}

// OktaWebauthnAssertion is the request body that completes a webauthn
// challenge. The three assertion fields are standard padded base64.
type OktaWebauthnAssertion struct {
	StateToken        string `json:"stateToken"`
	AuthenticatorData string `json:"authenticatorData"`
	ClientData        string `json:"clientData"`
	SignatureData     string `json:"signatureData"`
}

type OktaErrorResponse struct {
	ErrorCode    string           `json:"errorCode"`
	ErrorSummary string           `json:"errorSummary"`
	ErrorId      string           `json:"errorId"`
	ErrorCauses  []OktaErrorCause `json:"errorCauses"`
}

type OktaErrorCause struct {
	ErrorSummary string `json:"errorSummary"`
}
