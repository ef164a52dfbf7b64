// Package saml sequences the GlobalProtect prelogin exchange: it turns an
// Okta session token into the gateway credentials the VPN client consumes.
package saml

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/openconnect-tools/gp-okta/lib/client/types"
)

const (
	samlRequestField  = "SAMLRequest"
	samlResponseField = "SAMLResponse"

	usernameHeader       = "saml-username"
	preloginCookieHeader = "prelogin-cookie"
)

// Authenticator yields an identity-provider session token. Implemented by
// client.OktaClient.
type Authenticator interface {
	AuthenticateUser() error
	GetSessionToken() string
}

// GatewayCredential is the artifact the VPN client consumes: a username
// derived by the gateway and an opaque cookie standing in for the password.
type GatewayCredential struct {
	Username       string
	PreloginCookie string
}

// Flow drives the prelogin sequence against one gateway. It shares its
// http.Client (and cookie jar) with the Okta client.
type Flow struct {
	client  *http.Client
	gateway string
}

func NewFlow(httpClient *http.Client, gateway string) *Flow {
	return &Flow{client: httpClient, gateway: gateway}
}

type preloginResponse struct {
	XMLName     xml.Name
	SAMLRequest string `xml:"saml-request"`
}

// Prelogin fetches the gateway's prelogin document and returns the URL of
// the embedded identity-provider request, query string included.
func (f *Flow) Prelogin() (string, error) {
	res, err := f.post(fmt.Sprintf("https://%s/ssl-vpn/prelogin.esp", f.gateway), nil)
	if err != nil {
		return "", err
	}

	var prelogin preloginResponse
	if err := xml.Unmarshal(res, &prelogin); err != nil {
		return "", fmt.Errorf("parsing prelogin response: %w", err)
	}
	if prelogin.SAMLRequest == "" {
		return "", fmt.Errorf("prelogin response carries no saml-request: %w", types.ErrProtocolViolation)
	}

	reqHTML, err := base64.StdEncoding.DecodeString(strings.TrimSpace(prelogin.SAMLRequest))
	if err != nil {
		return "", fmt.Errorf("decoding saml-request: %w", err)
	}

	action, fields, err := ExtractForm(reqHTML)
	if err != nil {
		return "", err
	}
	if _, ok := fields[samlRequestField]; !ok {
		return "", fmt.Errorf("prelogin form carries no %s field: %w", samlRequestField, types.ErrProtocolViolation)
	}

	values := url.Values{}
	for name, value := range fields {
		values.Set(name, value)
	}
	return action + "?" + values.Encode(), nil
}

// Domain extracts the identity provider's host from the prelogin request
// URL; it doubles as the webauthn relying-party id.
func Domain(samlReqURL string) (string, error) {
	u, err := url.Parse(samlReqURL)
	if err != nil {
		return "", fmt.Errorf("parsing saml request url: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("saml request url has no host: %w", types.ErrProtocolViolation)
	}
	return u.Hostname(), nil
}

// Authenticate establishes the provider-side tracking cookie, runs the
// factor negotiation, and exchanges the session token for the SAML response
// form. The session token is passed to the redirect endpoint unchanged.
func (f *Flow) Authenticate(auth Authenticator, samlReqURL string) (string, map[string]string, error) {
	// Just to set the DT cookie; the body is irrelevant.
	if _, err := f.get(samlReqURL); err != nil {
		return "", nil, err
	}

	if err := auth.AuthenticateUser(); err != nil {
		return "", nil, err
	}

	domain, err := Domain(samlReqURL)
	if err != nil {
		return "", nil, err
	}

	redirect := url.URL{
		Scheme: "https",
		Host:   domain,
		Path:   "/login/sessionCookieRedirect",
		RawQuery: url.Values{
			"token":       []string{auth.GetSessionToken()},
			"redirectUrl": []string{samlReqURL},
		}.Encode(),
	}

	body, err := f.get(redirect.String())
	if err != nil {
		return "", nil, err
	}

	action, fields, err := ExtractForm(body)
	if err != nil {
		return "", nil, err
	}
	if _, ok := fields[samlResponseField]; !ok {
		return "", nil, fmt.Errorf("session redirect form carries no %s field: %w", samlResponseField, types.ErrProtocolViolation)
	}
	return action, fields, nil
}

// Complete submits the SAML response to the gateway and reads the credential
// pair off the response headers.
func (f *Flow) Complete(respURL string, fields map[string]string) (*GatewayCredential, error) {
	values := url.Values{}
	for name, value := range fields {
		values.Set(name, value)
	}

	res, err := f.client.PostForm(respURL, values)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, types.ErrTransport)
	}
	defer res.Body.Close()
	if err := check(res); err != nil {
		return nil, err
	}

	username := res.Header.Get(usernameHeader)
	cookie := res.Header.Get(preloginCookieHeader)
	if username == "" || cookie == "" {
		return nil, fmt.Errorf("gateway response missing %s or %s header: %w",
			usernameHeader, preloginCookieHeader, types.ErrProtocolViolation)
	}

	log.Debugf("Gateway derived username %q", username)
	return &GatewayCredential{Username: username, PreloginCookie: cookie}, nil
}

func (f *Flow) post(rawURL string, body io.Reader) ([]byte, error) {
	res, err := f.client.Post(rawURL, "application/x-www-form-urlencoded", body)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, types.ErrTransport)
	}
	defer res.Body.Close()
	if err := check(res); err != nil {
		return nil, err
	}
	return io.ReadAll(res.Body)
}

func (f *Flow) get(rawURL string) ([]byte, error) {
	log.Debug("GET ", rawURL)
	res, err := f.client.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, types.ErrTransport)
	}
	defer res.Body.Close()
	if err := check(res); err != nil {
		return nil, err
	}
	return io.ReadAll(res.Body)
}

func check(res *http.Response) error {
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("%s returned %d: %w", res.Request.URL, res.StatusCode, types.ErrTransport)
	}
	return nil
}
