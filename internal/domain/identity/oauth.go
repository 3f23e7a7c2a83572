package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	UserInfoURL  string
	// Endpoint defaults to Google.
	Endpoint oauth2.Endpoint
}

// OAuthProvider implements Federated with the authorization-code flow.
type OAuthProvider struct {
	conf        *oauth2.Config
	userInfoURL string
}

func NewOAuthProvider(cfg OAuthConfig) *OAuthProvider {
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	userInfo := cfg.UserInfoURL
	if userInfo == "" {
		userInfo = defaultUserInfoURL
	}
	return &OAuthProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: endpoint,
		},
		userInfoURL: userInfo,
	}
}

func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

type googleUser struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// Exchange trades the authorization code for a token and loads the profile.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*Session, error) {
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, internalError("Provider sign in", fmt.Errorf("code exchange: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, internalError("Provider sign in", err)
	}
	resp, err := p.conf.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, internalError("Provider sign in", fmt.Errorf("userinfo: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, internalError("Provider sign in", fmt.Errorf("read userinfo: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, internalError("Provider sign in", fmt.Errorf("userinfo status %d", resp.StatusCode))
	}

	var gu googleUser
	if err := json.Unmarshal(body, &gu); err != nil {
		return nil, internalError("Provider sign in", fmt.Errorf("decode userinfo: %w", err))
	}
	name := strings.TrimSpace(gu.Name)
	if name == "" {
		name = strings.TrimSpace(gu.GivenName + " " + gu.FamilyName)
	}
	return &Session{
		UserID:      ProviderGoogle + ":" + gu.ID,
		Email:       normalizeEmail(gu.Email),
		DisplayName: name,
		Provider:    ProviderGoogle,
	}, nil
}
