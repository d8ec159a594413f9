package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// NewHTTPCredentialProvider returns a CredentialProvider that fetches an
// ephemeral (token, region) pair from a token-issuing endpoint. The apiKey is
// optional; when set it is sent as a bearer header.
func NewHTTPCredentialProvider(endpoint, apiKey string) CredentialProvider {
	client := &http.Client{Timeout: 5 * time.Second}

	return func(ctx context.Context) (Credential, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return Credential{}, fmt.Errorf("build token request: %w", err)
		}
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}

		resp, err := client.Do(req)
		if err != nil {
			return Credential{}, fmt.Errorf("fetch token: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return Credential{}, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
		}

		var body struct {
			Token  string `json:"token"`
			Region string `json:"region"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return Credential{}, fmt.Errorf("decode token response: %w", err)
		}
		if body.Token == "" || body.Region == "" {
			return Credential{}, fmt.Errorf("token endpoint returned empty token or region")
		}
		return Credential{Token: body.Token, Region: body.Region}, nil
	}
}
