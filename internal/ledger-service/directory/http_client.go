package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/radieske/stream-wager-ledger/internal/ledger-service/errs"
)

// HTTPClient consulta o serviço de perfis: GET {BaseURL}/users/{userId}
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPClient(base string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(base, "/"),
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *HTTPClient) ResolveName(ctx context.Context, userID string) (Name, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return Name{}, fmt.Errorf("build user request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return Name{}, fmt.Errorf("user directory: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return Name{}, fmt.Errorf("user %s: %w", userID, errs.ErrNotFound)
	}
	if res.StatusCode >= 300 {
		return Name{}, fmt.Errorf("user directory http %d", res.StatusCode)
	}
	var out Name
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Name{}, fmt.Errorf("decode user %s: %w", userID, err)
	}
	return out, nil
}
