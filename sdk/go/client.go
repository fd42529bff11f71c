package gymgatesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Gymgate HTTP API client, intended for kiosk and
// turnstile integrations.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// CheckInResult is the three-way check-in outcome. Decision tags which of
// the optional sections is present.
type CheckInResult struct {
	Decision string   `json:"decision"`
	Grant    *Grant   `json:"grant,omitempty"`
	Options  []Option `json:"options,omitempty"`
	Denial   *Denial  `json:"denial,omitempty"`
}

// Grant describes a committed admission.
type Grant struct {
	PersonName       string `json:"person_name"`
	PhotoRef         string `json:"photo_ref,omitempty"`
	Discipline       string `json:"discipline"`
	EntitlementType  string `json:"entitlement_type"`
	ClassName        string `json:"class_name,omitempty"`
	ClassStartsAt    string `json:"class_starts_at,omitempty"`
	RemainingCredits *int   `json:"remaining_credits,omitempty"`
}

// Option is one disambiguation choice. Retry the check-in with the
// option's DisciplineID to take it.
type Option struct {
	Kind             string `json:"kind"`
	DisciplineID     string `json:"discipline_id"`
	Label            string `json:"label"`
	Detail           string `json:"detail,omitempty"`
	ClassStartsAt    string `json:"class_starts_at,omitempty"`
	RemainingCredits *int   `json:"remaining_credits,omitempty"`
}

// Denial carries a machine reason and a user-facing message for the
// kiosk display.
type Denial struct {
	Reason      string `json:"reason"`
	Message     string `json:"message"`
	Discipline  string `json:"discipline,omitempty"`
	ScheduledAt string `json:"scheduled_at,omitempty"`
}

// AccessLogEntry is one audit row per admission attempt.
type AccessLogEntry struct {
	ID             int64  `json:"id"`
	TS             string `json:"ts"`
	PersonID       string `json:"person_id,omitempty"`
	CredentialHint string `json:"credential_hint,omitempty"`
	Outcome        string `json:"outcome"`
	Reason         string `json:"reason,omitempty"`
	Discipline     string `json:"discipline,omitempty"`
	Detail         string `json:"detail,omitempty"`
}

// MemberToken is a short-lived credential usable at the door.
type MemberToken struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CheckIn runs an automatic admission attempt for a credential.
func (c *Client) CheckIn(ctx context.Context, credential string) (CheckInResult, error) {
	return c.checkIn(ctx, credential, "")
}

// CheckInDiscipline runs an explicit attempt naming the discipline, as
// after a disambiguation prompt.
func (c *Client) CheckInDiscipline(ctx context.Context, credential, disciplineID string) (CheckInResult, error) {
	return c.checkIn(ctx, credential, disciplineID)
}

func (c *Client) checkIn(ctx context.Context, credential, disciplineID string) (CheckInResult, error) {
	body := map[string]any{"credential": credential}
	if disciplineID != "" {
		body["discipline_id"] = disciplineID
	}
	var resp CheckInResult
	err := c.do(ctx, http.MethodPost, "v0/check-in", body, &resp)
	return resp, err
}

// IssueToken mints a short-lived member token for a person.
func (c *Client) IssueToken(ctx context.Context, personID string) (MemberToken, error) {
	var resp MemberToken
	err := c.do(ctx, http.MethodPost, "v0/tokens", map[string]any{"person_id": personID}, &resp)
	return resp, err
}

// AccessLog returns recent admission attempts, newest first.
func (c *Client) AccessLog(ctx context.Context, limit int, personID string) ([]AccessLogEntry, error) {
	endpoint := "v0/access-log"
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprint(limit))
	}
	if personID != "" {
		params.Set("person_id", personID)
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp []AccessLogEntry
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
