package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voicelyapp/voicely-cli/internal/client/models"
	"github.com/voicelyapp/voicely-cli/internal/logging"
)

// HTTPClient talks to the Voicely REST API. It remembers the token that last
// authorized a successful verification or registration and attaches it to
// subsequent calls, so the onboarding flow does not have to thread it into
// operations that run after the session is established.
type HTTPClient struct {
	baseURL  string
	http     *http.Client
	deviceID string
	session  string
	log      logging.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, deviceID string, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		deviceID: deviceID,
		log:      log,
	}
}

func (c *HTTPClient) RequestLogin(ctx context.Context, email string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.postJSON(ctx, "/v1/login/start", "", map[string]any{"email": email}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("login response missing token")
	}
	return resp.Token, nil
}

func (c *HTTPClient) VerifyCode(ctx context.Context, token, pin string) (*VerifyResult, error) {
	var resp struct {
		Result    string       `json:"result"`
		User      *models.User `json:"user"`
		ExpiresIn int64        `json:"expires_in"`
	}
	err := c.postJSON(ctx, "/v1/login/pin", token, map[string]any{"pin": pin}, &resp)
	if err != nil {
		return nil, err
	}

	switch resp.Result {
	case "success":
		c.session = token
		return &VerifyResult{Disposition: DispositionExistingAccount, User: resp.User, ExpiresIn: resp.ExpiresIn}, nil
	case "register":
		return &VerifyResult{Disposition: DispositionNewAccount}, nil
	default:
		return nil, fmt.Errorf("unexpected verification result %q", resp.Result)
	}
}

func (c *HTTPClient) RegisterAccount(ctx context.Context, token, username, displayName string, image []byte) (*models.User, int64, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("username", username); err != nil {
		return nil, 0, fmt.Errorf("build register request: %w", err)
	}
	if err := w.WriteField("display_name", displayName); err != nil {
		return nil, 0, fmt.Errorf("build register request: %w", err)
	}
	part, err := w.CreateFormFile("profilepic", "profile.png")
	if err != nil {
		return nil, 0, fmt.Errorf("build register request: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, 0, fmt.Errorf("build register request: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, 0, fmt.Errorf("build register request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/login/register", &body)
	if err != nil {
		return nil, 0, fmt.Errorf("build register request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp struct {
		User      *models.User `json:"user"`
		ExpiresIn int64        `json:"expires_in"`
	}
	if err := c.do(req, token, &resp); err != nil {
		return nil, 0, err
	}

	c.session = token
	return resp.User, resp.ExpiresIn, nil
}

func (c *HTTPClient) BulkFollow(ctx context.Context, ids []int64) error {
	return c.postJSON(ctx, "/v1/users/multifollow", c.session, map[string]any{"ids": ids}, nil)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/ping", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(req, "", &resp); err != nil {
		return err
	}
	if !strings.EqualFold(resp.Status, "ok") {
		return ErrUnavailable
	}
	return nil
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path, token string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, token, out)
}

func (c *HTTPClient) do(req *http.Request, token string, out any) error {
	req.Header.Set("X-Device-ID", c.deviceID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.mapTransportError(req, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.mapStatusError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) mapTransportError(req *http.Request, err error) error {
	c.log.Warn(req.Context(), "request failed", "method", req.Method, "path", req.URL.Path, "error", err)

	if errors.Is(err, context.Canceled) {
		return err
	}
	var ue *url.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &ue) {
		return ErrUnavailable
	}
	return fmt.Errorf("http error: %w", err)
}

func (c *HTTPClient) mapStatusError(resp *http.Response) error {
	if resp.StatusCode >= http.StatusInternalServerError {
		return ErrUnavailable
	}

	var body struct {
		Code string `json:"code"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch body.Code {
	case codeIncorrectPin:
		return ErrIncorrectPin
	case codeUsernameTaken:
		return ErrUsernameTaken
	case "":
		return fmt.Errorf("api error: %s", resp.Status)
	default:
		return fmt.Errorf("api error: %s", body.Code)
	}
}
