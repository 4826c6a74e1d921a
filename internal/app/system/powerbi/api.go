package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 64 << 10

type embedToken struct {
	Token      string    `json:"token"`
	TokenID    string    `json:"tokenId"`
	Expiration time.Time `json:"expiration"`
}

type report struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	EmbedURL string `json:"embedUrl"`
}

// apiError is the REST API failure body: {"error":{"code":"...","message":"..."}}.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (b *Broker) reportURL(externalID string) string {
	return b.cfg.APIURL + "v1.0/myorg/groups/" + url.PathEscape(b.cfg.WorkspaceID) +
		"/reports/" + url.PathEscape(externalID)
}

func (b *Broker) generateEmbedToken(ctx context.Context, access, externalID string) (*embedToken, error) {
	var out embedToken
	body := map[string]string{"accessLevel": "View"}
	if err := b.call(ctx, StepEmbedToken, http.MethodPost, b.reportURL(externalID)+"/GenerateToken", access, body, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &ProviderError{Step: StepEmbedToken, Message: "response did not include an embed token"}
	}
	return &out, nil
}

func (b *Broker) getReport(ctx context.Context, access, externalID string) (*report, error) {
	var out report
	if err := b.call(ctx, StepReport, http.MethodGet, b.reportURL(externalID), access, nil, &out); err != nil {
		return nil, err
	}
	if out.EmbedURL == "" {
		return nil, &ProviderError{Step: StepReport, Message: "response did not include an embed URL"}
	}
	return &out, nil
}

// call sends one authenticated JSON request and decodes a 2xx body into out.
func (b *Broker) call(ctx context.Context, step, method, target, access string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return &ProviderError{Step: step, Message: err.Error(), Err: err}
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &ProviderError{Step: step, Message: err.Error(), Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return &ProviderError{Step: step, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ProviderError{Step: step, StatusCode: resp.StatusCode, Message: apiMessage(resp.StatusCode, raw)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Step: step, StatusCode: resp.StatusCode,
			Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}
	return nil
}

func apiMessage(status int, raw []byte) string {
	var ae apiError
	if json.Unmarshal(raw, &ae) == nil {
		if ae.Error.Message != "" {
			return ae.Error.Message
		}
		if ae.Error.Code != "" {
			return ae.Error.Code
		}
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		return string(bytes.TrimSpace(raw))
	}
	return http.StatusText(status)
}
