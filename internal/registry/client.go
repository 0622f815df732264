package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"portseal/internal/domain"
)

// Client is the HTTP registry client.
type Client struct {
	Base string
	HTTP *http.Client
}

func NewClient(base string) *Client {
	return &Client{Base: strings.TrimRight(base, "/"), HTTP: http.DefaultClient}
}

var _ domain.PreKeyRegistry = (*Client)(nil)

func (c *Client) Publish(ctx context.Context, b domain.PublishedBundle) error {
	return c.post(ctx, "/v1/bundles", b, nil)
}

func (c *Client) Claim(ctx context.Context, principal domain.PrincipalID) (domain.PreKeyBundle, error) {
	var out domain.PreKeyBundle
	if err := c.post(ctx, "/v1/bundles/"+url.PathEscape(principal.String())+"/claim", struct{}{}, &out); err != nil {
		return domain.PreKeyBundle{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError(path, resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// statusError turns a non-2xx reply back into the domain error the server
// mapped it from.
func statusError(path string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := strings.TrimSpace(string(msg))
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrPrincipalNotFound, path)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrPreKeyExhausted, path)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrMalformedBundle, detail)
	}
	return fmt.Errorf("registry post %s: %s", path, resp.Status)
}
