package farmapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// Client talks to the farm HTTP APIs (controlplane on :8080, agent on :3001).
// One Client is bound to one base URL; which method group applies depends on
// which daemon the URL points at.
type Client struct {
	c *resty.Client
}

func New(baseURL string) *Client {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second)
	return &Client{c: c}
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error: status=%d message=%s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the remote API.
func IsNotFound(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	var eb errorBody
	resp, err := c.c.R().SetContext(ctx).SetResult(out).SetError(&eb).Get(path)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	if resp.IsError() {
		return &apiError{Status: resp.StatusCode(), Message: eb.Error}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var eb errorBody
	req := c.c.R().SetContext(ctx).SetError(&eb)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Post(path)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	if resp.IsError() {
		return &apiError{Status: resp.StatusCode(), Message: eb.Error}
	}
	return nil
}
