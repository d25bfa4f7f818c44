// Package manage is the client of the deploy-manager management API and the
// error contract shared with the server.
package manage

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

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
)

// Client talks to one management API. It satisfies session.BuildRemote and
// session.RestoreRemote.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the timeout of each request. Builds can take minutes.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for the API mounted at baseURL, for example
// "http://deploy.internal:8080/manage".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VersionInfo is the server build information.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// ListInstances returns every instance keyed by name.
func (c *Client) ListInstances(ctx context.Context) (map[string]models.Instance, error) {
	var out map[string]models.Instance
	if err := c.do(ctx, http.MethodGet, "/api/instances", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetInstance returns one instance.
func (c *Client) GetInstance(ctx context.Context, name string) (*models.Instance, error) {
	var out models.Instance
	if err := c.do(ctx, http.MethodGet, instancePath(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateInstance stores a new instance.
func (c *Client) CreateInstance(ctx context.Context, name string, record models.InstanceDescriptor) (*models.Instance, error) {
	var out models.Instance
	req := models.CreateInstanceRequest{Name: name, Record: record.Record()}
	if err := c.do(ctx, http.MethodPost, "/api/instances", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateInstance replaces the record of an instance.
func (c *Client) UpdateInstance(ctx context.Context, name string, record models.InstanceDescriptor) (*models.Instance, error) {
	var out models.Instance
	req := models.UpdateInstanceRequest{Record: record.Record()}
	if err := c.do(ctx, http.MethodPut, instancePath(name), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteInstance removes an instance.
func (c *Client) DeleteInstance(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, instancePath(name), nil, nil)
}

// InstanceStatus fetches the repository state shown before a build.
func (c *Client) InstanceStatus(ctx context.Context, name string) (*models.InstanceStatus, error) {
	var out models.InstanceStatus
	if err := c.do(ctx, http.MethodGet, instancePath(name)+"/build", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Build runs a build and waits for its result.
func (c *Client) Build(ctx context.Context, req *models.BuildRequest) (*models.JobResult, error) {
	var out models.JobResult
	if err := c.do(ctx, http.MethodPost, instancePath(req.Name)+"/build", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Backups lists the backup ids of an instance, newest first.
func (c *Client) Backups(ctx context.Context, name string) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, instancePath(name)+"/backups", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Restore restores a backup and waits for the result.
func (c *Client) Restore(ctx context.Context, req *models.RestoreRequest) (*models.JobResult, error) {
	var out models.JobResult
	if err := c.do(ctx, http.MethodPost, instancePath(req.Name)+"/restore", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Jobs lists recent jobs, optionally for one instance.
func (c *Client) Jobs(ctx context.Context, instance string, limit int) ([]models.Job, error) {
	q := url.Values{}
	if instance != "" {
		q.Set("instance", instance)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := "/api/jobs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []models.Job
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Job returns one job.
func (c *Client) Job(ctx context.Context, id string) (*models.Job, error) {
	var out models.Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Version returns the server build information.
func (c *Client) Version(ctx context.Context) (*VersionInfo, error) {
	var out VersionInfo
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRest returns every backend service instance keyed by name.
func (c *Client) ListRest(ctx context.Context) (map[string]models.RestInstance, error) {
	var out map[string]models.RestInstance
	if err := c.do(ctx, http.MethodGet, "/api/rest", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRest returns one backend service instance.
func (c *Client) GetRest(ctx context.Context, name string) (*models.RestInstance, error) {
	var out models.RestInstance
	if err := c.do(ctx, http.MethodGet, restPath(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRest stores a new backend service instance.
func (c *Client) CreateRest(ctx context.Context, name string, record models.RestDescriptor) (*models.RestInstance, error) {
	var out models.RestInstance
	req := models.CreateRestRequest{Name: name, Record: record.Record()}
	if err := c.do(ctx, http.MethodPost, "/api/rest", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRest replaces the record of a backend service instance.
func (c *Client) UpdateRest(ctx context.Context, name string, record models.RestDescriptor) (*models.RestInstance, error) {
	var out models.RestInstance
	req := models.UpdateRestRequest{Record: record.Record()}
	if err := c.do(ctx, http.MethodPut, restPath(name), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteRest removes a backend service instance.
func (c *Client) DeleteRest(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, restPath(name), nil, nil)
}

// RestStatus fetches the repository state and supervisord programs of a
// backend service instance.
func (c *Client) RestStatus(ctx context.Context, name string) (*models.RestStatus, error) {
	var out models.RestStatus
	if err := c.do(ctx, http.MethodGet, restPath(name)+"/build", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func instancePath(name string) string {
	return "/api/instances/" + url.PathEscape(name)
}

func restPath(name string) string {
	return "/api/rest/" + url.PathEscape(name)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Code = CodeGeneric
			apiErr.Message = strings.TrimSpace(string(data))
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode)
			}
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
