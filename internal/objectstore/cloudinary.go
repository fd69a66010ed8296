package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultCloudinaryBaseURL is the Cloudinary Admin API root
const DefaultCloudinaryBaseURL = "https://api.cloudinary.com"

// DefaultResourceTypes covers PDFs (stored as image) and docx/txt (stored as raw)
var DefaultResourceTypes = []string{"image", "raw"}

// CloudinaryConfig configures the Cloudinary provider
type CloudinaryConfig struct {
	CloudName     string
	APIKey        string
	APISecret     string
	ResourceTypes []string
	Prefix        string
	BaseURL       string
	Timeout       time.Duration
}

// Cloudinary lists uploads through the Admin API and downloads them from
// their secure_url.
type Cloudinary struct {
	cfg    CloudinaryConfig
	client *http.Client

	mu      sync.Mutex
	cursors map[string]string // next_cursor per resource type
}

// NewCloudinary creates a Cloudinary provider
func NewCloudinary(cfg CloudinaryConfig) (*Cloudinary, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("cloudinary cloud name, api key and api secret are required")
	}
	if len(cfg.ResourceTypes) == 0 {
		cfg.ResourceTypes = DefaultResourceTypes
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCloudinaryBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Cloudinary{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		cursors: make(map[string]string, len(cfg.ResourceTypes)),
	}, nil
}

func (c *Cloudinary) Name() string { return "cloudinary" }

type cloudinaryResource struct {
	PublicID     string `json:"public_id"`
	Format       string `json:"format"`
	ResourceType string `json:"resource_type"`
	SecureURL    string `json:"secure_url"`
	Bytes        int64  `json:"bytes"`
}

// List fetches the next page of every configured resource type, so limit
// bounds each type separately. Each type pages with its own next_cursor
// and restarts from the first page once Cloudinary stops returning one.
// Cursors only advance when every type was listed successfully.
func (c *Cloudinary) List(ctx context.Context, limit int) ([]Object, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var objects []Object
	next := make(map[string]string, len(c.cfg.ResourceTypes))
	for _, rt := range c.cfg.ResourceTypes {
		page, err := c.listType(ctx, rt, limit, c.cursors[rt])
		if err != nil {
			return nil, err
		}
		next[rt] = page.NextCursor
		for _, r := range page.Resources {
			objects = append(objects, Object{
				Key:    r.PublicID,
				URL:    r.SecureURL,
				Format: r.Format, // empty for raw uploads; FileType falls back to the key
				Size:   r.Bytes,
			})
		}
	}
	c.cursors = next
	return objects, nil
}

type cloudinaryPage struct {
	Resources  []cloudinaryResource `json:"resources"`
	NextCursor string               `json:"next_cursor"`
}

func (c *Cloudinary) listType(ctx context.Context, resourceType string, maxResults int, cursor string) (*cloudinaryPage, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(maxResults))
	if c.cfg.Prefix != "" {
		q.Set("prefix", c.cfg.Prefix)
	}
	if cursor != "" {
		q.Set("next_cursor", cursor)
	}
	endpoint := fmt.Sprintf("%s/v1_1/%s/resources/%s/upload?%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.CloudName), url.PathEscape(resourceType), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.APIKey, c.cfg.APISecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudinary list %s: %w", resourceType, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("cloudinary list %s failed: %s: %s", resourceType, resp.Status, strings.TrimSpace(string(msg)))
	}

	var page cloudinaryPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode cloudinary listing: %w", err)
	}
	return &page, nil
}

// Open downloads the object from its secure URL
func (c *Cloudinary) Open(ctx context.Context, obj Object) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, obj.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", obj.Key, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, obj.URL)
	case resp.StatusCode != http.StatusOK:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download %s failed: %s", obj.Key, resp.Status)
	}
	return resp.Body, nil
}
