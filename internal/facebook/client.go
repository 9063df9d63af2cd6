// Package facebook publishes photo posts to a Facebook page via the Graph API.
package facebook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rewired-gh/quakewatch/internal/models"
)

const (
	DefaultGraphURL   = "https://graph.facebook.com"
	DefaultAPIVersion = "v18.0"
)

type Config struct {
	GraphURL   string
	APIVersion string
	PageID     string
	PageToken  string
	Timeout    time.Duration
}

type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(config Config) (*Client, error) {
	if config.PageID == "" || config.PageToken == "" {
		return nil, errors.New("facebook page id and token are required")
	}
	if config.GraphURL == "" {
		config.GraphURL = DefaultGraphURL
	}
	if config.APIVersion == "" {
		config.APIVersion = DefaultAPIVersion
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

type photoResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
	Error  *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// PostImage uploads imagePath with caption to the page's photos edge.
func (c *Client) PostImage(ctx context.Context, imagePath, caption string) (models.PostRef, error) {
	body, contentType, err := buildForm(imagePath, caption, c.config.PageToken)
	if err != nil {
		return models.PostRef{}, fmt.Errorf("%w: facebook: %v", models.ErrChannelPost, err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/photos",
		strings.TrimRight(c.config.GraphURL, "/"), c.config.APIVersion, c.config.PageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return models.PostRef{}, fmt.Errorf("%w: facebook: %v", models.ErrChannelPost, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.PostRef{}, fmt.Errorf("%w: facebook: %v", models.ErrChannelPost, err)
	}
	defer resp.Body.Close()

	var result photoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return models.PostRef{}, fmt.Errorf("%w: facebook: status %d, undecodable response: %v",
			models.ErrChannelPost, resp.StatusCode, err)
	}
	if result.Error != nil {
		return models.PostRef{}, fmt.Errorf("%w: facebook: %s (%s %d)",
			models.ErrChannelPost, result.Error.Message, result.Error.Type, result.Error.Code)
	}

	// post_id is "page_post"; id alone is the photo object id.
	id := result.PostID
	if id == "" {
		id = result.ID
	}
	if resp.StatusCode/100 != 2 || id == "" {
		return models.PostRef{}, fmt.Errorf("%w: facebook: status %d without post id", models.ErrChannelPost, resp.StatusCode)
	}
	return c.parsePostID(id), nil
}

func (c *Client) parsePostID(id string) models.PostRef {
	if page, post, ok := strings.Cut(id, "_"); ok && page != "" && post != "" {
		return models.PostRef{PageID: page, PostID: post}
	}
	return models.PostRef{PageID: c.config.PageID, PostID: id}
}

func buildForm(imagePath, caption, token string) (io.Reader, string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("source", filepath.Base(imagePath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	for k, v := range map[string]string{"caption": caption, "access_token": token} {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
