package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/postwatch/models"
)

func main() {
	apiURL := os.Getenv("POSTWATCH_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}
	c := &client{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  os.Getenv("POSTWATCH_API_KEY"),
		http:    &http.Client{Timeout: 120 * time.Second},
		poll:    2 * time.Second,
	}

	if err := server.ServeStdio(newServer(c)); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(c *client) *server.MCPServer {
	s := server.NewMCPServer(
		"postwatch",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("extract_post",
		mcp.WithDescription("Check whether a Xiaohongshu, Douyin or Toutiao post is still online and return its current title, author, engagement counts and publish time."),
		mcp.WithString("platform",
			mcp.Required(),
			mcp.Description("Platform of the post"),
			mcp.Enum("xhs", "douyin", "toutiao"),
		),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("URL of the post page"),
		),
		mcp.WithBoolean("download_media",
			mcp.Description("Save the post's image or video on the server (default: false)"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Accept a cached answer up to this many milliseconds old (default: 0, always fetch)"),
		),
	), c.handleExtractPost)

	s.AddTool(mcp.NewTool("refresh_posts",
		mcp.WithDescription("Re-check many posts at once. Returns how many are live, offline or failed, with one line per post."),
		mcp.WithArray("items",
			mcp.Required(),
			mcp.Description(`Posts to check, e.g. [{"platform":"xhs","url":"https://www.xiaohongshu.com/explore/..."}]`),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"platform": map[string]any{"type": "string"},
					"url":      map[string]any{"type": "string"},
				},
				"required": []string{"platform", "url"},
			}),
		),
	), c.handleRefreshPosts)

	s.AddTool(mcp.NewTool("pool_status",
		mcp.WithDescription("Report the browser identity pool: workers, free concurrency slots, per-identity use and reset counts."),
	), c.handlePoolStatus)

	return s
}

// client talks to the postwatch HTTP API.
type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	poll    time.Duration
}

func (c *client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	return nil
}

func (c *client) handleExtractPost(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	platformName, err := request.RequireString("platform")
	if err != nil {
		return mcp.NewToolResultError("platform is required"), nil
	}
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}

	payload := models.ExtractRequest{
		URL:           url,
		DownloadMedia: request.GetBool("download_media", false),
		MaxAge:        request.GetInt("max_age", 0),
	}

	var env models.Envelope
	if err := c.do(ctx, http.MethodPost, "/api/v1/extract/"+platformName, payload, &env); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatEnvelope(env)), nil
}

func (c *client) handleRefreshPosts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, ok := request.GetArguments()["items"]
	if !ok {
		return mcp.NewToolResultError("items is required"), nil
	}
	var items []models.BatchItem
	if b, err := json.Marshal(raw); err != nil || json.Unmarshal(b, &items) != nil || len(items) == 0 {
		return mcp.NewToolResultError("items must be a non-empty array of {platform, url}"), nil
	}

	var accepted models.BatchResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/batch", models.BatchRequest{Items: items}, &accepted); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if accepted.ID == "" {
		return mcp.NewToolResultError("batch job creation failed"), nil
	}

	status, err := c.waitBatch(ctx, accepted.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("polling batch job failed: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Batch %s: %s, %d live, %d offline, %d failed of %d\n",
		status.ID, status.Status, status.Live, status.Offline, status.Failed, status.Total)
	for i, env := range status.Results {
		if env == nil {
			fmt.Fprintf(&sb, "[%d] pending %s\n", i+1, items[i].URL)
			continue
		}
		fmt.Fprintf(&sb, "[%d] %d %s %s\n", i+1, env.Code, items[i].URL, env.Message)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// waitBatch polls until the job leaves the processing state or ctx is done.
func (c *client) waitBatch(ctx context.Context, id string) (models.BatchStatusResponse, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return models.BatchStatusResponse{}, ctx.Err()
		case <-ticker.C:
			var status models.BatchStatusResponse
			if err := c.do(ctx, http.MethodGet, "/api/v1/batch/"+id, nil, &status); err != nil {
				return status, err
			}
			if status.Status != "processing" {
				return status, nil
			}
		}
	}
}

func (c *client) handlePoolStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats models.PoolStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/pool", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Workers: %d, max concurrency: %d, active: %d, free slots: %d, resets: %d\n",
		stats.Workers, stats.MaxConcurrency, stats.Active, stats.Available, stats.Resets)
	for _, id := range stats.Identities {
		state := "idle"
		if id.Busy {
			state = "busy"
		}
		fmt.Fprintf(&sb, "- %s: %s, uses %d, resets %d, recent [%s]\n",
			id.Profile, state, id.Uses, id.Resets, strings.Join(id.History, " "))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func formatEnvelope(env models.Envelope) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Code: %d (%s)\n", env.Code, env.Message)

	d := env.Data
	line := func(label string, v *string) {
		if v != nil && *v != "" {
			fmt.Fprintf(&sb, "%s: %s\n", label, *v)
		}
	}
	count := func(label string, v *int64) {
		if v != nil {
			fmt.Fprintf(&sb, "%s: %d\n", label, *v)
		}
	}

	line("Platform", d.WebName)
	line("URL", d.URL)
	line("Title", d.Title)
	line("Author", d.Author)
	line("Published", d.PublishTime)
	count("Likes", d.PraiseCount)
	count("Comments", d.ReplyCount)
	count("Shares", d.ForwardCount)
	count("Views", d.VisitCount)
	count("Author fans", d.AuthorFansCount)
	line("Media type", d.MediaType)
	line("Media", d.MediaURLs)
	line("Content", d.Content)
	return sb.String()
}
