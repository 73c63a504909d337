// Package samgov is the SAM.gov opportunities client: notice metadata
// lookup plus attachment download. All calls are rate limited and retry
// transient failures with backoff.
package samgov

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zgr-ai/sow-cli/internal/config"
	"github.com/zgr-ai/sow-cli/internal/model"
	"github.com/zgr-ai/sow-cli/internal/resilience"
)

// ErrNotFound is returned when SAM.gov has no opportunity for the notice ID.
var ErrNotFound = eris.New("samgov: notice not found")

// DefaultBaseURL is the production opportunities search endpoint.
const DefaultBaseURL = "https://api.sam.gov/prod/opportunities/v2/search"

// searchWindowDays bounds the postedFrom/postedTo range the search API
// requires. A year covers any notice still worth analyzing.
const searchWindowDays = 365

// Client is the metadata provider and document fetcher contract.
type Client interface {
	GetOpportunity(ctx context.Context, noticeID string) (*model.NoticeMetadata, error)
	DownloadAttachment(ctx context.Context, ref model.AttachmentRef, destDir string) (string, error)
}

// HTTPClient talks to the real SAM.gov API.
type HTTPClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// New builds an HTTPClient from config. Zero-valued fields get defaults.
func New(cfg config.SAMConfig) *HTTPClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 2
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "sow-cli/1.0"
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	retry.OnRetry = resilience.RetryLogger("samgov", "request")

	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Limit(perSec), 1),
		retry:      retry,
	}
}

// searchResponse is the subset of the v2 search payload we read.
type searchResponse struct {
	TotalRecords      int                 `json:"totalRecords"`
	OpportunitiesData []opportunityRecord `json:"opportunitiesData"`
}

type opportunityRecord struct {
	NoticeID         string   `json:"noticeId"`
	Title            string   `json:"title"`
	FullParentPath   string   `json:"fullParentPathName"`
	NAICSCode        string   `json:"naicsCode"`
	PostedDate       string   `json:"postedDate"`
	ResponseDeadLine string   `json:"responseDeadLine"`
	Description      string   `json:"description"`
	Type             string   `json:"type"`
	UILink           string   `json:"uiLink"`
	ResourceLinks    []string `json:"resourceLinks"`
}

// GetOpportunity looks up one notice by ID via the search endpoint.
func (c *HTTPClient) GetOpportunity(ctx context.Context, noticeID string) (*model.NoticeMetadata, error) {
	if noticeID == "" {
		return nil, eris.New("samgov: notice id is required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "samgov: rate limiter")
	}

	now := time.Now().UTC()
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("noticeid", noticeID)
	params.Set("limit", "1")
	params.Set("postedFrom", now.AddDate(0, 0, -searchWindowDays).Format("01/02/2006"))
	params.Set("postedTo", now.Format("01/02/2006"))

	var search searchResponse
	err := resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		return c.getJSON(ctx, c.baseURL+"?"+params.Encode(), &search)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "samgov: search notice %s", noticeID)
	}
	if search.TotalRecords == 0 || len(search.OpportunitiesData) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "notice %s", noticeID)
	}

	rec := search.OpportunitiesData[0]
	meta := &model.NoticeMetadata{
		NoticeID:         noticeID,
		Title:            rec.Title,
		Agency:           rec.FullParentPath,
		NAICSCode:        rec.NAICSCode,
		PostedDate:       rec.PostedDate,
		ResponseDeadline: rec.ResponseDeadLine,
		Description:      rec.Description,
		ContractType:     rec.Type,
		URL:              rec.UILink,
	}
	for _, link := range rec.ResourceLinks {
		meta.Attachments = append(meta.Attachments, model.AttachmentRef{
			URL:      link,
			Filename: filenameFromURL(link),
		})
	}

	// The search API often returns a noticedesc link instead of the
	// description text itself.
	if strings.HasPrefix(meta.Description, "http") {
		if desc, err := c.fetchDescription(ctx, meta.Description); err != nil {
			zap.L().Warn("notice description fetch failed",
				zap.String("notice_id", noticeID),
				zap.Error(err))
			meta.Description = ""
		} else {
			meta.Description = desc
		}
	}

	return meta, nil
}

func (c *HTTPClient) fetchDescription(ctx context.Context, link string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "samgov: rate limiter")
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", eris.Wrap(err, "samgov: parse description link")
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	u.RawQuery = q.Encode()

	var body struct {
		Description string `json:"description"`
	}
	err = resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		return c.getJSON(ctx, u.String(), &body)
	})
	if err != nil {
		return "", err
	}
	return body.Description, nil
}

// DownloadAttachment fetches one attachment into destDir and returns the
// local path. The filename comes from Content-Disposition when present,
// otherwise from the URL.
func (c *HTTPClient) DownloadAttachment(ctx context.Context, ref model.AttachmentRef, destDir string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "samgov: rate limiter")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "samgov: create download dir %s", destDir)
	}

	downloadURL := ref.URL
	if c.apiKey != "" {
		if u, err := url.Parse(ref.URL); err == nil {
			q := u.Query()
			q.Set("api_key", c.apiKey)
			u.RawQuery = q.Encode()
			downloadURL = u.String()
		}
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (string, error) {
		return c.downloadOnce(ctx, downloadURL, ref, destDir)
	})
}

func (c *HTTPClient) downloadOnce(ctx context.Context, downloadURL string, ref model.AttachmentRef, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "samgov: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", resilience.NewTransientError(eris.Wrap(err, "samgov: download"), 0)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, ref.URL); err != nil {
		io.Copy(io.Discard, resp.Body)
		return "", err
	}

	name := filenameFromDisposition(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = ref.Filename
	}
	if name == "" {
		name = filenameFromURL(ref.URL)
	}
	if name == "" {
		name = "attachment.bin"
	}

	dest := filepath.Join(destDir, filepath.Base(name))
	f, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrapf(err, "samgov: create %s", dest)
	}
	defer f.Close()

	written, err := io.Copy(f, resp.Body)
	if err != nil {
		os.Remove(dest)
		return "", resilience.NewTransientError(eris.Wrapf(err, "samgov: write %s", dest), 0)
	}

	zap.L().Debug("attachment downloaded",
		zap.String("url", ref.URL),
		zap.String("path", dest),
		zap.Int64("bytes", written))
	return dest, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return eris.Wrap(err, "samgov: build request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "samgov: request"), 0)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, rawURL); err != nil {
		io.Copy(io.Discard, resp.Body)
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "samgov: read body"), 0)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "samgov: decode response")
	}
	return nil
}

func classifyStatus(status int, target string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return eris.Wrapf(ErrNotFound, "%s", target)
	case resilience.IsTransientHTTPStatus(status):
		return resilience.NewTransientError(
			eris.New(fmt.Sprintf("samgov: http %d from %s", status, target)), status)
	default:
		return eris.New(fmt.Sprintf("samgov: http %d from %s", status, target))
	}
}

func filenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" || u.Path == "/" {
		return ""
	}
	base := filepath.Base(u.Path)
	// SAM file links end in an opaque resource ID segment like
	// /files/<id>/download; those carry no usable name.
	if base == "download" || !strings.Contains(base, ".") {
		return ""
	}
	return base
}

func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "filename=") {
			name := strings.TrimPrefix(part, "filename=")
			return strings.Trim(name, `"`)
		}
	}
	return ""
}
