package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/statustracker/backend/internal/config"
	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/domain"
	"github.com/statustracker/backend/internal/infrastructure/logger"
)

var ErrRegistryUnavailable = errors.New("registry: lookup failed")

var noResultPhrases = []string{"no records found", "no results", "no matches", "not found"}

// Status cells that carry a recognisable registration state, checked in order.
var statusCellPatterns = func() []*regexp.Regexp {
	keywords := []string{"Current", "Delinquent", "Exempt", "Suspended", "Revoked", "Active", "Good Standing"}
	out := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		out = append(out, regexp.MustCompile(`(?i)<td[^>]*>\s*<span[^>]*>(`+kw+`[^<]*)</span>\s*</td>`))
	}
	return out
}()

var navWords = []string{"menu", "nav", "link", "button", "header"}

type RegistryClient struct {
	http       *resty.Client
	lookupPath string
	heading    *regexp.Regexp
	logger     *logger.Logger
}

func NewRegistryClient(cfg config.RegistryConfig, log *logger.Logger) *RegistryClient {
	heading := cfg.StatusHeading
	if heading == "" {
		heading = "Charity Registration"
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("User-Agent", cfg.UserAgent).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		SetJSONUnmarshaler(sonic.Unmarshal).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Retry on 429 and 5xx
			return r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
		})

	return &RegistryClient{
		http:       client,
		lookupPath: cfg.LookupPath,
		heading: regexp.MustCompile(`(?is)<span[^>]*>\s*` + regexp.QuoteMeta(heading) +
			`\s*</span>\s*</td>\s*<td[^>]*>\s*<span[^>]*>([^<]+)</span>`),
		logger: log,
	}
}

var _ ports.RegistryClient = (*RegistryClient)(nil)

type registryJSON struct {
	Status string `json:"status"`
}

// LookupStatus queries the registry search page for one EIN. A missing
// registration is a normal outcome ("Not Found"), not an error.
func (c *RegistryClient) LookupStatus(ctx context.Context, ein string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"facility":                "y",
			"t_web_lookup__federal_id": ein,
		}).
		Get(c.lookupPath)
	if err != nil {
		c.logger.Warnw("registry_lookup_failed", "ein", ein, "error", err)
		return "", fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return domain.OutcomeNotFound, nil
	}
	if resp.IsError() {
		c.logger.Warnw("registry_lookup_bad_status", "ein", ein, "status", resp.StatusCode())
		return "", fmt.Errorf("%w: status %d", ErrRegistryUnavailable, resp.StatusCode())
	}

	if strings.Contains(resp.Header().Get("Content-Type"), "json") {
		var payload registryJSON
		if err := sonic.Unmarshal(resp.Body(), &payload); err != nil {
			return "", fmt.Errorf("%w: decode: %v", ErrRegistryUnavailable, err)
		}
		if strings.TrimSpace(payload.Status) == "" {
			return domain.OutcomeNotFound, nil
		}
		return strings.TrimSpace(payload.Status), nil
	}

	status := c.parseStatusPage(resp.String(), ein)
	c.logger.Debugw("registry_lookup_ok", "ein", ein, "status", status)
	return status, nil
}

func (c *RegistryClient) parseStatusPage(page, ein string) string {
	lower := strings.ToLower(page)
	for _, phrase := range noResultPhrases {
		if strings.Contains(lower, phrase) {
			return domain.OutcomeNotFound
		}
	}

	if m := c.heading.FindStringSubmatch(page); m != nil {
		if status := strings.TrimSpace(m[1]); status != "" {
			return status
		}
	}

	for _, re := range statusCellPatterns {
		m := re.FindStringSubmatch(page)
		if m == nil {
			continue
		}
		status := strings.TrimSpace(m[1])
		if !containsAny(strings.ToLower(status), navWords) {
			return status
		}
	}

	if strings.Contains(page, ein) {
		return domain.OutcomeStatusUnclear
	}
	return domain.OutcomeNotFound
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
