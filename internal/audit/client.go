package audit

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"auditgate/internal/models"
)

// Default protocol parameters, tuned against observed portal behavior.
const (
	DefaultBaseURL         = "https://act.ucsd.edu/studentDarsSelfservice"
	DefaultMaxPollAttempts = 30
	DefaultPollBaseDelay   = 500 * time.Millisecond
	DefaultMaxPollTimeout  = 120 * time.Second
	DefaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	createPath = "/audit/create.html"
	listPath   = "/audit/list.html"
	readPath   = "/audit/read.html"

	// Backoff doubles per attempt but never exceeds this.
	maxPollDelay = 10 * time.Second

	// Audit pages smaller than this are suspicious (error stubs, empty shells)
	// but still handed to the parser.
	minAuditHTMLBytes = 1000
)

// ssoIndicators mark a login/SSO destination. Checked on the final URL of
// every portal response: the portal redirects to SSO with a 200 at the end,
// so the status code alone says nothing about session validity.
var ssoIndicators = []string{
	"login.ucsd.edu",
	"sso.ucsd.edu",
	"shib",
	"shibboleth",
	"idp",
	"saml",
	"login?",
	"/login",
	"auth.ucsd.edu",
}

// Config collects the tunables for a Client. Zero values fall back to the
// package defaults.
type Config struct {
	BaseURL          string
	MaxPollAttempts  int
	PollBaseDelay    time.Duration
	MaxPollTimeout   time.Duration
	UserAgent        string
	CacheTTL         time.Duration
	BreakerThreshold int
	BreakerRecovery  time.Duration
	GlobalRate       float64
	PerSessionRate   float64
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.MaxPollAttempts <= 0 {
		c.MaxPollAttempts = DefaultMaxPollAttempts
	}
	if c.PollBaseDelay <= 0 {
		c.PollBaseDelay = DefaultPollBaseDelay
	}
	if c.MaxPollTimeout <= 0 {
		c.MaxPollTimeout = DefaultMaxPollTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	return c
}

// Client drives the portal's job-queue protocol and fronts it with a result
// cache, per-session locks, rate limits and a circuit breaker. Safe for
// concurrent use.
type Client struct {
	cfg     Config
	cache   *Cache
	breaker *CircuitBreaker
	locks   *SessionLocks
	limiter *UpstreamLimiter
	logger  *logrus.Logger
	metrics *Metrics

	// noRedirect surfaces 302s so the protocol can read Location itself;
	// following is for pages where redirects (including to SSO) must land.
	noRedirect *http.Client
	following  *http.Client
}

// NewClient builds a client from the config, applying defaults for any zero
// field.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		cfg:     cfg,
		cache:   NewCache(cfg.CacheTTL),
		breaker: NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerRecovery),
		locks:   NewSessionLocks(),
		limiter: NewUpstreamLimiter(cfg.GlobalRate, cfg.PerSessionRate),
		logger:  logger,
		noRedirect: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		following: &http.Client{
			Transport: transport,
			Timeout:   60 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		},
	}
}

// SetLogger swaps the internal logger, mainly for tests.
func (c *Client) SetLogger(logger *logrus.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// GetOrCreateAudit returns the degree audit for the session identified by the
// raw cookie header value, running the full upstream protocol on a cache miss.
// Concurrent callers with the same session share one upstream run.
func (c *Client) GetOrCreateAudit(ctx context.Context, cookies string, forceRefresh bool) (*models.DegreeAudit, error) {
	if strings.TrimSpace(cookies) == "" {
		return nil, &NoSessionError{Message: "no session cookies provided"}
	}

	key := NewSessionKey(cookies)
	log := c.logger.WithFields(logrus.Fields{
		"correlation_id": uuid.New().String(),
		"session":        key.String(),
	})

	if c.breaker.IsOpen() {
		log.WithField("failures", c.breaker.FailureCount()).Warn("circuit breaker open, rejecting request")
		c.countRequest("breaker_open")
		return nil, ErrCircuitBreakerOpen
	}

	if !forceRefresh {
		if cached, ok := c.cache.Get(key); ok {
			log.Debug("cache hit")
			c.countCache(true)
			c.countRequest("cache_hit")
			return cached, nil
		}
		c.countCache(false)
	}

	release, err := c.locks.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	// A concurrent caller may have filled the cache while we waited.
	if !forceRefresh {
		if cached, ok := c.cache.Get(key); ok {
			log.Debug("cache filled while waiting for session lock")
			c.countCache(true)
			c.countRequest("cache_hit")
			return cached, nil
		}
	}

	start := time.Now()
	audit, err := c.runAuditFlow(ctx, log, cookies)
	c.observeDuration(time.Since(start))

	if err != nil {
		if IsRetryable(err) {
			c.breaker.RecordFailure()
		}
		log.WithError(err).Error("audit fetch failed")
		c.countRequest("error")
		return nil, err
	}

	c.breaker.RecordSuccess()
	c.cache.Insert(key, audit)
	log.WithField("elapsed", time.Since(start).String()).Info("audit fetched and cached")
	c.countRequest("success")
	return audit, nil
}

// InvalidateCache drops the cached audit for one session.
func (c *Client) InvalidateCache(cookies string) {
	c.cache.Invalidate(NewSessionKey(cookies))
}

// ClearCache drops every cached audit.
func (c *Client) ClearCache() {
	c.cache.Clear()
}

// CacheStats exposes cache counters for monitoring endpoints.
func (c *Client) CacheStats() CacheStats {
	return c.cache.Stats()
}

// CleanupExpiredCache sweeps expired cache entries. Driven by the scheduler.
func (c *Client) CleanupExpiredCache() {
	c.cache.CleanupExpired()
}

// BreakerFailures returns the breaker's current consecutive failure count.
func (c *Client) BreakerFailures() int {
	return c.breaker.FailureCount()
}

// runAuditFlow executes the upstream protocol end to end: submit the job,
// poll the list page until it completes, fetch and parse the result.
func (c *Client) runAuditFlow(ctx context.Context, log *logrus.Entry, cookies string) (*models.DegreeAudit, error) {
	key := NewSessionKey(cookies)

	listURL, err := c.submitAuditJob(ctx, log, key, cookies)
	if err != nil {
		return nil, err
	}

	job, err := c.pollForCompletion(ctx, log, key, cookies, listURL)
	if err != nil {
		return nil, err
	}

	src, err := c.fetchAuditResult(ctx, log, key, cookies, job)
	if err != nil {
		return nil, err
	}

	audit, err := ParseDegreeAudit(src)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"requirements": len(audit.Requirements),
		"audit_id":     audit.AuditID,
	}).Debug("audit parsed")
	return audit, nil
}

// submitAuditJob requests a new audit run and returns the list page URL to
// poll. A 302 is the expected answer with the poll URL in Location; a 200
// means the portal skipped the redirect, so fall back to the default list URL.
func (c *Client) submitAuditJob(ctx context.Context, log *logrus.Entry, key SessionKey, cookies string) (string, error) {
	if err := c.limiter.Wait(ctx, key); err != nil {
		return "", err
	}

	createURL := c.cfg.BaseURL + createPath
	resp, err := c.do(ctx, c.noRedirect, createURL, cookies)
	if err != nil {
		return "", &NetworkError{Message: "audit create request failed", Cause: err}
	}
	_, finalURL := drain(resp)

	if err := c.checkSessionValid(finalURL); err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		location := resp.Header.Get("Location")
		if location == "" {
			return "", &UnexpectedResponseError{Message: "redirect without Location header from create page"}
		}
		listURL, err := c.resolveListURL(location)
		if err != nil {
			return "", err
		}
		log.WithField("list_url", listURL).Debug("audit job submitted")
		return listURL, nil

	case resp.StatusCode == http.StatusOK:
		// Some sessions get the list page inline instead of a redirect.
		log.Debug("create returned 200, using default list url")
		return c.cfg.BaseURL + listPath + "?autoPoll=true", nil

	default:
		return "", &UnexpectedResponseError{
			Message: fmt.Sprintf("create returned status %d", resp.StatusCode),
		}
	}
}

// fetchListAndDiscover fetches the list page once and parses the newest job.
// A page with no discoverable job surfaces as ErrNoJobFound.
func (c *Client) fetchListAndDiscover(ctx context.Context, key SessionKey, cookies, listURL string) (AuditJob, string, error) {
	if err := c.limiter.Wait(ctx, key); err != nil {
		return AuditJob{}, "", err
	}

	resp, err := c.do(ctx, c.following, listURL, cookies)
	if err != nil {
		return AuditJob{}, "", &NetworkError{Message: "list page request failed", Cause: err}
	}
	body, finalURL := drain(resp)

	if err := c.checkSessionValid(finalURL); err != nil {
		return AuditJob{}, "", err
	}
	if resp.StatusCode != http.StatusOK {
		return AuditJob{}, "", &UnexpectedResponseError{
			Message: fmt.Sprintf("list page returned status %d", resp.StatusCode),
		}
	}

	job, err := ParseNewestJob(body)
	if err != nil {
		return AuditJob{}, body, err
	}
	return job, body, nil
}

// pollForCompletion discovers the newest job, then re-fetches the list page
// until the job completes, fails or the attempt/wall-clock limits are hit.
// The initial discovery does not count against the attempt budget.
func (c *Client) pollForCompletion(ctx context.Context, log *logrus.Entry, key SessionKey, cookies, listURL string) (AuditJob, error) {
	start := time.Now()

	job, body, err := c.fetchListAndDiscover(ctx, key, cookies, listURL)
	if err != nil {
		return AuditJob{}, err
	}
	switch {
	case job.Status.IsReady():
		log.WithField("job_id", job.JobID).Debug("audit job already complete")
		return job, nil
	case job.Status.IsFailed():
		return AuditJob{}, &JobFailedError{Reason: job.Status.Detail}
	}
	if PageIndicatesProcessing(body) {
		log.WithField("job_id", job.JobID).Debug("job still processing")
	}

	for attempt := 1; attempt <= c.cfg.MaxPollAttempts; attempt++ {
		delay := computePollDelay(c.cfg.PollBaseDelay, attempt)
		if err := sleepCtx(ctx, delay); err != nil {
			return AuditJob{}, err
		}
		if time.Since(start) > c.cfg.MaxPollTimeout {
			return AuditJob{}, &PollTimeoutError{Attempts: attempt - 1, Elapsed: time.Since(start)}
		}
		c.countPoll()

		job, body, err = c.fetchListAndDiscover(ctx, key, cookies, listURL)
		if err != nil {
			return AuditJob{}, err
		}
		switch {
		case job.Status.IsReady():
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"job_id":  job.JobID,
			}).Debug("audit job complete")
			return job, nil
		case job.Status.IsFailed():
			return AuditJob{}, &JobFailedError{Reason: job.Status.Detail}
		default:
			if PageIndicatesProcessing(body) {
				log.WithField("attempt", attempt).Debug("job still processing")
			}
		}
	}

	return AuditJob{}, &PollTimeoutError{
		Attempts: c.cfg.MaxPollAttempts,
		Elapsed:  time.Since(start),
	}
}

// fetchAuditResult downloads the completed audit page.
func (c *Client) fetchAuditResult(ctx context.Context, log *logrus.Entry, key SessionKey, cookies string, job AuditJob) (*models.AuditSource, error) {
	if err := c.limiter.Wait(ctx, key); err != nil {
		return nil, err
	}

	readURL := c.cfg.BaseURL + readPath + "?id=" + encodeJobID(job.JobID)
	resp, err := c.do(ctx, c.following, readURL, cookies)
	if err != nil {
		return nil, &NetworkError{Message: "read page request failed", Cause: err}
	}
	body, finalURL := drain(resp)

	if err := c.checkSessionValid(finalURL); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UnexpectedResponseError{
			Message: fmt.Sprintf("read page returned status %d", resp.StatusCode),
		}
	}

	if len(body) < minAuditHTMLBytes {
		// Short pages are usually error stubs, but let the parser decide.
		log.WithField("bytes", len(body)).Warn("audit page unexpectedly small")
	}

	return &models.AuditSource{
		AuditID:   job.JobID,
		ScrapedAt: time.Now().UTC().Format(time.RFC3339),
		URL:       readURL,
		HTML:      body,
	}, nil
}

// resolveListURL normalizes the create redirect's Location, which upstream
// emits in absolute, scheme-relative, host-relative and page-relative forms.
func (c *Client) resolveListURL(location string) (string, error) {
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return location, nil
	case strings.HasPrefix(location, "//"):
		base, err := url.Parse(c.cfg.BaseURL)
		if err != nil {
			return "", &URLError{Message: "invalid base url: " + c.cfg.BaseURL}
		}
		return base.Scheme + ":" + location, nil
	case strings.HasPrefix(location, "/"):
		base, err := url.Parse(c.cfg.BaseURL)
		if err != nil {
			return "", &URLError{Message: "invalid base url: " + c.cfg.BaseURL}
		}
		return base.Scheme + "://" + base.Host + location, nil
	default:
		return c.cfg.BaseURL + "/audit/" + location, nil
	}
}

// checkSessionValid raises SessionExpiredError when the response landed on a
// login/SSO page. The final URL is the signal, not the status code.
func (c *Client) checkSessionValid(finalURL string) error {
	lower := strings.ToLower(finalURL)
	for _, indicator := range ssoIndicators {
		if strings.Contains(lower, indicator) {
			return &SessionExpiredError{RedirectURL: finalURL}
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, httpClient *http.Client, rawURL, cookies string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cookie", cookies)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	return httpClient.Do(req)
}

// drain reads and closes the body, returning it with the final request URL
// (post-redirect when the following client was used).
func drain(resp *http.Response) (string, string) {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 10<<20))

	finalURL := ""
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return string(body), finalURL
}

// computePollDelay doubles the base delay per attempt (capped), plus up to 20%
// jitter so concurrent pollers don't sync up.
func computePollDelay(base time.Duration, attempt int) time.Duration {
	exp := attempt - 1
	if exp > 5 {
		exp = 5
	}
	delay := base * time.Duration(1<<uint(exp))
	if delay > maxPollDelay {
		delay = maxPollDelay
	}
	if delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay)/5 + 1))
	}
	return delay
}

// encodeJobID percent-encodes every byte outside the unreserved set, matching
// what the portal expects in the read URL (job tokens contain "!").
func encodeJobID(id string) string {
	var b strings.Builder
	for _, ch := range []byte(id) {
		if (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') ||
			(ch >= '0' && ch <= '9') || ch == '-' || ch == '_' || ch == '.' || ch == '~' {
			b.WriteByte(ch)
		} else {
			fmt.Fprintf(&b, "%%%02X", ch)
		}
	}
	return b.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
