// Package page fetches the sign up page and turns it into text nodes.
package page

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"slotwatch/internal/components/assert"
	"slotwatch/internal/components/telemetry"
	"slotwatch/internal/slots"
	"slotwatch/lib/htmlutil"
	"slotwatch/lib/restyutil"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const (
	report_client_fetch = "client.fetch"
	report_client_parse = "client.parse"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Options struct {
	Url string
	// Selector optionally limits the text nodes to the elements it matches.
	Selector string
	// UserAgent defaults to a desktop browser user agent.
	UserAgent string
	Timeout   time.Duration
	// CloudflareBypass wraps the transport so it presents a browser-like TLS fingerprint.
	CloudflareBypass bool
	// Dump receives every http exchange when set, used for debugging selectors.
	Dump restyutil.Output
}

// Client fetches one page.
type Client struct {
	url      string
	selector string
	http     *resty.Client
	tel      telemetry.API
}

func NewClient(opts Options, tel telemetry.API) (Client, error) {
	assert.NotNil(tel)

	parsed, err := url.Parse(opts.Url)
	if err != nil {
		return Client{}, fmt.Errorf("parse page url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Client{}, fmt.Errorf("page url must be http(s), got '%s'", opts.Url)
	}

	tel = telemetry.NewScopedAPI("page", tel)

	httpClient := resty.New()
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	httpClient.SetHeader("user-agent", userAgent)
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	httpClient.SetTimeout(timeout)

	telemetry.InstrumentResty(httpClient, tel)
	restyutil.DumpExchanges(httpClient, opts.Dump)

	return Client{
		url:      parsed.String(),
		selector: opts.Selector,
		http:     httpClient,
		tel:      tel,
	}, nil
}

// Url is the page this client fetches, it doubles as the source identifier of notifications.
func (c Client) Url() string {
	return c.url
}

// Fetch returns the raw body of the page, a non-2xx status is an error.
func (c Client) Fetch(ctx context.Context) ([]byte, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(c.url)
	if err != nil {
		c.tel.ReportBroken(report_client_fetch, err, c.url)
		return nil, fmt.Errorf("%w: fetch %s: %w", slots.ErrTransport, c.url, err)
	}
	c.tel.ReportDebug("fetched page", res.StatusCode(), len(res.Body()))
	if res.IsError() {
		err = fmt.Errorf("unexpected status %s", res.Status())
		c.tel.ReportBroken(report_client_fetch, err, c.url)
		return nil, fmt.Errorf("%w: fetch %s: %w", slots.ErrTransport, c.url, err)
	}
	return res.Body(), nil
}

// TextNodes parses body and returns its text nodes in document order.
func (c Client) TextNodes(body []byte) ([]string, error) {
	doc, err := htmlutil.Parse(bytes.NewReader(body))
	if err != nil {
		c.tel.ReportBroken(report_client_parse, err, len(body))
		return nil, fmt.Errorf("%w: %w", slots.ErrParse, err)
	}
	texts := htmlutil.DocumentTextNodes(doc, c.selector)
	c.tel.ReportDebug("text nodes", len(texts))
	return texts, nil
}

// Scrape fetches the page and returns its text nodes.
func (c Client) Scrape(ctx context.Context) ([]string, error) {
	body, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return c.TextNodes(body)
}
