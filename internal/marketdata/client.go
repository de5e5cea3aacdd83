package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"equity-quant-lab/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	dateOnly  = "2006-01-02"
)

// HTTPProvider implements Provider against a chart-style HTTP JSON API.
// The endpoint is expected to answer GET requests with a body carrying
// data.bars, an array of "date,open,high,low,close,volume" strings.
type HTTPProvider struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

var _ Provider = (*HTTPProvider)(nil)

// ProviderOption configures HTTPProvider.
type ProviderOption func(*HTTPProvider)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ProviderOption {
	return func(p *HTTPProvider) {
		p.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ProviderOption {
	return func(p *HTTPProvider) {
		p.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ProviderOption {
	return func(p *HTTPProvider) {
		p.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ProviderOption {
	return func(p *HTTPProvider) {
		p.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *HTTPProvider) {
		p.client = client
	}
}

// NewHTTPProvider creates a bar provider backed by an HTTP chart API.
func NewHTTPProvider(endpoint string, opts ...ProviderOption) *HTTPProvider {
	p := &HTTPProvider{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetBars fetches bars for the symbol within [start, end].
func (p *HTTPProvider) GetBars(ctx context.Context, symbol string, start, end time.Time, interval string) ([]domain.PriceBar, error) {
	if symbol == "" {
		return nil, fmt.Errorf("marketdata: empty symbol")
	}
	if interval == "" {
		interval = domain.IntervalDaily
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("start", start.Format(dateOnly))
	q.Set("end", end.Format(dateOnly))
	q.Set("interval", interval)
	reqURL := p.endpoint + "?" + q.Encode()

	body, err := p.getWithRetry(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	bars, err := parseBars(body, symbol)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}
	return bars, nil
}

// getWithRetry performs a GET with retries and exponential backoff.
func (p *HTTPProvider) getWithRetry(ctx context.Context, reqURL string) ([]byte, error) {
	delay := p.retryDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * p.backoffMult)
			if delay > p.maxDelay {
				delay = p.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json, text/plain, */*")

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode == http.StatusNotFound {
			// Not retried: the symbol simply has no data here.
			return nil, fmt.Errorf("%w: status 404", ErrNoData)
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// parseBars extracts bars from a chart API body. Each element of
// data.bars is "date,open,high,low,close,volume"; malformed rows are
// skipped rather than failing the whole response.
func parseBars(body []byte, symbol string) ([]domain.PriceBar, error) {
	rows := gjson.GetBytes(body, "data.bars")
	if !rows.Exists() || !rows.IsArray() {
		return nil, fmt.Errorf("%w: missing data.bars for %s", ErrNoData, symbol)
	}

	arr := rows.Array()
	out := make([]domain.PriceBar, 0, len(arr))
	for _, v := range arr {
		s := strings.TrimSpace(v.String())
		if s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		if len(parts) < 6 {
			continue
		}
		date, err := time.Parse(dateOnly, parts[0])
		if err != nil {
			continue
		}
		open, _ := strconv.ParseFloat(parts[1], 64)
		high, _ := strconv.ParseFloat(parts[2], 64)
		low, _ := strconv.ParseFloat(parts[3], 64)
		closeVal, _ := strconv.ParseFloat(parts[4], 64)
		vol, _ := strconv.ParseFloat(parts[5], 64)
		if closeVal <= 0 {
			continue
		}
		out = append(out, domain.PriceBar{
			Symbol: symbol,
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closeVal,
			Volume: vol,
		})
	}
	return out, nil
}
