package scan

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// ProberConfig controls the HTTP prober behavior.
type ProberConfig struct {
	URL         string
	PinField    string
	ActionField string
	ActionValue string
	UserAgent   string
	Referer     string
	Headers     map[string]string
	Timeout     time.Duration
}

// HTTPProber implements Prober using a Colly collector. Each probe runs
// on a clone of the base collector so per-call hooks never leak between
// candidates.
type HTTPProber struct {
	cfg           ProberConfig
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// NewHTTPProber builds an HTTPProber.
func NewHTTPProber(cfg ProberConfig) *HTTPProber {
	// The same URL is posted once per candidate, and refusals carry the
	// failure text in their bodies, so revisits and error bodies must
	// both flow through to the classifier.
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
	)
	c.WithTransport(newHTTPTransport())

	return &HTTPProber{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Probe executes a single form POST for the candidate and returns the
// response status and body. A transport-level failure is returned as an
// error; any HTTP status is a successful probe.
func (p *HTTPProber) Probe(ctx context.Context, pin string) (ProbeResult, error) {
	var (
		result   ProbeResult
		probeErr error
	)
	start := time.Now()
	collector := p.buildCollector(start, &result, &probeErr)

	form := map[string]string{p.cfg.PinField: pin}
	if p.cfg.ActionField != "" {
		form[p.cfg.ActionField] = p.cfg.ActionValue
	}

	done := make(chan error, 1)
	go func() {
		done <- collector.Post(p.cfg.URL, form)
	}()

	select {
	case <-ctx.Done():
		return ProbeResult{}, fmt.Errorf("probe canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return ProbeResult{}, fmt.Errorf("post candidate: %w", err)
		}
		if probeErr != nil {
			return ProbeResult{}, fmt.Errorf("probe response failed: %w", probeErr)
		}
		return result, nil
	}
}

func (p *HTTPProber) buildCollector(start time.Time, result *ProbeResult, probeErr *error) *colly.Collector {
	collector := p.baseCollector.Clone()
	if p.cfg.UserAgent != "" {
		collector.UserAgent = p.cfg.UserAgent
	}
	timeout := p.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	p.configureCollectorHooks(collector, start, result, probeErr)
	return collector
}

func (p *HTTPProber) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *ProbeResult,
	probeErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		referer := p.cfg.Referer
		if referer == "" {
			referer = p.cfg.URL
		}
		r.Headers.Set("Referer", referer)
		for key, value := range p.cfg.Headers {
			r.Headers.Set(key, value)
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = ProbeResult{
			StatusCode: r.StatusCode,
			Body:       string(r.Body),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		// ParseHTTPErrorResponse routes HTTP statuses to OnResponse, so
		// anything landing here is a transport failure.
		*probeErr = err
	})
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
	}
}
