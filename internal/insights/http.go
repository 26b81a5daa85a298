package insights

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antonholmquist/jason"

	"github.com/tphakala/sentinel/internal/datastore/v2/entities"
	"github.com/tphakala/sentinel/internal/errors"
)

// HTTPProvider fetches dataset intervals from the data service:
//
//	GET {base}/api/datasets/{dataset}/interval
//	{"dataset": "...", "startTime": 1700000000000, "endTime": 1700003600000}
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates an HTTPProvider. A nil client gets a client with
// the given timeout.
func NewHTTPProvider(baseURL string, client *http.Client, timeout time.Duration) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPProvider{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

// DatasetInterval implements Provider. Alerts without a dataset have an
// unknown interval.
func (p *HTTPProvider) DatasetInterval(ctx context.Context, alert *entities.Alert) (Interval, error) {
	dataset := alert.Dataset()
	if dataset == "" {
		return Interval{}, nil
	}

	endpoint := fmt.Sprintf("%s/api/datasets/%s/interval", p.baseURL, url.PathEscape(dataset))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return Interval{}, requestError(dataset, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Interval{}, requestError(dataset, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Interval{}, errors.Newf("dataset %q not found", dataset).
			Component("insights").
			Category(errors.CategoryNotFound).
			Context("dataset", dataset).
			Build()
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Interval{}, errors.Newf("data service returned status %d for dataset %q", resp.StatusCode, dataset).
			Component("insights").
			Category(errors.CategoryNetwork).
			Context("dataset", dataset).
			Context("status", resp.StatusCode).
			Build()
	}

	obj, err := jason.NewObjectFromReader(resp.Body)
	if err != nil {
		return Interval{}, errors.New(err).
			Component("insights").
			Category(errors.CategoryNetwork).
			Context("dataset", dataset).
			Context("operation", "decode_interval").
			Build()
	}

	var interval Interval
	if start, err := obj.GetInt64("startTime"); err == nil {
		interval.Start = &start
	}
	if end, err := obj.GetInt64("endTime"); err == nil {
		interval.End = &end
	}
	return interval, nil
}

func requestError(dataset string, err error) error {
	return errors.New(err).
		Component("insights").
		Category(errors.CategoryNetwork).
		Context("dataset", dataset).
		Build()
}
