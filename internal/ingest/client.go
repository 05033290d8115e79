package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AngelCh415/adpulse/internal/utils"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

func NewHTTPClient(timeout time.Duration) HTTPClient {
	return &http.Client{Timeout: timeout}
}

var errEmptyURL = errors.New("empty url")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string { return fmt.Sprintf("non-2xx: %d body=%s", e.Code, e.Body) }

func getJSON(ctx context.Context, c HTTPClient, url string, v any) error {
	if url == "" {
		return errEmptyURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, Body: string(b)}
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

// GetJSONWithRetry fetches and decodes url, retrying transport errors and
// 5xx responses with exponential backoff plus jitter. 4xx is returned at once.
func GetJSONWithRetry(ctx context.Context, c HTTPClient, url string, dst any) error {
	return getJSONWithBackoff(ctx, c, url, dst, utils.NewBackoff(100*time.Millisecond, 2).WithJitter(150*time.Millisecond))
}

func getJSONWithBackoff(ctx context.Context, c HTTPClient, url string, dst any, b utils.Backoff) error {
	var permanent error
	err := b.Do(ctx, func(int) error {
		err := getJSON(ctx, c, url, dst)
		var se *StatusError
		if errors.Is(err, errEmptyURL) || (errors.As(err, &se) && se.Code < 500) {
			permanent = err
			return nil
		}
		return err
	})
	if permanent != nil {
		return permanent
	}
	return err
}
