// Package nfd is a minimal client for the NFD name directory - just the
// lookups needed to verify a name (and its owner) before tying it to a
// validator registration.
package nfd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/ssgreg/repeat"
)

// ErrNotFound means the name simply doesn't exist - callers must treat this
// differently from transport or server failures.
var ErrNotFound = errors.New("nfd not found")

// Record is the subset of directory data we care about: who owns the name
// and the numeric application handle the registry contract stores.
type Record struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
	AppID uint64 `json:"appID"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Resolve looks up a name, returning its owner and app id.
// A 404-class answer maps to ErrNotFound; rate limiting is waited out.
func (c *Client) Resolve(ctx context.Context, name string) (*Record, error) {
	var record Record
	err := retryRateLimited(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/nfd/%s?view=brief", c.baseURL, url.PathEscape(name)), nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("name:%s %w", name, ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests:
			secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
			return rateLimitedError{secsRemaining: secs}
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("nfd lookup of %s failed, status:%d, body:%s", name, resp.StatusCode, body)
		}
		return json.NewDecoder(resp.Body).Decode(&record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

type rateLimitedError struct {
	secsRemaining int
}

func (r rateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, secs remaining:%d", r.secsRemaining)
}

func retryRateLimited(meth func() error) error {
	return repeat.Repeat(
		repeat.Fn(func() error {
			err := meth()
			var rate rateLimitedError
			if errors.As(err, &rate) {
				time.Sleep(time.Duration(rate.secsRemaining+1) * time.Second)
				return repeat.HintTemporary(err)
			}
			return err
		}),
		repeat.StopOnSuccess(),
	)
}

var validNameWSuffixRegex = regexp.MustCompile(`^([a-z0-9]{1,27}\.){0,1}(?P<basename>[a-z0-9]{1,27})\.algo$`)

// IsNameValid is a simple validity check of an NFD name - segment.name.algo
// or name.algo, lowercase alphanumerics only.
func IsNameValid(name string) error {
	if validNameWSuffixRegex.MatchString(name) {
		return nil
	}
	return fmt.Errorf("invalid name:%s", name)
}
