package direct

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	tvgconfig "github.com/NikitaDmitryuk/telegram-video-grabber/internal/config"
	tvgerrors "github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/errors"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/downloader"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
)

const (
	retryCount    = 2
	retryWaitTime = time.Second
	// MinMediaSize rejects error pages and empty responses served with a 200 status.
	MinMediaSize = 1000
)

// ErrTooSmall means the fetched body is too small to be media.
var ErrTooSmall = errors.New("downloaded file is too small to be media")

// Client wraps resty for scraping helper pages and streaming media from CDNs.
type Client struct {
	http  *resty.Client
	limit int64
}

// NewClient configures retries, the browser user agent and, when host is proxied, the proxy.
func NewClient(cfg *tvgconfig.Config, host string) *Client {
	client := resty.New().
		SetHeader("User-Agent", cfg.Services.UserAgent).
		SetRetryCount(retryCount).
		SetRetryWaitTime(retryWaitTime).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}
			return r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.UseProxyFor(host) {
		client.SetProxy(cfg.Proxy)
	}
	return &Client{http: client, limit: cfg.Download.MaxFileSize}
}

func (c *Client) R(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

// GetText fetches a page and returns its body. Non-2xx statuses are errors.
func (c *Client) GetText(ctx context.Context, pageURL string, headers map[string]string) (string, error) {
	resp, err := c.R(ctx).SetHeaders(headers).Get(pageURL)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("GET %s: unexpected status %s", pageURL, resp.Status())
	}
	return resp.String(), nil
}

// FetchToFile streams mediaURL into path, aborting once the configured size limit is crossed.
func (c *Client) FetchToFile(
	ctx context.Context,
	mediaURL string,
	headers map[string]string,
	path string,
	progress downloader.ProgressFunc,
) (int64, error) {
	resp, err := c.R(ctx).SetHeaders(headers).SetDoNotParseResponse(true).Get(mediaURL)
	if err != nil {
		return 0, downloader.StreamError(err, 0, c.limit)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		err := fmt.Errorf("GET media: unexpected status %s", resp.Status())
		if resp.StatusCode() == http.StatusNotFound || resp.StatusCode() == http.StatusForbidden {
			return 0, tvgerrors.WrapDomainError(err, tvgerrors.ErrContentUnavailable)
		}
		return 0, tvgerrors.WrapDomainError(err, tvgerrors.ErrNetwork)
	}

	total := resp.RawResponse.ContentLength
	if total > c.limit {
		return 0, tvgerrors.NewFileTooLargeError(total, c.limit)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, tvgerrors.WrapDomainError(err, tvgerrors.ErrInternal)
	}
	defer f.Close()

	written, err := downloader.LimitedCopy(f, body, c.limit, func(written int64) {
		if progress != nil && total > 0 {
			progress(float64(written) * 100 / float64(total))
		}
	})
	if err != nil {
		return written, downloader.StreamError(err, written, c.limit)
	}
	if written < MinMediaSize {
		return written, tvgerrors.WrapDomainError(ErrTooSmall, tvgerrors.ErrContentUnavailable).
			WithDetails(map[string]any{"size": written})
	}

	logutils.Log.WithField("size", written).Debugf("Fetched media into %s", path)
	return written, nil
}
