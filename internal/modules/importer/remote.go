package importer

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemoteFetcher downloads a published portfolio sheet
type RemoteFetcher struct {
	client *resty.Client
}

// NewRemoteFetcher creates a fetcher with the given request timeout
func NewRemoteFetcher(timeout time.Duration) *RemoteFetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "text/csv, application/vnd.openxmlformats-officedocument.spreadsheetml.sheet, */*")
	return &RemoteFetcher{client: client}
}

// FetchRemote downloads rawURL and imports it. The file type comes from
// the URL path, CSV when the path has no extension.
func (im *Importer) FetchRemote(ctx context.Context, f *RemoteFetcher, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid portfolio url %q", rawURL)
	}

	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download portfolio: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to download portfolio: %s", resp.Status())
	}

	return im.Import(bytes.NewReader(resp.Body()), path.Base(u.Path))
}
