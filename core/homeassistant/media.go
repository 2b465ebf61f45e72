package homeassistant

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Media is a downloaded file such as the audio produced by a tts stage.
type Media struct {
	Content  []byte
	MIMEType string
}

// FetchMedia downloads urlOrPath, resolved against the instance URL. The
// access token is only sent to the instance itself.
func (c *Client) FetchMedia(ctx context.Context, urlOrPath string) (Media, error) {
	ctx, span := tracer.Start(ctx, "fetch media")
	defer span.End()

	base, err := url.Parse(c.settings.BaseURL())
	if err != nil {
		return Media{}, fmt.Errorf("failed to parse instance url: %w", err)
	}
	ref, err := url.Parse(urlOrPath)
	if err != nil {
		return Media{}, fmt.Errorf("failed to parse media url %q: %w", urlOrPath, err)
	}
	target := base.ResolveReference(ref)
	span.SetAttributes(attribute.String("media.url", target.Redacted()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Media{}, fmt.Errorf("failed to create media request: %w", err)
	}
	if target.Host == base.Host && c.settings.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.settings.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return Media{}, fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("failed to fetch media: unexpected status %s", resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, resp.Status)
		return Media{}, err
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return Media{}, fmt.Errorf("failed to read media: %w", err)
	}

	return Media{Content: content, MIMEType: resp.Header.Get("Content-Type")}, nil
}
