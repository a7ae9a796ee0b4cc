package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// inlineImage returns the media type and base64 data of the image at
// url: a data: URI is split into those two parts, any other URL is
// fetched and its body base64-encoded. Grounded on the
// original's openai.py/anthropic.py image handling, which inlines
// remote URLs because the Anthropic and Gemini APIs require inline
// image bytes rather than a fetchable URL.
func inlineImage(ctx context.Context, client *http.Client, url string) (mediaType string, data string, err error) {
	if strings.HasPrefix(url, "data:") {
		rest := strings.TrimPrefix(url, "data:")
		parts := strings.SplitN(rest, ";base64,", 2)
		if len(parts) != 2 {
			return "", "", fmt.Errorf("malformed data URI")
		}
		return parts[0], parts[1], nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetching image %s returned status %d", url, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	return contentType, base64.StdEncoding.EncodeToString(body), nil
}
