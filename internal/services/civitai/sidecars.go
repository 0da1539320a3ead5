package civitai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"modelkeep/internal/fileutil"
)

// PreviewExt is the extension of the still preview written next to a model.
const PreviewExt = "jpeg"

// FetchSidecars materializes the metadata files the scanner and UI read for
// one model: <stem>.json with the version payload, <stem>.model.json with the
// parent model payload, and best-effort <stem>.jpeg with the first preview
// image. The version is resolved by the file's content hash.
func (c *Client) FetchSidecars(ctx context.Context, modelPath, hash string) error {
	version, rawVersion, err := c.VersionByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("fetch version sidecar: %w", err)
	}
	if err := os.WriteFile(fileutil.SwapExt(modelPath, "json"), rawVersion, 0o644); err != nil {
		return fmt.Errorf("write version sidecar: %w", err)
	}

	if version.ModelID != 0 {
		_, rawModel, err := c.ModelByID(ctx, version.ModelID)
		if err != nil {
			return fmt.Errorf("fetch model sidecar: %w", err)
		}
		if err := os.WriteFile(fileutil.SwapExt(modelPath, "model.json"), rawModel, 0o644); err != nil {
			return fmt.Errorf("write model sidecar: %w", err)
		}
	}

	if len(version.Images) > 0 {
		if err := c.fetchPreview(ctx, version.Images[0].URL, modelPath); err != nil {
			// Preview loss is cosmetic; the catalog entry stays usable.
			return nil
		}
	}
	return nil
}

func (c *Client) fetchPreview(ctx context.Context, imageURL, modelPath string) error {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return err
	}
	c.decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("preview http %d", resp.StatusCode)
	}

	ext := ExtensionFromURL(imageURL)
	if ext == "" {
		ext = PreviewExt
	}
	file, err := os.Create(fileutil.SwapExt(modelPath, ext))
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return err
	}
	return file.Close()
}

// ExtensionFromURL extracts the lowercase file extension of a URL path,
// without the leading dot. Returns "" when the URL carries none.
func ExtensionFromURL(rawURL string) string {
	trimmed := rawURL
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	ext := path.Ext(trimmed)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
