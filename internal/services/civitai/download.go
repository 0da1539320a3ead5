package civitai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"modelkeep/internal/contenthash"
)

// TransferError marks a failed or corrupted transfer. Download failures are
// terminal for their job only; callers record them instead of escalating.
type TransferError struct {
	URL string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s: %v", e.URL, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// DownloadFile streams url into dest with bounded retries. The payload lands
// in dest.part first and is renamed into place only after the optional BLAKE3
// verification passes, so a crashed download never leaves a plausible model
// file behind. wantHash may be empty to skip verification.
func (c *Client) DownloadFile(ctx context.Context, rawURL, dest, wantHash string, maxRetries int) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	wantHash = strings.ToLower(strings.TrimSpace(wantHash))

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &TransferError{URL: rawURL, Err: ctx.Err()}
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		if lastErr = c.downloadOnce(ctx, rawURL, dest, wantHash); lastErr == nil {
			return nil
		}
	}
	return &TransferError{URL: rawURL, Err: lastErr}
}

func (c *Client) downloadOnce(ctx context.Context, rawURL, dest, wantHash string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("http %d", resp.StatusCode)
	}

	part := dest + ".part"
	file, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("create %s: %w", part, err)
	}

	hasher := blake3.New()
	writer := io.Writer(file)
	if wantHash != "" {
		writer = io.MultiWriter(file, hasher)
	}

	if _, err := io.Copy(writer, resp.Body); err != nil {
		file.Close()
		_ = os.Remove(part)
		return fmt.Errorf("stream body: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("close %s: %w", part, err)
	}

	if wantHash != "" {
		got := fmt.Sprintf("%x", hasher.Sum(nil))
		if got != wantHash {
			_ = os.Remove(part)
			return fmt.Errorf("hash mismatch: got %s want %s", got, wantHash)
		}
	}

	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("finalize %s: %w", dest, err)
	}
	return nil
}

// VerifyFile recomputes dest's BLAKE3 digest and compares it to wantHash.
func VerifyFile(dest, wantHash string) error {
	digest, err := contenthash.SumFile(dest)
	if err != nil {
		return err
	}
	if digest != strings.ToLower(strings.TrimSpace(wantHash)) {
		return fmt.Errorf("verify %s: hash mismatch: got %s want %s", dest, digest, wantHash)
	}
	return nil
}
