package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/boddenberg/penny-newsletter-go/internal/domain"
	"github.com/boddenberg/penny-newsletter-go/internal/infra/resilience"
)

// ============================================================
// HTTP helpers for POST (upsert) and PATCH
// ============================================================

// doUpsert inserts data into table, merging on the conflict column.
func (c *Client) doUpsert(ctx context.Context, table, onConflict string, data any) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s?on_conflict=%s", c.baseURL, table, onConflict)
	jsonBody, err := json.Marshal(data)
	if err != nil {
		return nil, resilience.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	c.setHeaders(req)
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: POST request failed",
			zap.String("table", table),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: POST non-2xx",
			zap.String("table", table),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		if resp.StatusCode == http.StatusConflict {
			return nil, resilience.Permanent(&domain.ErrConflict{Resource: table, Message: string(body)})
		}
		err := fmt.Errorf("supabase POST %s returned %d: %s", table, resp.StatusCode, string(body))
		if resp.StatusCode < 500 {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}

	c.logger.Debug("supabase: POST OK", zap.String("table", table), zap.Int("status", resp.StatusCode))
	return body, nil
}

// doPatch updates the rows selected by path. It returns the number of rows
// PostgREST reports as changed.
func (c *Client) doPatch(ctx context.Context, path string, data any) (int, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	jsonBody, err := json.Marshal(data)
	if err != nil {
		return 0, resilience.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(jsonBody))
	if err != nil {
		return 0, resilience.Permanent(err)
	}
	c.setHeaders(req)
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: PATCH request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: PATCH non-2xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		err := fmt.Errorf("supabase PATCH returned %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode < 500 {
			return 0, resilience.Permanent(err)
		}
		return 0, err
	}

	var rows []json.RawMessage
	if len(body) > 0 {
		if err := json.Unmarshal(body, &rows); err != nil {
			return 0, resilience.Permanent(fmt.Errorf("decode PATCH response: %w", err))
		}
	}

	c.logger.Debug("supabase: PATCH OK", zap.String("path", path), zap.Int("rows", len(rows)))
	return len(rows), nil
}
