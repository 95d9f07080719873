// Package grid talks to the grid service's REST API: sheet listing, row
// snapshots, per-cell revision history, and row appends for the audit sink.
package grid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openclerk/gridaudit/internal/coerce"
)

// HTTPClient implements Client over the grid REST API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client for the API at baseURL authenticating with
// the given bearer token. A zero timeout defaults to 30s; a hung upstream
// call then surfaces as a transient-class error instead of blocking forever.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	StatusCode int
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("grid api: status %d: %s", e.StatusCode, e.Message)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		var apiMsg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &apiMsg) == nil && apiMsg.Message != "" {
			msg = apiMsg.Message
		}
		return &apiError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// ListSheets returns every sheet visible to the token.
func (c *HTTPClient) ListSheets(ctx context.Context) ([]SheetInfo, error) {
	var resp struct {
		Data []SheetInfo `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/sheets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

type apiColumn struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type apiCell struct {
	ColumnID     int64  `json:"columnId"`
	Value        any    `json:"value"`
	DisplayValue string `json:"displayValue"`
}

type apiRow struct {
	ID        int64     `json:"id"`
	Permalink string    `json:"permalink"`
	Cells     []apiCell `json:"cells"`
}

type apiSheet struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Permalink string      `json:"permalink"`
	Columns   []apiColumn `json:"columns"`
	Rows      []apiRow    `json:"rows"`
}

// ColumnMap returns column title to column ID for a sheet.
func (c *HTTPClient) ColumnMap(ctx context.Context, sheetID int64) (map[string]int64, error) {
	var resp struct {
		Data []apiColumn `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sheets/%d/columns", sheetID), nil, &resp); err != nil {
		return nil, err
	}
	columns := make(map[string]int64, len(resp.Data))
	for _, col := range resp.Data {
		columns[col.Title] = col.ID
	}
	return columns, nil
}

// ListRows fetches a sheet and flattens its rows into SourceRow snapshots,
// with cells keyed by column title. ReferenceDate is left nil; the caller
// sets it once it knows which column holds the reporting reference date.
func (c *HTTPClient) ListRows(ctx context.Context, sheetID int64) ([]SourceRow, error) {
	var sheet apiSheet
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sheets/%d", sheetID), nil, &sheet); err != nil {
		return nil, err
	}

	titles := make(map[int64]string, len(sheet.Columns))
	columns := make(map[string]int64, len(sheet.Columns))
	for _, col := range sheet.Columns {
		titles[col.ID] = col.Title
		columns[col.Title] = col.ID
	}

	rows := make([]SourceRow, 0, len(sheet.Rows))
	for _, raw := range sheet.Rows {
		cells := make(map[string]any, len(raw.Cells))
		for _, cell := range raw.Cells {
			title, ok := titles[cell.ColumnID]
			if !ok {
				continue
			}
			cells[title] = cell.Value
		}
		rows = append(rows, SourceRow{
			SheetID:   sheet.ID,
			SheetName: sheet.Name,
			RowID:     raw.ID,
			Permalink: raw.Permalink,
			Cells:     cells,
			Columns:   columns,
		})
	}
	return rows, nil
}

type apiRevision struct {
	Value        any    `json:"value"`
	DisplayValue string `json:"displayValue"`
	ModifiedAt   string `json:"modifiedAt"`
	ModifiedBy   struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"modifiedBy"`
}

// CellHistory returns the revision history for one cell, unordered.
func (c *HTTPClient) CellHistory(ctx context.Context, sheetID, rowID, columnID int64) ([]CellRevision, error) {
	var resp struct {
		Data []apiRevision `json:"data"`
	}
	path := fmt.Sprintf("/sheets/%d/rows/%d/columns/%d/history", sheetID, rowID, columnID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	revisions := make([]CellRevision, 0, len(resp.Data))
	for _, raw := range resp.Data {
		revisions = append(revisions, CellRevision{
			Value:           raw.Value,
			DisplayValue:    raw.DisplayValue,
			ModifiedAt:      coerce.Timestamp(raw.ModifiedAt),
			ModifiedByName:  raw.ModifiedBy.Name,
			ModifiedByEmail: raw.ModifiedBy.Email,
		})
	}
	return revisions, nil
}

// AppendRows appends rows to the bottom of a sheet.
func (c *HTTPClient) AppendRows(ctx context.Context, sheetID int64, rows []NewRow) error {
	type outCell struct {
		ColumnID int64 `json:"columnId"`
		Value    any   `json:"value"`
	}
	type outRow struct {
		ToBottom bool      `json:"toBottom"`
		Cells    []outCell `json:"cells"`
	}

	payload := make([]outRow, 0, len(rows))
	for _, row := range rows {
		out := outRow{ToBottom: true}
		for columnID, value := range row.Cells {
			out.Cells = append(out.Cells, outCell{ColumnID: columnID, Value: value})
		}
		payload = append(payload, out)
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/sheets/%d/rows", sheetID), payload, nil)
}
