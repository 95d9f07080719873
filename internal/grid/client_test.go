package grid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPClient(server.URL, "test-token", 5*time.Second)
}

func TestListRowsFlattensCellsByTitle(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sheets/42" {
			t.Errorf("path = %s, want /sheets/42", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":   42,
			"name": "PM Allocation - July",
			"columns": []map[string]any{
				{"id": 100, "title": "Quantity"},
				{"id": 101, "title": "Week Ending"},
			},
			"rows": []map[string]any{
				{
					"id":        7,
					"permalink": "https://grid.example/r/7",
					"cells": []map[string]any{
						{"columnId": 100, "value": 15, "displayValue": "15"},
						{"columnId": 101, "value": "2024-07-07"},
						{"columnId": 999, "value": "orphan column"},
					},
				},
			},
		})
	})

	rows, err := client.ListRows(context.Background(), 42)
	if err != nil {
		t.Fatalf("ListRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}

	row := rows[0]
	if row.SheetID != 42 || row.RowID != 7 {
		t.Errorf("identity = (%d,%d), want (42,7)", row.SheetID, row.RowID)
	}
	if row.SheetName != "PM Allocation - July" {
		t.Errorf("SheetName = %q", row.SheetName)
	}
	if got := row.Cells["Quantity"]; got != float64(15) {
		t.Errorf("Quantity cell = %v (%T), want 15", got, got)
	}
	if _, ok := row.Cells["orphan column"]; ok {
		t.Error("cell with unknown columnId should be dropped")
	}
	if row.Columns["Week Ending"] != 101 {
		t.Errorf("Columns[Week Ending] = %d, want 101", row.Columns["Week Ending"])
	}
}

func TestCellHistoryParsesTimestampsPermissively(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sheets/1/rows/2/columns/3/history" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"value":        10,
					"displayValue": "10",
					"modifiedAt":   "2024-07-05T09:00:00Z",
					"modifiedBy":   map[string]any{"name": "Dana", "email": "dana@example.com"},
				},
				{
					"value":      15,
					"modifiedAt": "not-a-timestamp",
					"modifiedBy": map[string]any{"name": "Sam"},
				},
			},
		})
	})

	revisions, err := client.CellHistory(context.Background(), 1, 2, 3)
	if err != nil {
		t.Fatalf("CellHistory: %v", err)
	}
	if len(revisions) != 2 {
		t.Fatalf("len(revisions) = %d, want 2", len(revisions))
	}
	if revisions[0].ModifiedAt == nil {
		t.Error("valid timestamp parsed to nil")
	}
	if revisions[0].Actor() != "dana@example.com" {
		t.Errorf("Actor = %q, want email preferred", revisions[0].Actor())
	}
	if revisions[1].ModifiedAt != nil {
		t.Error("unparseable timestamp should be nil, not dropped")
	}
	if revisions[1].Actor() != "Sam" {
		t.Errorf("Actor = %q, want name fallback", revisions[1].Actor())
	}
}

func TestErrorResponseCarriesStatusAndMessage(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"message": "maintenance window"})
	})

	_, err := client.ListSheets(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTransient(err) {
		t.Errorf("503 should classify transient, got %v", err)
	}
}

func TestAppendRowsPostsToBottom(t *testing.T) {
	var posted []map[string]any
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/sheets/9/rows" {
			t.Errorf("%s %s, want POST /sheets/9/rows", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&posted); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
	})

	err := client.AppendRows(context.Background(), 9, []NewRow{
		{Cells: map[int64]any{200: "quantity", 201: 5.0}},
	})
	if err != nil {
		t.Fatalf("AppendRows: %v", err)
	}
	if len(posted) != 1 {
		t.Fatalf("posted %d rows, want 1", len(posted))
	}
	if posted[0]["toBottom"] != true {
		t.Error("rows must append to bottom")
	}
	if cells, ok := posted[0]["cells"].([]any); !ok || len(cells) != 2 {
		t.Errorf("cells = %v, want 2 entries", posted[0]["cells"])
	}
}
