package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"modelkeep/internal/api"
	"modelkeep/internal/client"
)

func TestSearchEncodesQueryAndDecodesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/item" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("search") != "red cat" || q.Get("page") != "2" || q.Get("tag_only") != "true" {
			t.Errorf("query = %v", q)
		}
		json.NewEncoder(w).Encode(api.SearchResponse{
			Items:     []api.ModelInfo{{ID: 5, Name: "red cat"}},
			TotalPage: 3,
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	res, err := c.Search(context.Background(), client.SearchQuery{Text: "red cat", Page: 2, TagOnly: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].ID != 5 || res.TotalPage != 3 {
		t.Fatalf("response = %+v", res)
	}
}

func TestSearchSurfacesBodyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.SearchResponse{Err: "store unavailable"})
	}))
	defer srv.Close()

	if _, err := client.New(srv.URL).Search(context.Background(), client.SearchQuery{Text: "x"}); err == nil || err.Error() != "store unavailable" {
		t.Fatalf("err = %v", err)
	}
}

func TestStartCheckPostsAndReturnsMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/maintenance/check" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(api.CommonResponse{Msg: "Check started"})
	}))
	defer srv.Close()

	msg, err := client.New(srv.URL).StartCheck(context.Background())
	if err != nil {
		t.Fatalf("StartCheck: %v", err)
	}
	if msg != "Check started" {
		t.Errorf("msg = %q", msg)
	}
}

func TestRemoveSendsRepeatedIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query()["id"]; len(got) != 2 || got[0] != "4" || got[1] != "7" {
			t.Errorf("ids = %v", r.URL.Query()["id"])
		}
		json.NewEncoder(w).Encode(api.CommonResponse{Msg: "Removed"})
	}))
	defer srv.Close()

	if err := client.New(srv.URL).Remove(context.Background(), []int64{4, 7}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

func TestDownloadPassesParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("url") != "https://example.com/dl" || q.Get("blake3") != "aa" || q.Get("model_type") != "LORA" {
			t.Errorf("query = %v", q)
		}
		json.NewEncoder(w).Encode(api.CommonResponse{Msg: "Downloading in background"})
	}))
	defer srv.Close()

	msg, err := client.New(srv.URL).Download(context.Background(), client.DownloadRequest{
		URL:       "https://example.com/dl",
		Name:      "m.safetensors",
		Hash:      "aa",
		ModelType: "LORA",
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if msg != "Downloading in background" {
		t.Errorf("msg = %q", msg)
	}
}

func TestFollowEventsSkipsPings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"level\":\"info\",\"msg\":\"connected\"}\n\n")
		fmt.Fprint(w, ": ping\n\n")
		fmt.Fprint(w, "data: {\"level\":\"error\",\"msg\":\"boom\"}\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []api.EventMessage
	err := client.New(srv.URL).FollowEvents(ctx, func(msg api.EventMessage) {
		got = append(got, msg)
	})
	if err != nil && ctx.Err() == nil {
		t.Fatalf("FollowEvents: %v", err)
	}
	if len(got) != 2 || got[0].Text != "connected" || got[1].Level != "error" {
		t.Fatalf("events = %+v", got)
	}
}

func TestFollowEventsOutlivesRequestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"level\":\"info\",\"msg\":\"connected\"}\n\n")
		flusher.Flush()
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, "data: {\"level\":\"info\",\"msg\":\"late frame\"}\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The request/response client times out well before the second frame
	// arrives; the stream must keep reading regardless.
	c := client.New(srv.URL, client.WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	var got []api.EventMessage
	err := c.FollowEvents(ctx, func(msg api.EventMessage) {
		got = append(got, msg)
	})
	if err != nil && ctx.Err() == nil {
		t.Fatalf("FollowEvents: %v", err)
	}
	if len(got) != 2 || got[1].Text != "late frame" {
		t.Fatalf("events = %+v", got)
	}
}

func TestUnreachableDaemonWrapsSentinel(t *testing.T) {
	c := client.New("127.0.0.1:1")
	_, err := c.Status(context.Background())
	if !errors.Is(err, client.ErrDaemonUnavailable) {
		t.Fatalf("err = %v, want ErrDaemonUnavailable", err)
	}
}
