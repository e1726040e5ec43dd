package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"arenakit/core"
)

func TestSink_HandlePostsToEndpoints(t *testing.T) {
	var hits int32
	var got core.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		_ = json.Unmarshal(body, &got)
	}))
	defer srv.Close()

	sink := New([]string{srv.URL})
	sink.Handle(context.Background(), core.NewPlayersUpdated("u1", []core.Player{{ID: "u1", Level: 1}}))

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", hits)
	}
	if got.Type != core.EventPlayersUpdated || got.PlayerID != "u1" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestSink_TopicFilter(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	sink := New([]string{srv.URL}, WithTopics(core.EventChatUpdated))
	sink.Handle(context.Background(), core.NewPlayersUpdated("u1", nil))
	sink.Handle(context.Background(), core.NewChatUpdated("g1", nil))

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected only chat event delivered, got %d hits", hits)
	}
}

func TestSink_FailingEndpointDoesNotBlockOthers(t *testing.T) {
	var good int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&good, 1)
	}))
	defer ok.Close()

	sink := New([]string{bad.URL, ok.URL})
	sink.Handle(context.Background(), core.NewLeaderboardUpdated(nil))

	if atomic.LoadInt32(&good) != 1 {
		t.Fatalf("expected healthy endpoint to receive the event")
	}
}

func TestSink_NoEndpoints(t *testing.T) {
	New(nil).Handle(context.Background(), core.NewLeaderboardUpdated(nil))
}
