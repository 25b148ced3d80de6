package replicate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseModel(t *testing.T) {
	tests := []struct {
		in      string
		want    ModelRef
		wantErr bool
	}{
		{"suno/bark:b762", ModelRef{"suno", "bark", "b762"}, false},
		{"suno/bark/b762", ModelRef{"suno", "bark", "b762"}, false},
		{"suno/bark", ModelRef{"suno", "bark", ""}, false},
		{"bark", ModelRef{}, true},
		{"/bark", ModelRef{}, true},
		{"a/b/c/d", ModelRef{}, true},
	}
	for _, tt := range tests {
		got, err := ParseModel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseModel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseModel(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestRun_VersionedPolls(t *testing.T) {
	var polls atomic.Int32
	var created map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/predictions":
			json.NewDecoder(r.Body).Decode(&created)
			w.Write([]byte(`{"id":"p1","status":"starting"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/predictions/p1":
			if polls.Add(1) < 2 {
				w.Write([]byte(`{"id":"p1","status":"processing"}`))
				return
			}
			w.Write([]byte(`{"id":"p1","status":"succeeded","output":["https://cdn/video.mp4"]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("r8", srv.URL, time.Second)
	c.SetPollInterval(time.Millisecond)

	out, err := c.Run(context.Background(), "anotherjesse/zeroscope-v2-xl:9f74", map[string]any{"prompt": "waves", "fps": 30})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(out) != `["https://cdn/video.mp4"]` {
		t.Errorf("output = %s", out)
	}
	if created["version"] != "9f74" {
		t.Errorf("version = %v", created["version"])
	}
	input := created["input"].(map[string]any)
	if input["prompt"] != "waves" {
		t.Errorf("input = %v", input)
	}
}

func TestRun_OfficialModelFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models/black-forest-labs/flux/predictions" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"id":"p2","status":"failed","error":"NSFW"}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("r8", srv.URL, time.Second)
	if _, err := c.Run(context.Background(), "black-forest-labs/flux", nil); err == nil {
		t.Fatal("expected error for failed prediction")
	}
}

func TestVersionExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models/suno/bark/versions/b762" {
			w.Write([]byte(`{"id":"b762"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("r8", srv.URL, time.Second)
	if ok, err := c.VersionExists(context.Background(), "suno/bark:b762"); err != nil || !ok {
		t.Errorf("existing version: ok=%v err=%v", ok, err)
	}
	if ok, _ := c.VersionExists(context.Background(), "suno/bark:zzz"); ok {
		t.Error("missing version reported as existing")
	}
	if ok, _ := c.VersionExists(context.Background(), "suno/bark"); ok {
		t.Error("unversioned model reported as existing")
	}
}
