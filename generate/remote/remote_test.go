package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/generate"
	"github.com/garagescholars/garage-tech-stack-sub001/generate/remote"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	jobID := id.NewJobID()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["jobId"] != jobID.String() || req["adminNotes"] != "more bins" {
			t.Errorf("request = %v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "generatedText": "## 1. A\nbody"})
	}))
	defer srv.Close()

	res, err := remote.New(srv.URL).Generate(context.Background(), generate.Request{JobID: jobID, AdminNotes: "more bins"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK || res.GeneratedText != "## 1. A\nbody" {
		t.Errorf("result = %+v", res)
	}
}

func TestGenerateFailures(t *testing.T) {
	t.Parallel()

	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()
		_, err := remote.New(srv.URL).Generate(context.Background(), generate.Request{JobID: id.NewJobID()})
		if !errors.Is(err, fieldwork.ErrGenerationFailed) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := remote.New(srv.URL).Generate(ctx, generate.Request{JobID: id.NewJobID()})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want deadline exceeded", err)
		}
	})
}
