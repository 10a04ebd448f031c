package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"
)

func jsonResponse(t *testing.T, status int, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     make(http.Header),
	}
}

func TestAnomalyTrainingDataParsesSeries(t *testing.T) {
	client := NewTrainingClient("https://example.com", "/api/v1/ai/training/anomaly", "/scaling", "/rootcause", 24*time.Hour, time.Second)
	client.httpClient = newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v1/ai/training/anomaly" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["start"] == "" || body["end"] == "" {
			t.Fatalf("request must carry a time window, got %v", body)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"series": map[string]any{
				"cpu_usage": []map[string]any{
					{
						"timestamp":    "2025-06-01T00:00:00Z",
						"values":       map[string]float64{"cpu_usage": 55.2},
						"service_name": "api",
					},
				},
			},
		}), nil
	})

	data, err := client.AnomalyTrainingData(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	series := data["cpu_usage"]
	if len(series) != 1 {
		t.Fatalf("expected one point, got %d", len(series))
	}
	if series[0].Values["cpu_usage"] != 55.2 || series[0].ServiceName != "api" {
		t.Fatalf("unexpected point %+v", series[0])
	}
}

func TestScalingTrainingDataParsesPoints(t *testing.T) {
	client := NewTrainingClient("https://example.com", "/anomaly", "/api/v1/ai/training/scaling", "/rootcause", 24*time.Hour, time.Second)
	client.httpClient = newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v1/ai/training/scaling" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{
			"points": []map[string]any{
				{
					"timestamp": "2025-06-01T00:00:00Z",
					"values":    map[string]float64{"cpu_usage": 41, "memory_usage": 63},
				},
				{
					"timestamp": "2025-06-01T01:00:00Z",
					"values":    map[string]float64{"cpu_usage": 44, "memory_usage": 64},
				},
			},
		}), nil
	})

	series, err := client.ScalingTrainingData(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("expected two points, got %d", len(series))
	}
	if series[1].Values["memory_usage"] != 64 {
		t.Fatalf("unexpected point %+v", series[1])
	}
}

func TestTrainingClientRejectsEmptyResponse(t *testing.T) {
	client := NewTrainingClient("https://example.com", "/anomaly", "/scaling", "/rootcause", 24*time.Hour, time.Second)
	client.httpClient = newTestClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{"points": []any{}}), nil
	})

	if _, err := client.RootCauseTrainingData(context.Background()); err == nil {
		t.Fatal("empty point set should error")
	}
}

func TestTrainingClientSurfacesHTTPErrors(t *testing.T) {
	client := NewTrainingClient("https://example.com", "/anomaly", "/scaling", "/rootcause", 24*time.Hour, time.Second)
	client.httpClient = newTestClient(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadGateway,
			Status:     "502 Bad Gateway",
			Body:       io.NopCloser(bytes.NewReader(nil)),
			Header:     make(http.Header),
		}, nil
	})

	if _, err := client.ScalingTrainingData(context.Background()); err == nil {
		t.Fatal("HTTP failure should surface as an error")
	}
}

func TestTrainingClientRequiresBaseURL(t *testing.T) {
	client := NewTrainingClient("", "/anomaly", "/scaling", "/rootcause", 0, time.Second)
	if _, err := client.AnomalyTrainingData(context.Background()); err == nil {
		t.Fatal("missing base URL should error")
	}
}
