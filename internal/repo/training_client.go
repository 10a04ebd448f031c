package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/observastack/aiops-engine/internal/models"
)

// TrainingClient fetches training windows from the platform's aggregation
// API. It satisfies the scheduler's DataSource.
type TrainingClient struct {
	baseURL       string
	anomalyPath   string
	scalingPath   string
	rootCausePath string
	window        time.Duration
	httpClient    *http.Client
}

// NewTrainingClient constructs a client targeting the configured platform
// instance. window controls how far back each training fetch reaches.
func NewTrainingClient(baseURL, anomalyPath, scalingPath, rootCausePath string, window, timeout time.Duration) *TrainingClient {
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return &TrainingClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		anomalyPath:   anomalyPath,
		scalingPath:   scalingPath,
		rootCausePath: rootCausePath,
		window:        window,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type pointPayload struct {
	Timestamp   time.Time          `json:"timestamp"`
	Values      map[string]float64 `json:"values"`
	ServiceName string             `json:"service_name,omitempty"`
	Environment string             `json:"environment,omitempty"`
}

func toSeries(points []pointPayload) models.Series {
	s := make(models.Series, 0, len(points))
	for _, p := range points {
		s = append(s, models.MetricPoint{
			Timestamp:   p.Timestamp,
			Values:      p.Values,
			ServiceName: p.ServiceName,
			Environment: p.Environment,
		})
	}
	return s
}

// AnomalyTrainingData fetches per-metric series for detector training.
func (c *TrainingClient) AnomalyTrainingData(ctx context.Context) (map[string]models.Series, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("training data base URL not configured")
	}

	var response struct {
		Series map[string][]pointPayload `json:"series"`
	}
	if err := c.postJSON(ctx, c.resolvePath(c.anomalyPath), c.windowPayload(), &response); err != nil {
		return nil, fmt.Errorf("anomaly training request failed: %w", err)
	}
	if len(response.Series) == 0 {
		return nil, fmt.Errorf("anomaly training request returned no series")
	}

	out := make(map[string]models.Series, len(response.Series))
	for metric, points := range response.Series {
		out[metric] = toSeries(points)
	}
	return out, nil
}

// ScalingTrainingData fetches the resource usage series for the forecaster.
func (c *TrainingClient) ScalingTrainingData(ctx context.Context) (models.Series, error) {
	return c.fetchSeries(ctx, c.scalingPath, "scaling")
}

// RootCauseTrainingData fetches the incident window series for the analyzer.
func (c *TrainingClient) RootCauseTrainingData(ctx context.Context) (models.Series, error) {
	return c.fetchSeries(ctx, c.rootCausePath, "root cause")
}

func (c *TrainingClient) fetchSeries(ctx context.Context, p, kind string) (models.Series, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("training data base URL not configured")
	}

	var response struct {
		Points []pointPayload `json:"points"`
	}
	if err := c.postJSON(ctx, c.resolvePath(p), c.windowPayload(), &response); err != nil {
		return nil, fmt.Errorf("%s training request failed: %w", kind, err)
	}
	if len(response.Points) == 0 {
		return nil, fmt.Errorf("%s training request returned no points", kind)
	}
	return toSeries(response.Points), nil
}

func (c *TrainingClient) windowPayload() map[string]any {
	end := time.Now().UTC()
	start := end.Add(-c.window)
	return map[string]any{
		"start": start.Format(time.RFC3339),
		"end":   end.Format(time.RFC3339),
	}
}

func (c *TrainingClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *TrainingClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("training data API returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
