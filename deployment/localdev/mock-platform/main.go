// mock-platform serves synthetic training data for local engine runs. It
// implements the three training endpoints the HTTP data source expects.
package main

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/observastack/aiops-engine/internal/utils"
)

type point struct {
	Timestamp   time.Time          `json:"timestamp"`
	Values      map[string]float64 `json:"values"`
	ServiceName string             `json:"service_name,omitempty"`
	Environment string             `json:"environment,omitempty"`
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/ai/training/anomaly", func(w http.ResponseWriter, r *http.Request) {
		start, end, ok := window(w, r)
		if !ok {
			return
		}
		writeJSON(w, map[string]any{
			"series": map[string][]point{
				"cpu_usage":    hourlyPoints(start, end, "cpu_usage", 50, 10),
				"memory_usage": hourlyPoints(start, end, "memory_usage", 65, 5),
			},
		})
	})

	mux.HandleFunc("/api/v1/ai/training/scaling", func(w http.ResponseWriter, r *http.Request) {
		start, end, ok := window(w, r)
		if !ok {
			return
		}
		writeJSON(w, map[string]any{"points": resourcePoints(start, end)})
	})

	mux.HandleFunc("/api/v1/ai/training/rootcause", func(w http.ResponseWriter, r *http.Request) {
		start, end, ok := window(w, r)
		if !ok {
			return
		}
		writeJSON(w, map[string]any{"points": resourcePoints(start, end)})
	})

	logger := log.New(log.Writer(), "mock-platform ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":8080",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :8080")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

// window parses the requested time range, defaulting to the last week.
func window(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return time.Time{}, time.Time{}, false
	}
	var body struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	end, err := utils.ParseRFC3339(body.End)
	if err != nil {
		end = time.Now().UTC()
	}
	start, err := utils.ParseRFC3339(body.Start)
	if err != nil || !end.After(start) {
		start = end.Add(-7 * 24 * time.Hour)
	}
	return start, end, true
}

func hourlyPoints(start, end time.Time, metric string, base, amplitude float64) []point {
	var out []point
	for i, ts := 0, start; ts.Before(end); i, ts = i+1, ts.Add(time.Hour) {
		out = append(out, point{
			Timestamp:   ts,
			Values:      map[string]float64{metric: base + amplitude*math.Sin(float64(i)/12)},
			ServiceName: "api",
			Environment: "dev",
		})
	}
	return out
}

func resourcePoints(start, end time.Time) []point {
	var out []point
	for i, ts := 0, start; ts.Before(end); i, ts = i+1, ts.Add(time.Hour) {
		daily := math.Sin(2 * math.Pi * float64(i) / 24)
		out = append(out, point{
			Timestamp: ts,
			Values: map[string]float64{
				"cpu_usage":     50 + 10*daily,
				"memory_usage":  65 + 5*daily,
				"response_time": 400 + 150*daily,
				"throughput":    500 + 200*daily,
			},
			ServiceName: "api",
			Environment: "dev",
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
