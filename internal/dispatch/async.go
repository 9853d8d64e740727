package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"sqlgateway/internal/catalog"
	"sqlgateway/internal/logger"
)

// asyncJob tracks one in-flight or completed async submission.
type asyncJob struct {
	RequestID   string     `json:"requestId"`
	Status      string     `json:"status"` // PENDING, DONE, FAILED
	SubmittedAt time.Time  `json:"submittedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// asyncRegistry tracks async job state in memory, addressed by requestId.
type asyncRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*asyncJob
}

func newAsyncRegistry() *asyncRegistry {
	return &asyncRegistry{jobs: map[string]*asyncJob{}}
}

func (a *asyncRegistry) create() *asyncJob {
	job := &asyncJob{
		RequestID:   uuid.NewString(),
		Status:      "PENDING",
		SubmittedAt: time.Now().UTC(),
	}
	a.mu.Lock()
	a.jobs[job.RequestID] = job
	a.mu.Unlock()
	return job
}

func (a *asyncRegistry) get(requestID string) (*asyncJob, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	job, ok := a.jobs[requestID]
	return job, ok
}

func (a *asyncRegistry) complete(requestID string, result any, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	job, ok := a.jobs[requestID]
	if !ok {
		return
	}
	now := time.Now().UTC()
	job.CompletedAt = &now
	if err != nil {
		job.Status = "FAILED"
		job.Error = err.Error()
		return
	}
	job.Status = "DONE"
	job.Result = result
}

// submitAsync writes the 202 Accepted envelope and runs work in the
// background, recording its outcome under a freshly minted UUID v4
// requestId for later polling.
func (e *Engine) submitAsync(w http.ResponseWriter, r *http.Request, endpoint catalog.EndpointSpec, work func(ctx context.Context) (any, error)) {
	job := e.async.create()

	go func() {
		defer func() {
			if p := recover(); p != nil {
				logger.WithComponent("dispatch").Error("async job panicked", "request_id", job.RequestID, "panic", p)
				e.async.complete(job.RequestID, nil, errPanic)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		result, err := work(ctx)
		e.async.complete(job.RequestID, result, err)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"message":   "request accepted for asynchronous processing",
		"requestId": job.RequestID,
		"endpoint":  endpoint.Name,
		"timestamp": job.SubmittedAt.UnixMilli(),
	})
}

var errPanic = panicError{}

type panicError struct{}

func (panicError) Error() string { return "async job panicked" }
