package stats

import (
	"context"
	"encoding/json"
	"github.com/kingland/kingland-website/diag/status"
	"github.com/kingland/kingland-website/log"
	"net/http"
	"sync"
	"time"
)

const queueSize = 1024

// Recorder counts visits in the background so that recording never blocks a request.
type Recorder struct {
	store          Store
	statusReporter status.Reporter
	log            log.Logger

	visits    chan string
	closed    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	healthy   bool
}

func NewRecorder(store Store, statusReporter status.Reporter, log log.Logger) *Recorder {
	r := &Recorder{
		store:          store,
		statusReporter: statusReporter,
		log:            log.WithPrefix("stats"),
		visits:         make(chan string, queueSize),
		closed:         make(chan struct{}),
		done:           make(chan struct{}),
	}
	go r.run()
	return r
}

// Record queues a visit of route. The visit is dropped when the queue is full or the recorder is closed.
func (r *Recorder) Record(route string) {
	select {
	case <-r.closed:
		return
	default:
	}
	select {
	case r.visits <- route:
	default:
		r.log.Debugf("visit queue is full, dropping visit of %s", route)
	}
}

func (r *Recorder) Counts(ctx context.Context, keys []string) (map[string]int64, error) {
	result := make(map[string]int64, len(keys))
	for _, key := range keys {
		count, err := r.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		result[key] = count
	}
	return result, nil
}

func (r *Recorder) HttpHandler(keys []string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		counts, err := r.Counts(req.Context(), keys)
		if err != nil {
			r.log.Errorf("failed to read visit counters: %s", err)
			http.Error(w, "Error reading visit counters", http.StatusInternalServerError)
			return
		}
		data, err := json.Marshal(counts)
		if err != nil {
			http.Error(w, "Error producing visit counters", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	}
}

// Close stops accepting visits, flushes the queued ones and shuts down the store.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.closed)
		<-r.done
		r.store.Shutdown()
		r.log.Reportf("shutdown complete")
	})
}

func (r *Recorder) run() {
	defer close(r.done)
	for {
		select {
		case route := <-r.visits:
			r.increment(route)
		case <-r.closed:
			for {
				select {
				case route := <-r.visits:
					r.increment(route)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) increment(route string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.store.Increment(ctx, route); err != nil {
		r.log.Errorf("failed to record visit of %s: %s", route, err)
		r.statusReporter.ReportError(status.Stats, "failed to record visit: "+err.Error())
		r.healthy = false
		return
	}
	if !r.healthy {
		r.healthy = true
		r.statusReporter.ReportOk(status.Stats, "recording visits")
	}
}
