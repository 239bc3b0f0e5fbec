package grpc

import (
	"github.com/kingland/kingland-website/diag/status"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"sync"
	"time"
)

const servicePrefix = "kingland."

// healthSync mirrors the status reporter into the gRPC health server. The overall status is
// published under the empty service name, each component under "kingland.<component>".
type healthSync struct {
	server         *health.Server
	statusReporter status.Reporter
	stop           chan struct{}
	closeOnce      sync.Once
	wg             sync.WaitGroup
}

func newHealthSync(server *health.Server, statusReporter status.Reporter, interval time.Duration) *healthSync {
	h := &healthSync{
		server:         server,
		statusReporter: statusReporter,
		stop:           make(chan struct{}),
	}
	h.refresh()
	h.wg.Add(1)
	go h.run(interval)
	return h
}

func (h *healthSync) run(interval time.Duration) {
	defer h.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.refresh()
		case <-h.stop:
			return
		}
	}
}

func (h *healthSync) refresh() {
	if h.statusReporter == nil {
		h.server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		return
	}
	stat := h.statusReporter.GetStatus()
	h.server.SetServingStatus("", servingStatus(stat.Status))
	for name, comp := range stat.Components {
		h.server.SetServingStatus(servicePrefix+name, servingStatus(comp.Status))
	}
}

func (h *healthSync) Close() {
	h.closeOnce.Do(func() {
		close(h.stop)
		h.wg.Wait()
		h.server.Shutdown()
	})
}

func servingStatus(s status.HealthStatus) healthpb.HealthCheckResponse_ServingStatus {
	switch s {
	case status.Healthy, status.Degraded:
		return healthpb.HealthCheckResponse_SERVING
	default:
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
}
