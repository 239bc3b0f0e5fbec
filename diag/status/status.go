package status

import (
	"encoding/json"
	"github.com/kingland/kingland-website/config"
	"net/http"
	"slices"
	"sync"
	"time"
)

type HealthStatus string

const (
	Http  = "http"
	Https = "https"
	Tls   = "tls"
	Flags = "flags"
	Stats = "stats"

	Healthy      HealthStatus = "healthy"
	Degraded     HealthStatus = "degraded"
	Initializing HealthStatus = "initializing"
	Down         HealthStatus = "down"
)

const maxRecordCount = 5
const maxLastErrorsMeaningDegraded = 2

type Reporter interface {
	RegisterComponent(component string)
	ReportOk(component string, message string)
	ReportError(component string, message string)
	GetStatus() Status

	HttpHandler() http.HandlerFunc
}

type Status struct {
	Status     HealthStatus                `json:"status"`
	Components map[string]*ComponentStatus `json:"components"`
}

type ComponentStatus struct {
	Status  HealthStatus `json:"status"`
	Records []string     `json:"records"`
}

type record struct {
	time    time.Time
	isError bool
	message string
}

type reporter struct {
	records map[string][]record
	mu      sync.RWMutex
	status  Status
}

func NewEmptyReporter() Reporter {
	return &reporter{
		records: make(map[string][]record),
		status:  Status{Status: Healthy, Components: make(map[string]*ComponentStatus)},
	}
}

func NewReporter(conf *config.Config) Reporter {
	r := NewEmptyReporter()
	if conf.Http.Enabled {
		r.RegisterComponent(Http)
	}
	if conf.Https.Enabled {
		r.RegisterComponent(Https)
		r.RegisterComponent(Tls)
	}
	if conf.Flags.Enabled {
		r.RegisterComponent(Flags)
	}
	if conf.Stats.Enabled {
		r.RegisterComponent(Stats)
	}
	return r
}

func (r *reporter) RegisterComponent(component string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.status.Components[component]; ok {
		return
	}
	r.status.Components[component] = &ComponentStatus{Status: Initializing}
	r.status.Status = r.overallStatus()
}

func (r *reporter) ReportOk(component string, message string) {
	r.appendRecord(component, "[ok] "+message, false)
}

func (r *reporter) ReportError(component string, message string) {
	r.appendRecord(component, "[error] "+message, true)
}

func (r *reporter) HttpHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status, err := json.Marshal(r.GetStatus())
		if err != nil {
			http.Error(w, "Error producing status", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(status)
	}
}

func (r *reporter) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := Status{Status: r.status.Status, Components: make(map[string]*ComponentStatus, len(r.status.Components))}
	for name, comp := range r.status.Components {
		result.Components[name] = &ComponentStatus{Status: comp.Status, Records: slices.Clone(comp.Records)}
	}
	return result
}

func (r *reporter) checkStatus(records []record) ([]string, HealthStatus) {
	length := len(records)
	targetRecords := make([]string, length)
	var errorCount = 0
	for i, msg := range records {
		targetRecords[i] = msg.time.UTC().Format(time.RFC1123) + ": " + msg.message
		if i >= length-maxLastErrorsMeaningDegraded {
			if msg.isError {
				errorCount++
			} else {
				errorCount--
			}
		}
	}
	if errorCount > 0 && errorCount >= min(maxLastErrorsMeaningDegraded, length) {
		return targetRecords, Degraded
	}
	return targetRecords, Healthy
}

func (r *reporter) appendRecord(component string, message string, isError bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	comp, ok := r.status.Components[component]
	if !ok {
		return
	}
	recs, ok := r.records[component]
	if !ok {
		recs = make([]record, 0, maxRecordCount)
	}
	recs = append(recs, record{time: time.Now(), isError: isError, message: message})
	if len(recs) > maxRecordCount {
		recs = recs[1:]
	}
	r.records[component] = recs

	rec, stat := r.checkStatus(recs)
	comp.Records = rec
	if stat == Degraded && (comp.Status == Initializing || comp.Status == Down) {
		stat = Down
	}
	comp.Status = stat
	r.status.Status = r.overallStatus()
}

// overallStatus picks the worst status among the registered components.
func (r *reporter) overallStatus() HealthStatus {
	result := Healthy
	for _, comp := range r.status.Components {
		if weight(comp.Status) > weight(result) {
			result = comp.Status
		}
	}
	return result
}

func weight(s HealthStatus) int {
	switch s {
	case Down:
		return 3
	case Degraded:
		return 2
	case Initializing:
		return 1
	default:
		return 0
	}
}
