package status

import (
	"fmt"
	"net/http"
)

type clientInterceptor struct {
	http.RoundTripper

	reporter  Reporter
	component string
}

// InterceptClient reports the outcome of every round trip made through transport to component.
func InterceptClient(component string, reporter Reporter, transport http.RoundTripper) http.RoundTripper {
	return &clientInterceptor{reporter: reporter, RoundTripper: transport, component: component}
}

func (i *clientInterceptor) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := i.RoundTripper.RoundTrip(r)
	if err != nil {
		i.reporter.ReportError(i.component, "remote fetch failed")
	} else {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			i.reporter.ReportOk(i.component, "remote fetched")
		} else if resp.StatusCode == http.StatusNotModified {
			i.reporter.ReportOk(i.component, "remote not modified")
		} else {
			i.reporter.ReportError(i.component, fmt.Sprintf("unexpected response received: %s", resp.Status))
		}
	}
	return resp, err
}
