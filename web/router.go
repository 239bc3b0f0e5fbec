package web

import (
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/diag/telemetry"
	"github.com/kingland/kingland-website/internal/utils"
	"github.com/kingland/kingland-website/log"
	"github.com/kingland/kingland-website/site"
	"github.com/kingland/kingland-website/web/mware"
	"net/http"
)

// NewRouter wraps the site handler of proto with the response middlewares.
func NewRouter(siteHandler *site.Handler, proto site.Protocol, telemetryReporter telemetry.Reporter, conf *config.Config, l log.Logger) http.Handler {
	httpLog := l.WithLevel(conf.Http.Log.GetLevel()).WithPrefix(proto.String())

	handler := mware.GZip(siteHandler.For(proto))
	if len(conf.Site.Headers) > 0 {
		handler = mware.ExtraHeaders(conf.Site.Headers, handler)
		httpLog.Debugf("extra response headers: %v", utils.KeysOfMap(conf.Site.Headers))
	}
	if httpLog.Level() == log.Debug {
		handler = mware.DebugLog(httpLog, handler)
	}
	handler = telemetryReporter.InstrumentHttp(proto.String(), handler)
	httpLog.Reportf("serving the site over %s", proto)
	return handler
}
