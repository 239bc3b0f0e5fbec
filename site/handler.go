package site

import (
	"github.com/kingland/kingland-website/config"
	"github.com/kingland/kingland-website/diag/telemetry"
	"github.com/kingland/kingland-website/flags"
	"github.com/kingland/kingland-website/log"
	"net/http"
	"strings"
)

const (
	RouteIndex    = "index"
	RouteFavicon  = "favicon"
	RouteInvite   = "invite"
	RouteRedirect = "redirect"
)

var Routes = []string{RouteIndex, RouteFavicon, RouteInvite, RouteRedirect}

const reasonInvite = "invite"

var invitePaths = map[string]struct{}{
	"/discord": {},
	"/dc":      {},
	"/invite":  {},
	"/invites": {},
}

type VisitRecorder interface {
	Record(route string)
}

type Handler struct {
	conf      *config.SiteConfig
	content   ContentSource
	flags     flags.Provider
	visits    VisitRecorder
	telemetry telemetry.Reporter
	log       log.Logger
}

func NewHandler(conf *config.SiteConfig, content ContentSource, flagsProvider flags.Provider, visits VisitRecorder, telemetryReporter telemetry.Reporter, log log.Logger) *Handler {
	return &Handler{
		conf:      conf,
		content:   content,
		flags:     flagsProvider,
		visits:    visits,
		telemetry: telemetryReporter,
		log:       log.WithPrefix("site"),
	}
}

// For returns the handler of requests arriving over proto.
func (h *Handler) For(proto Protocol) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.telemetry.StartSpan(r.Context(), "site.serve", telemetry.NewKV("site.proto", proto.String()))
		defer span.End()
		h.serve(w, r.WithContext(ctx), proto)
	}
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, proto Protocol) {
	if h.flags.CanonicalRedirects(h.conf.CanonicalRedirects) {
		location, reason := Canonicalize(r.Host, r.URL.RequestURI(), proto, h.conf.Domain, h.conf.ForceHttps)
		if location != "" {
			h.log.Debugf("redirecting %s://%s%s to %s (%s)", proto, r.Host, r.URL.RequestURI(), location, reason)
			h.route(r, RouteRedirect)
			h.telemetry.AddRedirect(reason)
			redirect(w, location)
			return
		}
	}

	content := h.content.Current()
	if r.Method == http.MethodGet {
		if r.URL.Path == "/favicon" {
			if val, ok := faviconQuery(r.URL.RawQuery); ok {
				if favicon, err := ParseFaviconType(val); err == nil {
					h.route(r, RouteFavicon)
					h.telemetry.AddFaviconServed(favicon.String())
					serveAsset(w, r, content.Favicons[favicon])
					return
				}
			}
		}
		if _, ok := invitePaths[r.URL.Path]; ok {
			h.route(r, RouteInvite)
			h.telemetry.AddRedirect(reasonInvite)
			redirect(w, h.flags.InviteUrl(h.conf.InviteUrl))
			return
		}
	}
	h.route(r, RouteIndex)
	serveAsset(w, r, content.Index)
}

func (h *Handler) route(r *http.Request, route string) {
	telemetry.LabelRoute(r.Context(), route)
	if h.visits != nil {
		h.visits.Record(route)
	}
}

func redirect(w http.ResponseWriter, location string) {
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusMovedPermanently)
}

func serveAsset(w http.ResponseWriter, r *http.Request, asset Asset) {
	w.Header().Set("Cache-Control", "max-age=0, must-revalidate")
	w.Header().Set("ETag", asset.Etag)
	if etagMatches(r.Header.Get("If-None-Match"), asset.Etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", asset.ContentType)
	_, _ = w.Write(asset.Body)
}

// etagMatches applies the weak comparison of If-None-Match to a comma separated list of tags or "*".
func etagMatches(ifNoneMatch string, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}
