package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/function61/gokit/logex"
	"github.com/function61/lovebeat/pkg/lbdomain"
	"github.com/function61/lovebeat/pkg/lbstate"
	"github.com/function61/lovebeat/pkg/lbtypes"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type restApi struct {
	app  *lbstate.App
	now  func() time.Time
	logl *logex.Leveled
}

// registry can be nil (Lambda has nobody to scrape it)
func newRestApi(app *lbstate.App, registry *prometheus.Registry, now func() time.Time) http.Handler {
	api := &restApi{
		app:  app,
		now:  now,
		logl: logex.Levels(app.Logger),
	}

	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard/all/raw", http.StatusFound)
	})

	r.Route("/s/{id}", func(r chi.Router) {
		// GET is for clients that can only do GET
		r.Get("/", api.trigger)
		r.Post("/", api.trigger)
		r.Get("/trigger", api.trigger)
		r.Post("/trigger", api.trigger)
		r.Get("/maint", api.maint)
		r.Post("/maint", api.maint)
		r.Get("/unmaint", api.unmaint)
		r.Post("/unmaint", api.unmaint)
		r.Post("/delete", api.delete)
		r.Get("/json", api.service)
		r.Get("/history", api.history)
	})

	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/", api.labels)
		r.Get("/{label}/json", api.dashboardJson)
		r.Get("/{label}/raw", api.dashboardRaw)
		r.Get("/{label}/status", api.dashboardStatus)
	})

	r.Get("/l/{label}", api.labelConfig)
	r.Post("/l/{label}", api.setLabelConfig)

	r.Route("/agent/{agent}", func(r chi.Router) {
		r.Post("/claim/{id}/{incident}/{status}", api.agentAction(api.app.Claim))
		r.Post("/confirm/{id}/{incident}/{status}", api.agentAction(api.app.Confirm))
		r.Get("/alerts.txt", api.alertsTxt)
		r.Get("/alerts.json", api.alertsJson)
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return r
}

// mutations run to completion even if the client hangs up
func mutationCtx(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (a *restApi) trigger(w http.ResponseWriter, r *http.Request) {
	req, err := parseTriggerRequest(r)
	if err != nil {
		a.httpError(w, err)
		return
	}

	if err := a.app.Trigger(mutationCtx(r), chi.URLParam(r, "id"), req, a.now()); err != nil {
		a.httpError(w, err)
		return
	}

	respondOk(w, r)
}

func (a *restApi) maint(w http.ResponseWriter, r *http.Request) {
	req, err := parseMaintRequest(r)
	if err != nil {
		a.httpError(w, err)
		return
	}

	if err := a.app.Maint(
		mutationCtx(r),
		chi.URLParam(r, "id"),
		req.TypeOrDefault(),
		req.ExpiryOrDefault(),
		a.now(),
	); err != nil {
		a.httpError(w, err)
		return
	}

	respondOk(w, r)
}

func (a *restApi) unmaint(w http.ResponseWriter, r *http.Request) {
	if err := a.app.Unmaint(mutationCtx(r), chi.URLParam(r, "id")); err != nil {
		a.httpError(w, err)
		return
	}

	respondOk(w, r)
}

func (a *restApi) delete(w http.ResponseWriter, r *http.Request) {
	if err := a.app.Delete(mutationCtx(r), chi.URLParam(r, "id")); err != nil {
		a.httpError(w, err)
		return
	}

	respondOk(w, r)
}

func (a *restApi) service(w http.ResponseWriter, r *http.Request) {
	service, err := a.app.Get(r.Context(), chi.URLParam(r, "id"), a.now())
	if err != nil {
		a.httpError(w, err)
		return
	}

	handleJsonOutput(w, service)
}

func (a *restApi) history(w http.ResponseWriter, r *http.Request) {
	history, err := a.app.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.httpError(w, err)
		return
	}

	handleJsonOutput(w, history)
}

func (a *restApi) labels(w http.ResponseWriter, r *http.Request) {
	labels, err := a.app.Labels(r.Context())
	if err != nil {
		a.httpError(w, err)
		return
	}

	handleJsonOutput(w, lbtypes.LabelsResponse{Labels: labels})
}

// listing re-evaluates, so it may write (status changes, new incidents)
func (a *restApi) listServices(w http.ResponseWriter, r *http.Request) ([]lbstate.ServiceView, bool) {
	label := chi.URLParam(r, "label")
	if err := lbdomain.ValidateLabel(label); err != nil {
		a.httpError(w, err)
		return nil, false
	}

	services, err := a.app.ListServices(mutationCtx(r), label, a.now())
	if err != nil {
		a.httpError(w, err)
		return nil, false
	}

	noCacheHeaders(w)

	return services, true
}

func (a *restApi) dashboardJson(w http.ResponseWriter, r *http.Request) {
	if services, ok := a.listServices(w, r); ok {
		handleJsonOutput(w, lbtypes.ServicesResponse{Services: services})
	}
}

func (a *restApi) dashboardRaw(w http.ResponseWriter, r *http.Request) {
	if services, ok := a.listServices(w, r); ok {
		handleTextOutput(w, renderRawDashboard(services))
	}
}

func (a *restApi) dashboardStatus(w http.ResponseWriter, r *http.Request) {
	if services, ok := a.listServices(w, r); ok {
		handleTextOutput(w, lbstate.AggregateStatus(services))
	}
}

func (a *restApi) labelConfig(w http.ResponseWriter, r *http.Request) {
	conf, err := a.app.LabelConfig(r.Context(), chi.URLParam(r, "label"))
	if err != nil {
		a.httpError(w, err)
		return
	}

	handleJsonOutput(w, conf)
}

func (a *restApi) setLabelConfig(w http.ResponseWriter, r *http.Request) {
	conf, err := parseLabelConfig(r)
	if err != nil {
		a.httpError(w, err)
		return
	}

	if err := a.app.SetLabelConfig(mutationCtx(r), chi.URLParam(r, "label"), conf); err != nil {
		a.httpError(w, err)
		return
	}

	respondOk(w, r)
}

type agentActionFn func(ctx context.Context, agent string, id string, incidentId int64, status lbdomain.Status) (lbdomain.AgentResult, error)

// answers with the bare result: ok, already_claimed or already_confirmed
func (a *restApi) agentAction(action agentActionFn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		incidentId, err := strconv.ParseInt(chi.URLParam(r, "incident"), 10, 64)
		if err != nil {
			a.httpError(w, fmt.Errorf("%w: incident id: %v", lbdomain.ErrValidation, err))
			return
		}

		result, err := action(
			mutationCtx(r),
			chi.URLParam(r, "agent"),
			chi.URLParam(r, "id"),
			incidentId,
			lbdomain.Status(chi.URLParam(r, "status")))
		if err != nil {
			a.httpError(w, err)
			return
		}

		handleTextOutput(w, string(result))
	}
}

func (a *restApi) alertFeed(w http.ResponseWriter, r *http.Request) ([]lbstate.FeedItem, bool) {
	feed, err := a.app.AlertFeed(mutationCtx(r), chi.URLParam(r, "agent"), a.now())
	if err != nil {
		a.httpError(w, err)
		return nil, false
	}

	noCacheHeaders(w)

	return feed, true
}

func (a *restApi) alertsTxt(w http.ResponseWriter, r *http.Request) {
	if feed, ok := a.alertFeed(w, r); ok {
		handleTextOutput(w, renderAlertsTxt(feed))
	}
}

func (a *restApi) alertsJson(w http.ResponseWriter, r *http.Request) {
	if feed, ok := a.alertFeed(w, r); ok {
		handleJsonOutput(w, feed)
	}
}

func (a *restApi) httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lbdomain.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, lbdomain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		a.logl.Error.Printf("%v", err)

		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// JSON clients get "{}", everybody else "ok"
func respondOk(w http.ResponseWriter, r *http.Request) {
	if isJsonRequest(r) {
		handleJsonOutput(w, lbtypes.OkResponse{})
		return
	}

	handleTextOutput(w, "ok\n")
}

func handleJsonOutput(w http.ResponseWriter, output interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(output); err != nil {
		panic(err)
	}
}

func handleTextOutput(w http.ResponseWriter, output string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	fmt.Fprint(w, output)
}

func noCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, must-revalidate")
}
