// Package http provides HTTP transport for report triggering and retrieval
package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"storewatch/internal/modkit/httpkit"
	perr "storewatch/internal/platform/errors"
	phttp "storewatch/internal/platform/net/http"
	"storewatch/internal/platform/net/http/bind"

	dom "storewatch/internal/services/reports/domain"

	"github.com/go-chi/chi/v5"
)

// Ports are the service ports the transport depends on
type Ports struct {
	Trigger  dom.TriggerPort
	Status   dom.StatusPort
	Artifact dom.ArtifactPort
}

type handlers struct{ ports Ports }

// Register mounts the report endpoints on the given router
func Register(r httpkit.Router, p Ports) {
	h := &handlers{ports: p}

	r.Post("/trigger_report", httpkit.Handle(h.trigger))
	r.Get("/get_report", httpkit.Handle(h.status))
	r.Get("/get_report/{report_id}", httpkit.Handle(h.status))
	r.Get("/files/reports/{name}", h.download)
}

// TriggerRequest is the optional trigger body
// swagger:model
type TriggerRequest struct {
	MaxStores int `json:"max_stores" validate:"omitempty,min=1" example:"100"`
}

// TriggerResponse acknowledges a queued report run
type TriggerResponse struct {
	ReportID string `json:"report_id" example:"7b0a9c52-6c85-4f45-9ee1-6d2f69e3a2a0"`
	Status   string `json:"status"    example:"PENDING"`
	Message  string `json:"message"   example:"report generation queued"`
}

// StatusResponse is the public state of a report
type StatusResponse struct {
	ReportID string `json:"report_id" example:"7b0a9c52-6c85-4f45-9ee1-6d2f69e3a2a0"`
	Status   string `json:"status"    example:"Running"`
	URL      string `json:"url,omitempty" example:"/files/reports/7b0a9c52-6c85-4f45-9ee1-6d2f69e3a2a0.csv"`
}

// swagger:route POST /trigger_report Reports reportsTrigger
// @Summary Trigger report generation (idempotent while a run is active)
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body TriggerRequest false "Optional knobs"
// @Success 202 {object} TriggerResponse "queued"
// @Header 202 {string} Retry-After "suggested poll delay in seconds"
// @Router /trigger_report [post]
func (h *handlers) trigger(r *http.Request) httpkit.Response {
	in, err := bind.ParseJSON[TriggerRequest](r, bind.JSONOptions{
		MaxBytes:        1 << 20,
		DisallowUnknown: true,
		AllowEmptyBody:  true, // a bare POST is the common case
	})
	if err != nil {
		return httpkit.Error(err)
	}

	res, err := h.ports.Trigger.Trigger(r.Context(), dom.TriggerArgs{MaxStores: in.MaxStores})
	if err != nil {
		return httpkit.Error(err)
	}

	msg := "report generation queued"
	if res.Existing {
		msg = "report generation already in progress"
	}
	return httpkit.Accepted(TriggerResponse{
		ReportID: res.ReportID,
		Status:   string(res.Status),
		Message:  msg,
	}).WithHeader("Retry-After", "60")
}

// swagger:route GET /get_report Reports reportsStatus
// @Summary Report status and download URL once complete
// @Tags Reports
// @Produce json
// @Param report_id query string false "Report id (or use the path form)"
// @Success 200 {object} StatusResponse "ok"
// @Header 200 {string} Retry-After "present while the report is still running"
// @Router /get_report [get]
func (h *handlers) status(r *http.Request) httpkit.Response {
	id := chi.URLParam(r, "report_id")
	if id == "" {
		id = r.URL.Query().Get("report_id")
	}

	res, err := h.ports.Status.Status(r.Context(), id)
	if err != nil {
		return httpkit.Error(err)
	}

	out := StatusResponse{
		ReportID: res.ReportID,
		Status:   res.Status.Display(),
		URL:      res.URL,
	}
	resp := httpkit.OK(out)
	if !res.Status.Terminal() {
		resp = resp.WithHeader("Retry-After", "15")
	}
	return resp
}

// swagger:route GET /files/reports/{name} Reports reportsDownload
// @Summary Download a completed report artifact
// @Tags Reports
// @Produce text/csv
// @Param name path string true "Artifact filename"
// @Success 200 {file} file "csv"
// @Router /files/reports/{name} [get]
func (h *handlers) download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	// the artifact dir is flat; refuse anything that is not a bare .csv name
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") || !strings.HasSuffix(name, ".csv") {
		phttp.RespondError(w, r, perr.InvalidArgf("invalid artifact name"))
		return
	}

	f, err := os.Open(h.ports.Artifact.ArtifactPath(name))
	if err != nil {
		phttp.RespondError(w, r, perr.NotFoundf("artifact %q not found", name))
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		phttp.RespondError(w, r, perr.Wrapf(err, perr.ErrorCodeUnknown, "stat artifact"))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, st.ModTime(), f)
}
