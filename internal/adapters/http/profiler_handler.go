package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/yuca-profiler/yuca/internal/domain"
	"github.com/yuca-profiler/yuca/internal/logger"
)

const maxBodyBytes = 1 << 20

type ProfilerHandler struct {
	svc domain.ProfilerService
	log logger.Logger
}

func NewProfilerHandler(svc domain.ProfilerService, log logger.Logger) *ProfilerHandler {
	return &ProfilerHandler{svc: svc, log: log}
}

// decode reads a JSON body into req and validates it, writing the error
// response itself when it fails.
func decode(w http.ResponseWriter, r *http.Request, req any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(req)
	if err != nil && !errors.Is(err, io.EOF) {
		JSONError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}

	if validationErrors := ValidateStruct(req); len(validationErrors) > 0 {
		JSONValidationError(w, validationErrors)
		return false
	}
	return true
}

func (h *ProfilerHandler) fail(w http.ResponseWriter, op string, err error) {
	h.log.Error("http: "+op+" failed", "error", err)
	JSONError(w, http.StatusInternalServerError, err.Error())
}

func (h *ProfilerHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req domain.StartRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := h.svc.Start(r.Context(), req)
	if err != nil {
		h.fail(w, "start", err)
		return
	}

	JSONSuccess(w, http.StatusOK, APIResponse{Message: "OK", Data: resp})
}

func (h *ProfilerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	var req domain.StopRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := h.svc.Stop(r.Context(), req)
	if err != nil {
		h.fail(w, "stop", err)
		return
	}

	JSONSuccess(w, http.StatusOK, APIResponse{Message: "OK", Data: resp})
}

func (h *ProfilerHandler) Read(w http.ResponseWriter, r *http.Request) {
	var req domain.ReadRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := h.svc.Read(r.Context(), req)
	if err != nil {
		h.fail(w, "read", err)
		return
	}

	JSONSuccess(w, http.StatusOK, APIResponse{Message: "OK", Data: resp})
}

func (h *ProfilerHandler) Dump(w http.ResponseWriter, r *http.Request) {
	var req domain.DumpRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := h.svc.Dump(r.Context(), req)
	if err != nil {
		h.fail(w, "dump", err)
		return
	}

	JSONSuccess(w, http.StatusOK, APIResponse{Message: "OK", Data: resp})
}

func (h *ProfilerHandler) Purge(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Purge(r.Context()); err != nil {
		h.fail(w, "purge", err)
		return
	}

	JSONSuccess(w, http.StatusOK, APIResponse{Message: "OK"})
}
