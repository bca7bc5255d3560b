package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
	"cyclecal/internal/overlay"
	"cyclecal/internal/store"
	"cyclecal/internal/tracker"
)

const maxBodyBytes = 10 << 20

var validate = validator.New()

// dateRequest is the body of start/end period calls. A zero date means
// today.
type dateRequest struct {
	Date model.Date `json:"date"`
}

type periodRequest struct {
	StartDate model.Date  `json:"startDate"`
	EndDate   *model.Date `json:"endDate"`
}

type noteRequest struct {
	Symptoms []string `json:"symptoms" validate:"max=50,dive,max=64"`
	Notes    string   `json:"notes" validate:"max=4000"`
}

type medicationRequest struct {
	Taken        bool   `json:"taken"`
	Time         string `json:"time"`
	MissedReason string `json:"missedReason" validate:"max=200"`
}

type overlaysResponse struct {
	Today     model.Date      `json:"today"`
	Condensed bool            `json:"condensed"`
	Entries   []overlay.Entry `json:"entries"`
}

type errorResponse struct {
	Error       string          `json:"error"`
	Field       string          `json:"field,omitempty"`
	Problems    []string        `json:"problems,omitempty"`
	Conflicts   []model.Period  `json:"conflicts,omitempty"`
	Fields      []fieldResponse `json:"fields,omitempty"`
	Confirmable bool            `json:"confirmable,omitempty"`
}

type fieldResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	data, err := s.tracker.Export()
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}
	name := fmt.Sprintf("cyclecal-export-%s.json", s.today())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "import document too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read import document: "+err.Error())
		return
	}
	if err := s.tracker.Import(r.Context(), data); err != nil {
		s.writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Reset(r.Context(), confirmed(r)); err != nil {
		s.writeTrackerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOverlays(w http.ResponseWriter, r *http.Request) {
	today, ok := s.todayParam(w, r)
	if !ok {
		return
	}
	condensed := s.condensedParam(r)
	writeJSON(w, http.StatusOK, overlaysResponse{
		Today:     today,
		Condensed: condensed,
		Entries:   s.tracker.Overlays(today, condensed),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	today, ok := s.todayParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Stats(today))
}

func (s *Server) handleStartPeriod(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Date.IsZero() {
		req.Date = s.today()
	}
	p, err := s.tracker.StartPeriod(r.Context(), req.Date, confirmed(r))
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleEndPeriod(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Date.IsZero() {
		req.Date = s.today()
	}
	p, err := s.tracker.EndPeriod(r.Context(), req.Date)
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAddPeriod(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var end model.Date
	if req.EndDate != nil {
		end = *req.EndDate
	}
	p, err := s.tracker.AddPeriod(r.Context(), req.StartDate, end, confirmed(r))
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleEditPeriod(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.tracker.EditPeriod(r.Context(), chi.URLParam(r, "id"), req.StartDate, req.EndDate, confirmed(r))
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePeriod(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.DeletePeriod(r.Context(), chi.URLParam(r, "id"), confirmed(r)); err != nil {
		s.writeTrackerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSaveNote(w http.ResponseWriter, r *http.Request) {
	day, ok := dateParam(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if !decodeBody(w, r, &req) || !validBody(w, req) {
		return
	}
	note, deleted, err := s.tracker.SaveNote(r.Context(), day, req.Symptoms, req.Notes)
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}
	if deleted || note.ID == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	day, ok := dateParam(w, r)
	if !ok {
		return
	}
	if err := s.tracker.DeleteNote(r.Context(), day, confirmed(r)); err != nil {
		s.writeTrackerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordMedication(w http.ResponseWriter, r *http.Request) {
	day, ok := dateParam(w, r)
	if !ok {
		return
	}
	var req medicationRequest
	if !decodeBody(w, r, &req) || !validBody(w, req) {
		return
	}
	ev, err := s.tracker.RecordMedication(r.Context(), tracker.MedicationInput{
		Date:         day,
		Taken:        req.Taken,
		Time:         req.Time,
		MissedReason: req.MissedReason,
	})
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleDeleteMedication(w http.ResponseWriter, r *http.Request) {
	day, ok := dateParam(w, r)
	if !ok {
		return
	}
	if err := s.tracker.DeleteMedication(r.Context(), day, confirmed(r)); err != nil {
		s.writeTrackerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Settings())
}

// handlePutSettings accepts a partial document: fields left out keep
// their current values.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	settings := s.tracker.Settings()
	if !decodeBody(w, r, &settings) {
		return
	}
	updated, err := s.tracker.UpdateSettings(r.Context(), settings)
	if err != nil {
		s.writeTrackerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// writeTrackerError maps tracker and store errors onto status codes.
func (s *Server) writeTrackerError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error(), Confirmable: tracker.IsConfirmable(err)}

	var (
		verr   *tracker.ValidationError
		serr   *model.SettingsError
		overr  *tracker.OverlapError
		imperr *store.ImportError
	)
	switch {
	case errors.As(err, &verr):
		resp.Field = verr.Field
		if errors.As(err, &serr) {
			for _, f := range serr.Fields {
				resp.Fields = append(resp.Fields, fieldResponse{Field: f.Field, Message: f.Message})
			}
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.As(err, &imperr):
		resp.Problems = imperr.Problems
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, store.ErrImportParse):
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, tracker.ErrNotFound):
		writeJSON(w, http.StatusNotFound, resp)
	case errors.As(err, &overr):
		resp.Conflicts = overr.Conflicts
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, tracker.ErrConfirmationRequired),
		errors.Is(err, tracker.ErrPeriodOpen),
		errors.Is(err, tracker.ErrNoOpenPeriod):
		writeJSON(w, http.StatusConflict, resp)
	default:
		appLog.Error("request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// todayParam reads ?today=YYYY-MM-DD, defaulting to the current date in
// the configured timezone.
func (s *Server) todayParam(w http.ResponseWriter, r *http.Request) (model.Date, bool) {
	raw := r.URL.Query().Get("today")
	if raw == "" {
		return s.today(), true
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: "today"})
		return model.Date{}, false
	}
	return d, true
}

func (s *Server) condensedParam(r *http.Request) bool {
	raw := r.URL.Query().Get("condensed")
	if raw == "" {
		return s.cfg.CondensedLabels
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return s.cfg.CondensedLabels
	}
	return v
}

func dateParam(w http.ResponseWriter, r *http.Request) (model.Date, bool) {
	d, err := model.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: "date"})
		return model.Date{}, false
	}
	return d, true
}

func confirmed(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return v
}

// decodeBody decodes a JSON body into dst. An empty body leaves dst as is.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func validBody(w http.ResponseWriter, v any) bool {
	err := validate.Struct(v)
	if err == nil {
		return true
	}
	resp := errorResponse{Error: "invalid request"}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			resp.Fields = append(resp.Fields, fieldResponse{Field: fe.Field(), Message: "failed " + fe.Tag() + " check"})
		}
		if len(resp.Fields) > 0 {
			resp.Field = resp.Fields[0].Field
		}
	}
	writeJSON(w, http.StatusBadRequest, resp)
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
