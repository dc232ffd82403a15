package apitest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
	"github.com/quorumdesk/quorumdesk/internal/voting"
)

// writeJSONResponse writes a JSON response with the given data
func writeJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes an error in the {"error": "..."} shape the service uses
func writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, map[string]string{"error": message}, statusCode)
}

func (*Server) loginPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, "<html><body><form method=\"post\">login</form></body></html>")
}

func (*Server) panel(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, "<html><body>panel</body></html>")
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	username := r.PostForm.Get("username")
	s.mu.Lock()
	expected, ok := s.users[username]
	s.mu.Unlock()
	if !ok || expected != r.PostForm.Get("password") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, "<html><body>Credenciales inválidas</body></html>")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.newSession(username),
		Path:     "/",
		HttpOnly: true,
	})
	http.Redirect(w, r, "/panel", http.StatusFound)
}

func (s *Server) listAttendance(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	records := s.sortedRecords()
	s.mu.Unlock()
	writeJSONResponse(w, records, http.StatusOK)
}

func (s *Server) listAttendees(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	var present []attendance.Record
	for _, rec := range s.sortedRecords() {
		if rec.Status.Present() {
			present = append(present, rec)
		}
	}
	s.mu.Unlock()
	if present == nil {
		present = []attendance.Record{}
	}
	writeJSONResponse(w, present, http.StatusOK)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	minimum := s.quorum[r.URL.Query().Get("votacion_id")]
	s.mu.Unlock()
	writeJSONResponse(w, map[string]int64{"quorum_minimo": minimum}, http.StatusOK)
}

func (s *Server) updateAttendance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErrorResponse(w, "invalid id", http.StatusNotFound)
		return
	}
	var body struct {
		Status attendance.Status `json:"estado"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorResponse(w, "invalid body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.attempts = append(s.attempts, id)
	if n, ok := s.failUpdates[id]; ok && n != 0 {
		if n > 0 {
			s.failUpdates[id] = n - 1
		}
		s.mu.Unlock()
		writeErrorResponse(w, "database is locked", http.StatusInternalServerError)
		return
	}
	if rec, ok := s.records[id]; ok {
		rec.Status = body.Status
		s.records[id] = rec
	}
	s.updates = append(s.updates, attendance.Edit{ID: id, Status: body.Status})
	s.mu.Unlock()

	s.hub.broadcast(encodeEvent(id, body.Status, s.socketIO))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	questions := s.questions[chi.URLParam(r, "votingID")]
	s.mu.Unlock()
	if questions == nil {
		questions = []voting.Question{}
	}
	writeJSONResponse(w, questions, http.StatusOK)
}

func (s *Server) castVote(w http.ResponseWriter, r *http.Request) {
	var vote voting.Vote
	if err := json.NewDecoder(r.Body).Decode(&vote); err != nil {
		writeErrorResponse(w, "invalid body", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOptions[vote.OptionID] {
		writeErrorResponse(w, "vote rejected", http.StatusInternalServerError)
		return
	}
	s.votes = append(s.votes, vote)
	writeJSONResponse(w, map[string]bool{"ok": true}, http.StatusOK)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	f, header, err := r.FormFile("file")
	if err != nil {
		writeErrorResponse(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xls", ".xlsx":
	default:
		writeErrorResponse(w, "Formato no permitido", http.StatusBadRequest)
		return
	}
	n, err := io.Copy(io.Discard, f)
	if err != nil {
		writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	s.uploads = append(s.uploads, Upload{Filename: header.Filename, Size: n})
	s.mu.Unlock()
	writeJSONResponse(w, map[string]bool{"ok": true}, http.StatusOK)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	records := s.sortedRecords()
	s.mu.Unlock()

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	_ = cw.Write([]string{"id", "accionista", "representante", "apoderado", "acciones", "estado"})
	for _, rec := range records {
		_ = cw.Write([]string{
			strconv.FormatInt(rec.ID, 10),
			rec.Shareholder,
			rec.LegalRepresentative,
			rec.Proxy,
			strconv.FormatInt(rec.Shares, 10),
			string(rec.Status),
		})
	}
	cw.Flush()

	format := chi.URLParam(r, "format")
	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
	case "excel":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	case "pdf":
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprintf(&buf, "%%PDF-1.4 %d registros\n", len(records))
	default:
		http.Error(w, "Formato no soportado", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=asistencia_export.%s", exportExtension(format)))
	_, _ = w.Write(buf.Bytes())
}

func exportExtension(format string) string {
	if format == "excel" {
		return "xlsx"
	}
	return format
}
