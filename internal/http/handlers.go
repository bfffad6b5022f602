package http

import (
	"net/http"
	"strings"

	"cdc/internal/log"
	"cdc/internal/services"
)

type (
	analyzeRequest struct {
		DateOld string `json:"date_old"`
		DateNew string `json:"date_new"`
	}

	askRequest struct {
		Question    string `json:"question"`
		ContextData any    `json:"context_data"`
	}

	importSheetRequest struct {
		Date  string `json:"date"`
		Range string `json:"range"`
	}
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	up, err := parseUpload(w, r, s.maxUploadBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Upload(r.Context(), up.Date, up.Filename, up.Content); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "저장 완료", nil)
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	dates, err := s.svc.Dates(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, dates)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Delete(r.Context(), r.PathValue("date"))
	if err != nil {
		if status, _ := statusFor(err); status == http.StatusNotFound {
			NewJSONResponse().Status(status).Body(errorBody{Detail: "데이터 없음"}).Write(w)
			return
		}
		writeError(w, r, err)
		return
	}
	writeMessage(w, "삭제 완료", nil)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.DateOld) == "" || strings.TrimSpace(req.DateNew) == "" {
		writeError(w, r, badRequest("date_old, date_new 필요"))
		return
	}

	report, err := s.svc.Analyze(r.Context(), req.DateOld, req.DateNew)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "분석 완료", report)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	vals, err := requireParams(r.URL.Query(), "date_old", "date_new")
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.svc.CachedReport(r.Context(), vals[0], vals[1])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// handleAsk always answers 200; failures are reported inside the answer text.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Malformed ask request", log.FieldError, err)
		writeJSON(w, answerBody{Answer: "AI 분석 오류: " + err.Error()})
		return
	}

	answer := s.svc.Ask(r.Context(), req.Question, req.ContextData)
	writeJSON(w, answerBody{Answer: answer})
}

func (s *Server) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := s.svc.MonthlyStats(r.Context(), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if stats == nil {
		stats = []services.DailyImpact{}
	}
	writeJSON(w, stats)
}

func (s *Server) handleImportSheet(w http.ResponseWriter, r *http.Request) {
	if !s.svc.SheetsEnabled() {
		writeError(w, r, services.ErrSheetsUnavailable)
		return
	}

	var req importSheetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Date) == "" {
		writeError(w, r, badRequest("date 필요"))
		return
	}

	if err := s.svc.ImportSheet(r.Context(), req.Date, req.Range); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, "저장 완료", nil)
}
