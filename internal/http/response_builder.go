package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"cdc/internal/log"
	"cdc/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write encodes the body. Non-ASCII text is written verbatim.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	data, err := marshal(b.body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"response encoding failed"}`))
		return
	}
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(data)
}

func marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

type (
	messageBody struct {
		Message string `json:"message"`
		Data    any    `json:"data,omitempty"`
	}

	errorBody struct {
		Detail string `json:"detail"`
	}

	answerBody struct {
		Answer string `json:"answer"`
	}
)

func writeJSON(w http.ResponseWriter, v any) {
	NewJSONResponse().Body(v).Write(w)
}

func writeMessage(w http.ResponseWriter, message string, data any) {
	writeJSON(w, messageBody{Message: message, Data: data})
}

// requestError marks malformed client input.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

// statusFor maps service errors onto HTTP statuses and dashboard messages.
func statusFor(err error) (int, string) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.msg
	case errors.Is(err, services.ErrSnapshotNotFound):
		return http.StatusNotFound, "원본 파일 없음"
	case errors.Is(err, services.ErrReportNotFound):
		return http.StatusNotFound, "분석 결과 없음"
	case errors.Is(err, services.ErrInvalidSnapshot):
		return http.StatusBadRequest, "데이터 전처리 실패"
	case errors.Is(err, services.ErrInvalidDate):
		return http.StatusUnprocessableEntity, "날짜 형식 오류 (YYYY-MM-DD)"
	case errors.Is(err, services.ErrSheetsUnavailable):
		return http.StatusNotImplemented, "시트 연동이 설정되지 않음"
	default:
		return http.StatusInternalServerError, "서버 내부 오류"
	}
}

// writeError logs err with the request-scoped logger and writes {"detail": ...}.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := statusFor(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldPath, r.URL.Path, log.FieldError, err)
	} else {
		logger.WarnContext(r.Context(), "Request rejected",
			log.FieldPath, r.URL.Path, log.FieldStatusCode, status, log.FieldError, err)
	}
	NewJSONResponse().Status(status).Body(errorBody{Detail: detail}).Write(w)
}
