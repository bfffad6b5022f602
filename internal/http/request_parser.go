package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// maxJSONBytes bounds JSON request bodies. ask-report carries a whole report.
const maxJSONBytes = 8 << 20

// decodeJSON reads a single JSON document from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("요청 본문이 너무 큼")
		}
		return badRequest("잘못된 JSON 요청")
	}
	if dec.More() {
		return badRequest("잘못된 JSON 요청")
	}
	return nil
}

// upload is one parsed multipart snapshot upload.
type upload struct {
	Date     string
	Filename string
	Content  []byte
}

// parseUpload reads the "date" field and the "file" part of a multipart form.
func parseUpload(w http.ResponseWriter, r *http.Request, limit int64) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return upload{}, badRequest("파일이 너무 큼")
		}
		return upload{}, badRequest("multipart 형식 오류")
	}
	defer r.MultipartForm.RemoveAll()

	date := strings.TrimSpace(r.FormValue("date"))
	if date == "" {
		return upload{}, badRequest("date 필드 누락")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return upload{}, badRequest("file 필드 누락")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return upload{}, badRequest("파일 읽기 실패")
	}
	return upload{Date: date, Filename: header.Filename, Content: content}, nil
}

// parseYearMonth reads the required year and month query parameters.
// Month accepts "4" and "04".
func parseYearMonth(q url.Values) (year, month int, err error) {
	ys, ms := strings.TrimSpace(q.Get("year")), strings.TrimSpace(q.Get("month"))
	if ys == "" || ms == "" {
		return 0, 0, badRequest("year, month 파라미터 필요")
	}
	year, err = strconv.Atoi(ys)
	if err != nil || year < 1 {
		return 0, 0, badRequest("year 형식 오류")
	}
	month, err = strconv.Atoi(ms)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, badRequest("month 형식 오류")
	}
	return year, month, nil
}

// requireParams returns the trimmed values of names or a bad-request error
// naming the first missing one.
func requireParams(q url.Values, names ...string) ([]string, error) {
	out := make([]string, len(names))
	for i, name := range names {
		v := strings.TrimSpace(q.Get(name))
		if v == "" {
			return nil, badRequest(name + " 파라미터 필요")
		}
		out[i] = v
	}
	return out, nil
}
