package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type APIError struct {
	Error string `json:"error"`
}

// WriteJSON encodes v up front so the response goes out fully buffered with a
// Content-Length.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		code = http.StatusInternalServerError
		body, _ = json.Marshal(APIError{Error: err.Error()})
	}
	WriteRawJSON(w, code, append(body, '\n'))
}

// WriteRawJSON writes an already-encoded JSON body.
func WriteRawJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, APIError{Error: msg})
}

func SafeErrMsg(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
