package webapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	lineage "github.com/coinlineage/lineage/pkg"
)

var httpCodeForError = map[lineage.ErrorCode]int{
	lineage.BadRequest:          400,
	lineage.NotFound:            404,
	lineage.NotAvailable:        503,
	lineage.Timeout:             504,
	lineage.MalformedCondition:  500,
	lineage.InconsistentSpend:   500,
	lineage.EvaluationFailed:    500,
	lineage.LedgerInconsistency: 500,
	lineage.UnknownError:        500,
}

func HttpStatusForError(code lineage.ErrorCode) int {
	status, found := httpCodeForError[code]
	if !found {
		status = http.StatusInternalServerError
	}
	return status
}

func sendResponse(w http.ResponseWriter, logger *log.Logger, payload any) {
	// note: w.Header after this, so we can call sendError
	b, err := json.Marshal(payload)
	if err != nil {
		sendErrorResponse(w, logger, http.StatusInternalServerError, lineage.UnknownError, fmt.Sprintf("in json.Marshal: %s", err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store") // do not cache (Browsers cache GET forever by default)
	w.Write(b)
}

func sendError(w http.ResponseWriter, logger *log.Logger, where string, err error) {
	code := lineage.CodeOf(err)
	message := fmt.Sprintf("%s: %s", where, err.Error())
	sendErrorResponse(w, logger, HttpStatusForError(code), code, message)
}

func sendErrorResponse(w http.ResponseWriter, logger *log.Logger, statusCode int, code lineage.ErrorCode, message string) {
	logger.Printf("[!] %s: %s\n", code, message)
	// would prefer to use json.Marshal, but this avoids the need
	// to handle encoding errors arising from json.Marshal itself!
	payload := fmt.Sprintf("{\"error\":{\"code\":%q,\"message\":%q}}", code, message)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store") // do not cache (Browsers cache GET forever by default)
	w.WriteHeader(statusCode)
	w.Write([]byte(payload))
}
