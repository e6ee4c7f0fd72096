package server

import (
	"net/http"

	"github.com/bitlum/cli/pkg/util"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = util.WritePrettyJSON(w, v)
}
