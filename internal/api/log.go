package api

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"headsup/pkg/logging"
)

// maxParamLen drops long attribute values from the status line.
const maxParamLen = 20

// key=value or key="value with spaces"
var logAttr = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// LogLine is one captured log record, shortened for the HUD.
type LogLine struct {
	Log   string `json:"log"`
	Level string `json:"level,omitempty"`
}

// handleLatestLog returns the last captured log line.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, formatLogLine(logging.GlobalLogCapture.GetLastLine()))
}

// formatLogLine turns a slog text record into "HH:MM:SS msg (k=v, ...)".
// time, level and component are not repeated as parameters; the rest are
// sorted and long values dropped. Lines that are not slog records pass
// through unchanged.
func formatLogLine(raw string) LogLine {
	var (
		out    LogLine
		msg    string
		stamp  string
		params []string
	)
	for _, m := range logAttr.FindAllStringSubmatch(raw, -1) {
		key, val := m[1], m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				stamp = t.Format("15:04:05")
			}
		case "level":
			out.Level = strings.ToLower(val)
		case "msg":
			msg = val
		case "component":
		default:
			if len(val) <= maxParamLen {
				params = append(params, key+"="+val)
			}
		}
	}

	if msg == "" {
		return LogLine{Log: raw}
	}

	sort.Strings(params)
	out.Log = msg
	if stamp != "" {
		out.Log = stamp + " " + msg
	}
	if len(params) > 0 {
		out.Log = fmt.Sprintf("%s (%s)", out.Log, strings.Join(params, ", "))
	}
	return out
}
