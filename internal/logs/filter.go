package logs

import (
	"encoding/json"
	"strings"

	"podforge/internal/logging"
)

var levelRank = map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}

// Filter narrows log lines. Zero values match everything.
type Filter struct {
	TaskID   string
	MinLevel string
}

// Apply returns the lines in input that match f.
func (f Filter) Apply(input []string) []string {
	if f.TaskID == "" && f.MinLevel == "" {
		return input
	}
	out := make([]string, 0, len(input))
	for _, line := range input {
		if f.Match(line) {
			out = append(out, line)
		}
	}
	return out
}

// Match reports whether a single line passes the filter.
func (f Filter) Match(line string) bool {
	level, taskID := parseLine(line)
	if want := strings.TrimSpace(f.TaskID); want != "" && !sameTask(taskID, want) {
		return false
	}
	if minimum := strings.ToUpper(strings.TrimSpace(f.MinLevel)); minimum != "" {
		want, ok := levelRank[minimum]
		if ok && levelRank[level] < want {
			return false
		}
	}
	return true
}

// sameTask compares ids by prefix since console lines shorten task ids and
// operators often type a short form.
func sameTask(logged, want string) bool {
	if logged == "" {
		return false
	}
	return strings.HasPrefix(logged, want) || strings.HasPrefix(want, logged)
}

// parseLine extracts the level and task id from a console or JSON record.
func parseLine(line string) (level, taskID string) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var record map[string]any
		if err := json.Unmarshal([]byte(trimmed), &record); err == nil {
			level, _ = record["level"].(string)
			taskID, _ = record[logging.FieldTaskID].(string)
			return strings.ToUpper(level), taskID
		}
	}

	// Console: "<ts> LEVEL [component: ][task <id> <stage>] msg key=value ..."
	fields := strings.Fields(trimmed)
	if len(fields) >= 2 {
		level = fields[1]
	}
	if _, rest, ok := strings.Cut(trimmed, "[task "); ok {
		subject, _, _ := strings.Cut(rest, "]")
		taskID, _, _ = strings.Cut(subject, " ")
	}
	if taskID == "" {
		if _, rest, ok := strings.Cut(trimmed, " "+logging.FieldTaskID+"="); ok {
			taskID, _, _ = strings.Cut(rest, " ")
		}
	}
	return level, taskID
}
