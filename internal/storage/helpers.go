package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roman-kulish/esc-telemetry/internal/recording"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// rollbackWithError rolls back an unfinished transaction. A transaction that
// was already committed is not an error.
func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

func toLineData(sessionID int64, l *recording.Line) *lineData {
	kind := l.Kind
	if kind == "" {
		kind = recording.LineData
	}
	return &lineData{
		SessionID:  sessionID,
		ReceivedAt: l.ReceivedAt.UTC(),
		Kind:       string(kind),
		Text:       l.Text,
	}
}

func configString(config any) (sql.NullString, error) {
	var configData sql.NullString
	if config == nil {
		return configData, nil
	}

	switch c := config.(type) {
	case string:
		configData.String = c
	case []byte:
		configData.String = string(c)
	default:
		p, err := json.Marshal(c)
		if err != nil {
			return configData, fmt.Errorf("marshaling config: %w", err)
		}
		configData.String = string(p)
	}

	configData.Valid = true
	return configData, nil
}

// placeholders returns n comma separated value groups of the form (?, ?, ...)
func placeholders(n, columns int) string {
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", columns), ", ") + ")"

	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(group)
	}
	return sb.String()
}
