package db

import (
	"encoding/json"
	"time"

	"github.com/sqlc-dev/pqtype"
)

type CanvasSnapshot struct {
	CanvasID  string                `json:"canvas_id"`
	Version   int64                 `json:"version"`
	Body      json.RawMessage       `json:"body"`
	Settings  pqtype.NullRawMessage `json:"settings"`
	UpdatedAt time.Time             `json:"updated_at"`
}
