package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/stoa-edu/stoa/internal/model"
)

// InsertConversationLog stores one log payload. CreatedAt is set here.
func (s *Store) InsertConversationLog(ctx context.Context, rec model.LogRecord) (int64, error) {
	var meta any
	if len(rec.Meta) > 0 {
		meta = string(rec.Meta)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_logs (user_id, session_id, filename, payload, meta, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.SessionID, rec.Filename, string(rec.Payload), meta, time.Now(),
	)
	if err != nil {
		slog.Error("failed to insert conversation log", "user", rec.UserID, "error", err)
		return 0, err
	}
	return res.LastInsertId()
}

// ListConversationLogs returns all stored logs, newest first.
func (s *Store) ListConversationLogs(ctx context.Context) ([]model.LogRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, session_id, filename, payload, meta, created_at
		 FROM conversation_logs ORDER BY id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.LogRecord
	for rows.Next() {
		var rec model.LogRecord
		var payload string
		var meta *string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.SessionID, &rec.Filename, &payload, &meta, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Payload = json.RawMessage(payload)
		if meta != nil {
			rec.Meta = json.RawMessage(*meta)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveSessionExport stores the final export of a finished session as a
// conversation log row.
func (s *Store) SaveSessionExport(ctx context.Context, username, sessionID string, exp model.SessionExport) error {
	payload, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("marshal session export: %w", err)
	}
	filename := fmt.Sprintf("conversation_log_%s_%s.json", username, exp.GeneratedAt.Format("20060102_150405"))
	_, err = s.InsertConversationLog(ctx, model.LogRecord{
		UserID:    username,
		SessionID: sessionID,
		Filename:  filename,
		Payload:   payload,
	})
	return err
}
