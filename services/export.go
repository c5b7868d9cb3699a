package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"abogacia-chatbot/internal/history"
	"abogacia-chatbot/internal/logger"

	"github.com/xuri/excelize/v2"
)

const (
	ExportFormatJSON  = "json"
	ExportFormatExcel = "excel"

	messagesSheet = "Chat Messages"
	summarySheet  = "Summary"
)

// ChatExportData is one session's conversation ready for download.
type ChatExportData struct {
	SessionID  string          `json:"session_id"`
	ExportedAt time.Time       `json:"exported_at"`
	Messages   []ExportMessage `json:"messages"`
	Summary    ExportSummary   `json:"summary"`
}

type ExportMessage struct {
	Index   int    `json:"index"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ExportSummary struct {
	TotalMessages int `json:"total_messages"`
	Questions     int `json:"questions"`
	Answers       int `json:"answers"`
	TotalChars    int `json:"total_chars"`
}

// ExportService turns stored chat histories into downloadable files.
type ExportService struct {
	history history.Store
}

// NewExportService exports conversations from store.
func NewExportService(store history.Store) *ExportService {
	return &ExportService{history: store}
}

// Collect loads a session's messages. A session without messages is an empty export.
func (es *ExportService) Collect(ctx context.Context, sessionID string) (*ChatExportData, error) {
	msgs, err := es.history.Messages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	data := &ChatExportData{
		SessionID:  sessionID,
		ExportedAt: time.Now().UTC(),
		Messages:   make([]ExportMessage, 0, len(msgs)),
	}
	for i, m := range msgs {
		data.Messages = append(data.Messages, ExportMessage{Index: i + 1, Role: m.Type, Content: m.Content})
		switch m.Type {
		case history.TypeHuman:
			data.Summary.Questions++
		case history.TypeAI:
			data.Summary.Answers++
		}
		data.Summary.TotalChars += len([]rune(m.Content))
	}
	data.Summary.TotalMessages = len(msgs)
	return data, nil
}

func (es *ExportService) JSON(data *ChatExportData) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

// Excel renders the export as an xlsx workbook with a messages sheet and a
// summary sheet.
func (es *ExportService) Excel(data *ChatExportData) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Error closing Excel file", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", messagesSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	if err := f.SetSheetRow(messagesSheet, "A1", &[]interface{}{"#", "Role", "Message"}); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(messagesSheet, "A1", "C1", headerStyle); err != nil {
		return nil, err
	}

	for i, msg := range data.Messages {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(messagesSheet, cell, &[]interface{}{msg.Index, msg.Role, msg.Content}); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if n := len(data.Messages); n > 0 {
		if err := f.SetCellStyle(messagesSheet, "C2", fmt.Sprintf("C%d", n+1), wrapStyle); err != nil {
			return nil, err
		}
	}

	f.SetColWidth(messagesSheet, "A", "A", 6)
	f.SetColWidth(messagesSheet, "B", "B", 10)
	f.SetColWidth(messagesSheet, "C", "C", 100)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	rows := [][]interface{}{
		{"Session ID", data.SessionID},
		{"Exported At", data.ExportedAt.Format("2006-01-02 15:04:05")},
		{"Total Messages", data.Summary.TotalMessages},
		{"Questions", data.Summary.Questions},
		{"Answers", data.Summary.Answers},
		{"Total Characters", data.Summary.TotalChars},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}
	f.SetColWidth(summarySheet, "A", "A", 20)
	f.SetColWidth(summarySheet, "B", "B", 40)

	var buf *bytes.Buffer
	if buf, err = f.WriteToBuffer(); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
