package services

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"abogacia-chatbot/internal/history"
)

func seededExport(t *testing.T) (*ExportService, *ChatExportData) {
	t.Helper()
	store := history.NewMemoryStore()
	require.NoError(t, store.Append(context.Background(), "s1",
		history.AIMessage("Hola"),
		history.HumanMessage("¿Qué es un PQR?"),
		history.AIMessage("Una petición, queja o reclamo.")))

	es := NewExportService(store)
	data, err := es.Collect(context.Background(), "s1")
	require.NoError(t, err)
	return es, data
}

func TestExportCollect(t *testing.T) {
	_, data := seededExport(t)

	assert.Equal(t, "s1", data.SessionID)
	require.Len(t, data.Messages, 3)
	assert.Equal(t, ExportMessage{Index: 2, Role: "human", Content: "¿Qué es un PQR?"}, data.Messages[1])
	assert.Equal(t, 3, data.Summary.TotalMessages)
	assert.Equal(t, 1, data.Summary.Questions)
	assert.Equal(t, 2, data.Summary.Answers)
}

func TestExportJSON(t *testing.T) {
	es, data := seededExport(t)

	raw, err := es.JSON(data)
	require.NoError(t, err)

	var decoded ChatExportData
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, data.Messages, decoded.Messages)
}

func TestExportExcel(t *testing.T) {
	es, data := seededExport(t)

	raw, err := es.Excel(data)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(messagesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"#", "Role", "Message"}, rows[0])
	assert.Equal(t, []string{"3", "ai", "Una petición, queja o reclamo."}, rows[3])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Questions", "1"}, summary[3])
}

func TestExportEmptySession(t *testing.T) {
	es := NewExportService(history.NewMemoryStore())
	data, err := es.Collect(context.Background(), "nadie")
	require.NoError(t, err)
	assert.Empty(t, data.Messages)

	raw, err := es.Excel(data)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}
