package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/statustracker/backend/internal/config"
	"github.com/statustracker/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func newBoard(t *testing.T, handler func(req capturedRequest) (int, string)) *BoardClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		var req capturedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		code, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c, err := NewBoardClient(config.BoardConfig{
		APIURL:   srv.URL,
		APIKey:   "secret",
		BoardID:  "1234",
		ColumnID: "project_status",
		Timeout:  5 * time.Second,
	}, logger.NewNop())
	require.NoError(t, err)
	return c
}

func TestBoardClient_FindItemID(t *testing.T) {
	c := newBoard(t, func(req capturedRequest) (int, string) {
		assert.Contains(t, req.Query, "items_by_column_values")
		assert.Equal(t, float64(1234), req.Variables["board_id"])
		if req.Variables["value"] == "123456789" {
			return http.StatusOK, `{"data":{"items_by_column_values":[{"id":"555","name":"123456789"}]}}`
		}
		return http.StatusOK, `{"data":{"items_by_column_values":[]}}`
	})

	id, err := c.FindItemID(context.Background(), "123456789")
	require.NoError(t, err)
	assert.Equal(t, "555", id)

	id, err = c.FindItemID(context.Background(), "000000000")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestBoardClient_UpdateStatus(t *testing.T) {
	var got capturedRequest
	c := newBoard(t, func(req capturedRequest) (int, string) {
		got = req
		return http.StatusOK, `{"data":{"change_multiple_column_values":{"id":"555"}}}`
	})

	require.NoError(t, c.UpdateStatus(context.Background(), "555", "Current"))
	assert.Contains(t, got.Query, "change_multiple_column_values")
	assert.Equal(t, float64(555), got.Variables["item_id"])
	assert.JSONEq(t, `{"project_status":"Current"}`, got.Variables["column_values"].(string))
}

func TestBoardClient_Errors(t *testing.T) {
	gqlErr := newBoard(t, func(req capturedRequest) (int, string) {
		return http.StatusOK, `{"errors":[{"message":"board not found"}]}`
	})
	_, err := gqlErr.FindItemID(context.Background(), "123456789")
	assert.ErrorIs(t, err, ErrBoardRequest)
	assert.Contains(t, err.Error(), "board not found")

	denied := newBoard(t, func(req capturedRequest) (int, string) {
		return http.StatusUnauthorized, `{"error_message":"bad token"}`
	})
	assert.ErrorIs(t, denied.UpdateStatus(context.Background(), "555", "Current"), ErrBoardRequest)

	assert.ErrorIs(t, gqlErr.UpdateStatus(context.Background(), "abc", "Current"), ErrBoardItemFormat)

	_, err = NewBoardClient(config.BoardConfig{BoardID: "not-a-number"}, logger.NewNop())
	assert.ErrorIs(t, err, ErrBoardInvalidID)
}
