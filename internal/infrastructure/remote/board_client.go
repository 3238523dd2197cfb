package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/statustracker/backend/internal/config"
	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/infrastructure/logger"
)

var (
	ErrBoardRequest    = errors.New("board: request failed")
	ErrBoardInvalidID  = errors.New("board: board id must be numeric")
	ErrBoardItemFormat = errors.New("board: item id must be numeric")
)

const (
	findItemQuery = `query ($board_id: Int!, $column_id: String!, $value: String!) {
  items_by_column_values(board_id: $board_id, column_id: $column_id, column_value: $value) {
    id
    name
  }
}`
	updateStatusMutation = `mutation ($board_id: Int!, $item_id: Int!, $column_values: JSON!) {
  change_multiple_column_values(item_id: $item_id, board_id: $board_id, column_values: $column_values) {
    id
  }
}`
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse[T any] struct {
	Data   T              `json:"data"`
	Errors []graphQLError `json:"errors"`
}

func (r *graphQLResponse[T]) errorMessages() []string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

type graphQLResult interface {
	errorMessages() []string
}

type boardItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type findItemData struct {
	Items []boardItem `json:"items_by_column_values"`
}

type updateData struct {
	Changed *boardItem `json:"change_multiple_column_values"`
}

// BoardClient talks to the work board's GraphQL API. Items are matched by
// their name column holding the EIN.
type BoardClient struct {
	http     *resty.Client
	apiURL   string
	boardID  int64
	columnID string
	logger   *logger.Logger
}

func NewBoardClient(cfg config.BoardConfig, log *logger.Logger) (*BoardClient, error) {
	boardID, err := strconv.ParseInt(strings.TrimSpace(cfg.BoardID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBoardInvalidID, cfg.BoardID)
	}

	client := resty.New().
		SetHeader("Authorization", cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && (r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500)
		})

	return &BoardClient{
		http:     client,
		apiURL:   cfg.APIURL,
		boardID:  boardID,
		columnID: cfg.ColumnID,
		logger:   log,
	}, nil
}

var _ ports.BoardClient = (*BoardClient)(nil)

// FindItemID returns "" when no item carries the EIN.
func (c *BoardClient) FindItemID(ctx context.Context, ein string) (string, error) {
	var out graphQLResponse[findItemData]
	err := c.post(ctx, graphQLRequest{
		Query: findItemQuery,
		Variables: map[string]any{
			"board_id":  c.boardID,
			"column_id": "name",
			"value":     ein,
		},
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out.Data.Items) == 0 {
		c.logger.Debugw("board_item_not_found", "ein", ein)
		return "", nil
	}
	return out.Data.Items[0].ID, nil
}

func (c *BoardClient) UpdateStatus(ctx context.Context, itemID string, status string) error {
	id, err := strconv.ParseInt(itemID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrBoardItemFormat, itemID)
	}

	columnValues, err := sonic.MarshalString(map[string]string{c.columnID: status})
	if err != nil {
		return err
	}

	var out graphQLResponse[updateData]
	err = c.post(ctx, graphQLRequest{
		Query: updateStatusMutation,
		Variables: map[string]any{
			"board_id":      c.boardID,
			"item_id":       id,
			"column_values": columnValues,
		},
	}, &out)
	if err != nil {
		return err
	}

	c.logger.Infow("board_status_updated", "item_id", itemID, "status", status)
	return nil
}

func (c *BoardClient) post(ctx context.Context, body graphQLRequest, out graphQLResult) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		Post(c.apiURL)
	if err != nil {
		c.logger.Warnw("board_request_failed", "error", err)
		return fmt.Errorf("%w: %v", ErrBoardRequest, err)
	}
	if resp.StatusCode() != http.StatusOK {
		c.logger.Warnw("board_request_bad_status", "status", resp.StatusCode(), "body", resp.String())
		return fmt.Errorf("%w: status %d", ErrBoardRequest, resp.StatusCode())
	}

	if errs := out.errorMessages(); len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrBoardRequest, strings.Join(errs, "; "))
	}
	return nil
}
