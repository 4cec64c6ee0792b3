package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"taskdash/internal/service"
)

const (
	tasksQuery = `query GetTasks {
  tasks {
    id
    title
    status
    teamId
  }
}`

	createTaskMutation = `mutation CreateTask($title: String!, $teamId: String!) {
  createTask(title: $title, teamId: $teamId) {
    id
    title
    status
  }
}`

	deleteTaskMutation = `mutation DeleteTask($id: ID!) {
  deleteTask(id: $id)
}`

	taskCreatedSubscription = `subscription OnTaskCreated {
  taskCreated {
    id
    title
    status
  }
}`
)

type gqlRequest struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// ListTasks implements service.Service.
func (c *Client) ListTasks(ctx context.Context) ([]service.Task, error) {
	var data struct {
		Tasks []service.Task `json:"tasks"`
	}
	if err := c.do(ctx, "GetTasks", tasksQuery, nil, &data); err != nil {
		return nil, err
	}
	return data.Tasks, nil
}

// CreateTask implements service.Service.
func (c *Client) CreateTask(ctx context.Context, title, teamID string) (service.Task, error) {
	var data struct {
		CreateTask service.Task `json:"createTask"`
	}
	vars := map[string]any{"title": title, "teamId": teamID}
	if err := c.do(ctx, "CreateTask", createTaskMutation, vars, &data); err != nil {
		return service.Task{}, err
	}
	task := data.CreateTask
	if task.TeamID == "" {
		task.TeamID = teamID
	}
	return task, nil
}

// DeleteTask implements service.Service.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	var data struct {
		DeleteTask bool `json:"deleteTask"`
	}
	if err := c.do(ctx, "DeleteTask", deleteTaskMutation, map[string]any{"id": id}, &data); err != nil {
		return err
	}
	if !data.DeleteTask {
		return service.ErrNotFound
	}
	return nil
}

// do posts one GraphQL operation and decodes its data into out.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(gqlRequest{OperationName: op, Query: query, Variables: vars})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(wrapError(ctx, err), op)
	}
	defer resp.Body.Close()
	c.log.Debug().Str("operation", op).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("graphql request")

	var body gqlResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && len(body.Errors) > 0 {
			return graphQLError(resp.StatusCode, body.Errors)
		}
		return &service.APIError{Status: resp.StatusCode}
	}
	if decodeErr != nil {
		return errors.Wrapf(decodeErr, "%s: invalid response", op)
	}
	if len(body.Errors) > 0 {
		return graphQLError(http.StatusOK, body.Errors)
	}
	if out == nil || len(body.Data) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(body.Data, out), "%s: invalid data", op)
}

// graphQLError folds GraphQL errors into one *service.APIError. Well-known
// extension codes are mapped onto HTTP statuses so errors.Is works.
func graphQLError(status int, errs []gqlError) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
		if code, _ := e.Extensions["code"].(string); code != "" {
			switch code {
			case "UNAUTHENTICATED":
				status = http.StatusUnauthorized
			case "FORBIDDEN":
				status = http.StatusForbidden
			case "NOT_FOUND":
				status = http.StatusNotFound
			}
		}
	}
	return &service.APIError{Status: status, Message: strings.Join(msgs, "; ")}
}
