// Package simapi is the HTTP client for the remote simulation service. It
// implements session.SimulationAPI against the /v1/simulations REST surface.
package simapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/elimisha/maabara/core"
	"github.com/elimisha/maabara/core/session"
	"github.com/elimisha/maabara/core/simulation"
)

type Client struct {
	baseURL string
	http    *http.Client
}

var _ session.SimulationAPI = (*Client)(nil)

func NewClient(baseURL string, httpClient ...*http.Client) *Client {
	c := &Client{baseURL: strings.TrimRight(baseURL, "/")}
	if len(httpClient) > 0 && httpClient[0] != nil {
		c.http = httpClient[0]
	} else {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	return c
}

// transitionResponse is the ack returned by start/pause/resume/state/complete.
type transitionResponse struct {
	Success bool `json:"success"`
	Version int  `json:"version"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func (c *Client) CreateSimulation(ctx context.Context, ns simulation.NewSimulation) (simulation.Simulation, error) {
	var sim simulation.Simulation
	err := c.do(ctx, http.MethodPost, "/v1/simulations", ns, &sim)
	return sim, err
}

func (c *Client) GetSimulation(ctx context.Context, id string) (simulation.Simulation, error) {
	var sim simulation.Simulation
	err := c.do(ctx, http.MethodGet, "/v1/simulations/"+id, nil, &sim)
	return sim, err
}

func (c *Client) FilterSimulations(ctx context.Context, studentID string, status simulation.Status) ([]simulation.Simulation, error) {
	path := "/v1/simulations?student_id=" + studentID
	if status != "" {
		path += "&status=" + string(status)
	}
	var sims []simulation.Simulation
	err := c.do(ctx, http.MethodGet, path, nil, &sims)
	return sims, err
}

func (c *Client) StartSimulation(ctx context.Context, id string) (int, error) {
	return c.transition(ctx, id, "start")
}

func (c *Client) PauseSimulation(ctx context.Context, id string) (int, error) {
	return c.transition(ctx, id, "pause")
}

func (c *Client) ResumeSimulation(ctx context.Context, id string) (int, error) {
	return c.transition(ctx, id, "resume")
}

func (c *Client) UpdateSimulationState(ctx context.Context, id string, patch simulation.StatePatch) (int, error) {
	var resp transitionResponse
	if err := c.do(ctx, http.MethodPatch, "/v1/simulations/"+id+"/state", patch, &resp); err != nil {
		return 0, err
	}
	return resp.Version, nil
}

func (c *Client) CompleteSimulation(ctx context.Context, id string, res simulation.FinalResults) error {
	var resp transitionResponse
	return c.do(ctx, http.MethodPost, "/v1/simulations/"+id+"/complete", res, &resp)
}

func (c *Client) GenerateGameContent(ctx context.Context, prompt string) (core.GamePayload, error) {
	var payload core.GamePayload
	err := c.do(ctx, http.MethodPost, "/v1/content/game", map[string]string{"prompt": prompt}, &payload)
	return payload, err
}

func (c *Client) GenerateExperimentContent(ctx context.Context, prompt string) (core.ExperimentContent, error) {
	var content core.ExperimentContent
	err := c.do(ctx, http.MethodPost, "/v1/content/experiment", map[string]string{"prompt": prompt}, &content)
	return content, err
}

func (c *Client) transition(ctx context.Context, id, action string) (int, error) {
	var resp transitionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/simulations/"+id+"/"+action, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Version, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, target interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return errors.Wrap(err, "encoding request")
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "calling simulation service")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.asError(resp.StatusCode, resp.Body)
	}
	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return errors.Wrap(err, "decoding response")
		}
	}
	return nil
}

// asError maps service error responses back onto the domain error taxonomy.
func (c *Client) asError(code int, body io.Reader) error {
	var payload errorResponse
	_ = json.NewDecoder(body).Decode(&payload)

	switch code {
	case http.StatusNotFound:
		return simulation.ErrNotFound
	case http.StatusConflict:
		if payload.Error == simulation.ErrVersionConflict.Error() {
			return simulation.ErrVersionConflict
		}
		return errors.New(payload.Error)
	case http.StatusBadRequest:
		flds := make([]core.FieldError, 0, len(payload.Fields))
		for field, msg := range payload.Fields {
			flds = append(flds, core.FieldError{Field: field, Error: msg})
		}
		return core.NewValidationError(errors.New(payload.Error), flds...)
	}
	if payload.Error != "" {
		return errors.New(payload.Error)
	}
	return errors.Errorf("simulation service returned status %d", code)
}
