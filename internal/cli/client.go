package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// PipelineResponse — pipeline из API.
type PipelineResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Version     int              `json:"version"`
	Status      string           `json:"status"`
	Stages      []map[string]any `json:"stages"`
	Config      map[string]any   `json:"config"`
	Schedule    map[string]any   `json:"schedule,omitempty"`
	CreatedAt   string           `json:"created_at"`
	UpdatedAt   string           `json:"updated_at"`
}

// ExecutionResponse — execution из API.
type ExecutionResponse struct {
	ID              string         `json:"id"`
	PipelineID      string         `json:"pipeline_id"`
	PipelineVersion int            `json:"pipeline_version"`
	Status          string         `json:"status"`
	TriggeredBy     string         `json:"triggered_by"`
	StartTime       string         `json:"start_time"`
	EndTime         string         `json:"end_time,omitempty"`
	DurationMs      int64          `json:"duration_ms"`
	Metrics         map[string]any `json:"metrics"`
	Stages          map[string]struct {
		StageID    string `json:"stage_id"`
		Status     string `json:"status"`
		RetryCount int    `json:"retry_count"`
		Error      string `json:"error,omitempty"`
		ErrorKind  string `json:"error_kind,omitempty"`
	} `json:"stages,omitempty"`
	Logs []struct {
		Time    string `json:"time"`
		Level   string `json:"level"`
		StageID string `json:"stage_id,omitempty"`
		Message string `json:"message"`
	} `json:"logs,omitempty"`
}

// StatsResponse — статистика pipeline из API.
type StatsResponse struct {
	TotalExecutions int     `json:"total_executions"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	Cancelled       int     `json:"cancelled"`
	Running         int     `json:"running"`
	SuccessRate     float64 `json:"success_rate"`
	AvgDurationMs   int64   `json:"avg_duration_ms"`
	LastRun         string  `json:"last_run,omitempty"`
	LastStatus      string  `json:"last_status,omitempty"`
}

// EventResponse — результат инъекции события.
type EventResponse struct {
	Launched int `json:"launched"`
}

// --- Request types ---

// SetStatusRequest — переход статуса pipeline.
type SetStatusRequest struct {
	Status string `json:"status"`
}

// ExecuteRequest — запуск pipeline.
type ExecuteRequest struct {
	Environment string         `json:"environment,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// EventRequest — внешнее событие.
type EventRequest struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Pipelines API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Pipelines ---

// ListPipelines возвращает все pipelines.
func (c *Client) ListPipelines() ([]PipelineResponse, error) {
	var pipelines []PipelineResponse
	err := c.list("/api/v1/pipelines", nil, &pipelines)
	return pipelines, err
}

// CreatePipeline создаёт pipeline из JSON-определения.
func (c *Client) CreatePipeline(definition json.RawMessage) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.doData(http.MethodPost, "/api/v1/pipelines", definition, &p)
	return &p, err
}

// GetPipeline возвращает pipeline по ID.
func (c *Client) GetPipeline(id string) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.get("/api/v1/pipelines/"+id, &p)
	return &p, err
}

// UpdatePipeline обновляет pipeline из JSON-определения.
func (c *Client) UpdatePipeline(id string, definition json.RawMessage) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.doData(http.MethodPut, "/api/v1/pipelines/"+id, definition, &p)
	return &p, err
}

// DeletePipeline удаляет pipeline.
func (c *Client) DeletePipeline(id string) error {
	return c.delete("/api/v1/pipelines/" + id)
}

// SetPipelineStatus переводит pipeline в указанный статус.
func (c *Client) SetPipelineStatus(id, status string) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.post("/api/v1/pipelines/"+id+"/status", SetStatusRequest{Status: status}, &p)
	return &p, err
}

// GetPipelineStats возвращает статистику запусков pipeline.
func (c *Client) GetPipelineStats(id string) (*StatsResponse, error) {
	var stats StatsResponse
	err := c.get("/api/v1/pipelines/"+id+"/stats", &stats)
	return &stats, err
}

// GetPipelineSchedule возвращает расписание pipeline с bookkeeping.
func (c *Client) GetPipelineSchedule(id string) (map[string]any, error) {
	var sched map[string]any
	err := c.get("/api/v1/pipelines/"+id+"/schedule", &sched)
	return sched, err
}

// --- Executions ---

// ExecutePipeline запускает pipeline вручную.
func (c *Client) ExecutePipeline(pipelineID string, req ExecuteRequest) (*ExecutionResponse, error) {
	var exec ExecutionResponse
	err := c.post("/api/v1/pipelines/"+pipelineID+"/executions", req, &exec)
	return &exec, err
}

// ListExecutions возвращает executions. Если pipelineID не пустой —
// только для этого pipeline.
func (c *Client) ListExecutions(pipelineID string, limit int) ([]ExecutionResponse, error) {
	path := "/api/v1/executions"
	if pipelineID != "" {
		path = "/api/v1/pipelines/" + pipelineID + "/executions"
	}

	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	var execs []ExecutionResponse
	err := c.list(path, params, &execs)
	return execs, err
}

// GetExecution возвращает execution по ID.
func (c *Client) GetExecution(id string) (*ExecutionResponse, error) {
	var exec ExecutionResponse
	err := c.get("/api/v1/executions/"+id, &exec)
	return &exec, err
}

// CancelExecution отменяет идущий execution.
func (c *Client) CancelExecution(id string) (*ExecutionResponse, error) {
	var exec ExecutionResponse
	err := c.post("/api/v1/executions/"+id+"/cancel", nil, &exec)
	return &exec, err
}

// --- Events ---

// InjectEvent пробрасывает внешнее событие в event-триггеры.
func (c *Client) InjectEvent(event string, payload map[string]any) (*EventResponse, error) {
	var resp EventResponse
	err := c.post("/api/v1/events", EventRequest{Event: event, Payload: payload}, &resp)
	return &resp, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		var data []byte
		switch b := body.(type) {
		case json.RawMessage:
			data = b
		default:
			var err error
			data, err = json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request: %w", err)
			}
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
