package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"bus-tracker/internal/mylogger"

	"github.com/goccy/go-json"
)

type HTTPClient struct {
	client *http.Client
	logger mylogger.Logger
}

func NewHTTPClient(logger mylogger.Logger) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (h *HTTPClient) DoRequest(method, url string, body interface{}, headers map[string]string) ([]byte, error) {
	time.Sleep(HTTPRequestDelay)

	var bodyBytes []byte
	var err error

	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
	}

	req, err := http.NewRequest(method, url, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	h.logger.Action("http_response").Debug("response received", "method", method, "url", url, "status", resp.StatusCode)

	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}
