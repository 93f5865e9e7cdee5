package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
)

func checkParamCount(params []string, expected int, commandName string) error {
	if len(params) != expected {
		return fmt.Errorf("invalid number of parameters for '%s' command", commandName)
	}
	return nil
}

func doRequest(method, url string, body string, contentType string, expectedStatus int) (*http.Response, error) {
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != expectedStatus {
		defer func() {
			_ = resp.Body.Close()
		}()
		return nil, fmt.Errorf("unexpected status code: %s", resp.Status)
	}
	return resp, nil
}

func getJSON(settings *Settings, endpoint string) error {
	resp, err := doRequest("GET", BuildURL(settings, endpoint), "", "", http.StatusOK)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	PrintJSONResponse(resp)
	return nil
}

func handleStatusCommand(params []string, settings *Settings) error {
	if err := checkParamCount(params, 0, "status"); err != nil {
		return err
	}
	return getJSON(settings, "/api/v1/db/status")
}

func handleCollectionsCommand(params []string, settings *Settings) error {
	if err := checkParamCount(params, 0, "collections"); err != nil {
		return err
	}
	return getJSON(settings, "/api/v1/collections")
}

func handleCollectionCommand(params []string, settings *Settings) error {
	if err := checkParamCount(params, 1, "collection"); err != nil {
		return err
	}
	return getJSON(settings, "/api/v1/collections/"+url.PathEscape(params[0]))
}

func handleFeaturesCommand(params []string, settings *Settings) error {
	if err := checkParamCount(params, 2, "features"); err != nil {
		return err
	}
	limit, err := strconv.Atoi(params[1])
	if err != nil || limit < 0 {
		return fmt.Errorf("invalid limit: %s", params[1])
	}
	return getJSON(settings, fmt.Sprintf("/api/v1/collections/%s/features?limit=%d", url.PathEscape(params[0]), limit))
}

func handlePutCommand(params []string, settings *Settings) error {
	if err := checkParamCount(params, 2, "put"); err != nil {
		return err
	}
	data, err := os.ReadFile(params[1])
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("/api/v1/collections/%s/features", url.PathEscape(params[0]))
	resp, err := doRequest("POST", BuildURL(settings, endpoint), string(data), "application/geo+json", http.StatusCreated)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	PrintJSONResponse(resp)
	return nil
}

func handleWriteCommand(params []string, settings *Settings) error {
	if err := checkParamCount(params, 1, "write"); err != nil {
		return err
	}
	resp, err := doRequest("POST", BuildURL(settings, "/api/v1/records"), params[0], "application/octet-stream", http.StatusCreated)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	PrintJSONResponse(resp)
	return nil
}

func handleGetCommand(params []string, settings *Settings) error {
	if err := checkParamCount(params, 2, "get"); err != nil {
		return err
	}
	page, err := strconv.ParseUint(params[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid page id: %s", params[0])
	}
	slot, err := strconv.ParseUint(params[1], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid slot id: %s", params[1])
	}
	endpoint := fmt.Sprintf("/api/v1/records/%d/%d", page, slot)
	resp, err := doRequest("GET", BuildURL(settings, endpoint), "", "", http.StatusOK)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	PrintRecordResponse(resp)
	return nil
}
