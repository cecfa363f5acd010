// Package genclient HTTP клиент внешнего сервиса генерации. Ledger этот сервис не знает и
// знать не должен: он только шлюзует вызов через баланс и возвращает кредиты при неудаче.
package genclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const RouteGenerate = "/api/generate"

type Request struct {
	UserID int64  `json:"user_id"`
	Prompt string `json:"prompt"`
}

type Response struct {
	Result string `json:"result"`
}

// HTTPClient реализация интерфейса Generator для HTTP запросов к сервису генерации.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) HTTPClient {
	return HTTPClient{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
}

// Generate выполняет запрос генерации. При ответе сервера со статусом отличным от
// http.StatusOK возвращает ошибку StatusCodeError.
//
//nolint:nonamedreturns
func (c HTTPClient) Generate(ctx context.Context, userID int64, prompt string) (result string, err error) {
	payload, marshalErr := json.Marshal(Request{UserID: userID, Prompt: prompt})
	if marshalErr != nil {
		return "", fmt.Errorf("marshal request: %s", marshalErr.Error())
	}

	req, reqErr := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+RouteGenerate, bytes.NewReader(payload))
	if reqErr != nil {
		return "", fmt.Errorf("create request: %s", reqErr.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return "", fmt.Errorf("do request: %s", doErr.Error())
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", NewStatusCodeError(resp.StatusCode)
	}

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return "", fmt.Errorf("read response: %s", readErr.Error())
	}

	var response Response
	if jsonErr := json.Unmarshal(body, &response); jsonErr != nil {
		return "", fmt.Errorf("parse response: %s", jsonErr.Error())
	}

	return response.Result, nil
}
