package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"

	"mitra/models"
)

// payload picks the response payload out of the envelope. Current backends use
// "data"; legacy ones put it under "message", which only counts when it holds
// an object or array (a plain string there is a human-readable note).
func payload(op string, body []byte) (json.RawMessage, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, models.WrapError(models.KindProtocol, op, fmt.Errorf("response is not a JSON object: %w", err))
	}
	if raw, ok := env["data"]; ok && !isNull(raw) {
		return raw, nil
	}
	if raw, ok := env["message"]; ok && isStructured(raw) {
		return raw, nil
	}
	return nil, models.NewError(models.KindProtocol, op, "response carries no payload under data or message")
}

// decodeInto unwraps the envelope and decodes the payload into out.
func decodeInto(op string, body []byte, out any) error {
	raw, err := payload(op, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return models.WrapError(models.KindProtocol, op, fmt.Errorf("decode payload: %w", err))
	}
	return nil
}

// decodeTransaction is the strict decode step: a transaction without trx_code or
// with a status outside the lifecycle is rejected rather than cached.
func decodeTransaction(op string, body []byte) (*models.Transaction, error) {
	var trx models.Transaction
	if err := decodeInto(op, body, &trx); err != nil {
		return nil, err
	}
	if trx.TrxCode == "" {
		return nil, models.NewError(models.KindProtocol, op, "transaction payload has no trx_code")
	}
	status, ok := models.ParseStatus(string(trx.Status))
	if !ok {
		return nil, models.NewError(models.KindProtocol, op, fmt.Sprintf("transaction payload has unknown status %q", trx.Status))
	}
	trx.Status = status
	return &trx, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isStructured(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}
