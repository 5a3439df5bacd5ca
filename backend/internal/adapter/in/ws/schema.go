package ws

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/client_message.schema.json
var clientMessageSchema []byte

const clientMessageSchemaURL = "client_message.schema.json"

// compileClientSchema компилирует схему входящих сообщений
func compileClientSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(clientMessageSchemaURL, bytes.NewReader(clientMessageSchema)); err != nil {
		return nil, fmt.Errorf("схема сообщений: %w", err)
	}
	s, err := c.Compile(clientMessageSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("компиляция схемы сообщений: %w", err)
	}
	return s, nil
}

// decodeClientMessage проверяет сырое сообщение по схеме и разбирает его
func decodeClientMessage(schema *jsonschema.Schema, raw []byte) (ClientMessage, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ClientMessage{}, fmt.Errorf("некорректный JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return ClientMessage{}, fmt.Errorf("сообщение не соответствует схеме: %w", err)
	}
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("разбор сообщения: %w", err)
	}
	return msg, nil
}
