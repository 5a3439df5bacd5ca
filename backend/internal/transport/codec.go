// Package transport содержит общие части gRPC-транспорта: JSON-кодек и
// описание сервиса физики, общее для клиента и сервера.
package transport

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName подтип содержимого, под которым зарегистрирован кодек
const CodecName = "json"

// JSONCodec кодирует сообщения gRPC в JSON.
// Позволяет обходиться без сгенерированных protobuf-типов.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json-кодек: маршалинг %T: %w", v, err)
	}
	return b, nil
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json-кодек: демаршалинг %T: %w", v, err)
	}
	return nil
}

func (JSONCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(JSONCodec{})
}

// CallOption заставляет клиентский вызов использовать JSON-кодек
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}

// DialOption включает JSON-кодек для всех вызовов соединения
func DialOption() grpc.DialOption {
	return grpc.WithDefaultCallOptions(CallOption())
}
