package transport

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	port "sentient-cities/backend/internal/core/port/out/physics"
)

// PhysicsServiceName имя gRPC-сервиса физики
const PhysicsServiceName = "physics.Physics"

// Полные имена методов сервиса физики
const (
	PhysicsCreateBody   = "/" + PhysicsServiceName + "/CreateBody"
	PhysicsRemoveBody   = "/" + PhysicsServiceName + "/RemoveBody"
	PhysicsSetTransform = "/" + PhysicsServiceName + "/SetTransform"
	PhysicsStep         = "/" + PhysicsServiceName + "/Step"
	PhysicsTransformOf  = "/" + PhysicsServiceName + "/TransformOf"
	PhysicsBodyCount    = "/" + PhysicsServiceName + "/BodyCount"
)

type Empty struct{}

type CreateBodyRequest struct {
	Spec port.BodySpec `json:"spec"`
}

type HandleMessage struct {
	Handle port.BodyHandle `json:"handle"`
}

type SetTransformRequest struct {
	Handle    port.BodyHandle `json:"handle"`
	Transform port.Transform  `json:"transform"`
}

type StepRequest struct {
	DeltaTime float32 `json:"delta_time"`
}

type TransformResponse struct {
	Transform port.Transform `json:"transform"`
}

type BodyCountResponse struct {
	Count int `json:"count"`
}

// PhysicsStatus переводит ошибку движка в статус gRPC
func PhysicsStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, port.ErrInvalidHandle):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, port.ErrStepFailed):
		return status.Error(codes.Aborted, err.Error())
	default:
		if _, ok := status.FromError(err); ok {
			return err
		}
		return status.Error(codes.InvalidArgument, err.Error())
	}
}

// PhysicsError восстанавливает класс ошибки порта из статуса gRPC
func PhysicsError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return &remoteError{sentinel: port.ErrInvalidHandle, msg: st.Message()}
	case codes.Aborted:
		return &remoteError{sentinel: port.ErrStepFailed, msg: st.Message()}
	default:
		return err
	}
}

type remoteError struct {
	sentinel error
	msg      string
}

func (e *remoteError) Error() string { return "удаленный движок: " + e.msg }

func (e *remoteError) Unwrap() error { return e.sentinel }
