package device

import (
	"github.com/google/uuid"

	"github.com/Agrid-Dev/greenhouse/internal/greenhouse"
)

// Device ties a simulation to its identity. RunID changes on every process start.
type Device struct {
	ID    string
	RunID uuid.UUID
	E     *greenhouse.Engine
}

func New(id string, e *greenhouse.Engine) *Device {
	return &Device{ID: id, RunID: uuid.New(), E: e}
}
