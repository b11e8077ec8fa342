package ports

import (
	"github.com/Agrid-Dev/greenhouse/internal/eventlog"
	"github.com/Agrid-Dev/greenhouse/internal/greenhouse"
)

// GreenhouseService is the control-plane port used by controllers (HTTP/MQTT/Modbus).
type GreenhouseService interface {
	Get() greenhouse.Snapshot
	Running() bool
	SetRunning(bool) bool
	Toggle(greenhouse.Subsystem) (bool, error)
}

// EventSource exposes the recent event log to controllers that display it.
type EventSource interface {
	Entries() []eventlog.Entry
}
