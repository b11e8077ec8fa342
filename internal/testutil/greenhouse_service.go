package testutil

import (
	"sync"
	"time"

	"github.com/Agrid-Dev/greenhouse/internal/eventlog"
	"github.com/Agrid-Dev/greenhouse/internal/greenhouse"
)

// FakeGreenhouseService is a reusable fake implementing ports.GreenhouseService.
// Put ONLY what multiple test packages need here.
type FakeGreenhouseService struct {
	mu sync.Mutex
	S  greenhouse.Snapshot

	SetRunningCalls []bool

	ToggleCalls []greenhouse.Subsystem
	ToggleErr   error

	Events []eventlog.Entry
}

func NewFakeGreenhouseService() *FakeGreenhouseService {
	at := time.Date(2026, 10, 14, 6, 15, 0, 0, time.UTC)
	return &FakeGreenhouseService{
		S: greenhouse.Snapshot{
			Time:             at,
			Minutes:          45,
			CO2Level:         650,
			StartCO2Level:    500,
			Cloudiness:       58,
			UV:               greenhouse.SubsystemState{Active: true, Progress: 16},
			CO2Lift:          greenhouse.SubsystemState{Active: true, Progress: 21.43},
			IR:               greenhouse.SubsystemState{Active: true, Progress: 16},
			LastIRActivation: at.Add(45 * time.Minute),
		},
		Events: []eventlog.Entry{
			{Time: at.Add(-45 * time.Minute), Message: "System initialized. CO₂: 500 ppm, Cloudiness: 58%"},
			{Time: at.Add(-15 * time.Minute), Message: "UV irradiation system enabled."},
		},
	}
}

func (f *FakeGreenhouseService) Get() greenhouse.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.S
}

func (f *FakeGreenhouseService) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.S.Running
}

func (f *FakeGreenhouseService) SetRunning(on bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetRunningCalls = append(f.SetRunningCalls, on)
	changed := f.S.Running != on
	f.S.Running = on
	return changed
}

func (f *FakeGreenhouseService) Toggle(sub greenhouse.Subsystem) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ToggleCalls = append(f.ToggleCalls, sub)
	if f.ToggleErr != nil {
		return false, f.ToggleErr
	}
	if !sub.Valid() {
		return false, greenhouse.ErrInvalidSubsystem
	}
	var st *greenhouse.SubsystemState
	switch sub {
	case greenhouse.SubsystemUV:
		st = &f.S.UV
	case greenhouse.SubsystemCO2Lift:
		st = &f.S.CO2Lift
	default:
		st = &f.S.IR
	}
	st.Active = !st.Active
	if !st.Active {
		st.Progress = 0
	}
	return st.Active, nil
}

// Set replaces the snapshot under the lock.
func (f *FakeGreenhouseService) Set(mod func(*greenhouse.Snapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mod(&f.S)
}

func (f *FakeGreenhouseService) Entries() []eventlog.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]eventlog.Entry(nil), f.Events...)
}

func (f *FakeGreenhouseService) Calls() (running []bool, toggles []greenhouse.Subsystem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.SetRunningCalls...), append([]greenhouse.Subsystem(nil), f.ToggleCalls...)
}
