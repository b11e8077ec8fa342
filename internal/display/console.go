// Package display renders snapshots as one status line per tick.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Agrid-Dev/greenhouse/internal/greenhouse"
)

// Console writes a status line for every snapshot it is given.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Render(s greenhouse.Snapshot) {
	line := Format(s)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.w, line+"\n")
}

// Format renders e.g. "06:15 CO₂ 650 ppm | clouds 58% | uv ON 16% | co2 ON 21% | ir off".
func Format(s greenhouse.Snapshot) string {
	parts := []string{
		fmt.Sprintf("%s CO₂ %d ppm", s.Time.Format("15:04"), s.CO2Level),
		fmt.Sprintf("clouds %d%%", s.Cloudiness),
	}
	for _, sub := range greenhouse.Subsystems {
		parts = append(parts, subsystem(sub.String(), s.Subsystem(sub)))
	}
	return strings.Join(parts, " | ")
}

func subsystem(name string, st greenhouse.SubsystemState) string {
	if !st.Active {
		return name + " off"
	}
	return fmt.Sprintf("%s ON %.0f%%", name, st.Progress)
}
