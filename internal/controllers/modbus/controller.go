package modbusctrl

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	mbserver "github.com/tbrandon/mbserver"

	"github.com/Agrid-Dev/greenhouse/internal/greenhouse"
	"github.com/Agrid-Dev/greenhouse/internal/ports"
)

// Coil map. Coil 0 starts/stops the simulation; coils 1..3 mirror the
// subsystems and toggle them when written with a different value.
const (
	CoilRunning = iota
	CoilUV
	CoilCO2Lift
	CoilIR
	coilCount
)

// Input register map.
const (
	RegCO2Level = iota
	RegCloudiness
	RegUVProgress
	RegCO2LiftProgress
	RegIRProgress
	RegMinutes
	RegHour
	RegMinute
	RegStartCO2Level
	RegLastIRConsumption
	registerCount
)

// ProgressScale is applied to progress and kWh registers.
const ProgressScale int = 100

// Config for the Modbus controller.
type Config struct {
	DeviceID string
	Addr     string
	UnitID   byte // UnitID (Modbus slave/unit ID). Use an integer 1..247.
}

type Controller struct {
	svc ports.GreenhouseService
	cfg Config

	serv *mbserver.Server
}

func New(svc ports.GreenhouseService, cfg Config) (*Controller, error) {
	if cfg.UnitID == 0 {
		return nil, errors.New("modbus: UnitID is required (non-zero)")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:1502"
	}
	return &Controller{svc: svc, cfg: cfg}, nil
}

// Run starts the Modbus server. Reads are served straight from the service
// snapshot and writes are applied immediately. It blocks until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	serv := mbserver.NewServer()
	c.serv = serv

	// Register handlers BEFORE starting the TCP listener to avoid races inside mbserver
	// between handler registration and the server's goroutines.
	serv.RegisterFunctionHandler(1, c.readCoils)
	serv.RegisterFunctionHandler(4, c.readInputRegisters)
	serv.RegisterFunctionHandler(5, c.writeSingleCoil)

	if err := serv.ListenTCP(c.cfg.Addr); err != nil {
		return fmt.Errorf("mbserver listen tcp %s: %w", c.cfg.Addr, err)
	}

	// Block until ctx.Done()
	<-ctx.Done()
	serv.Close()
	return ctx.Err()
}

// Read Coils (function 1).
func (c *Controller) readCoils(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	start, qty, exc := readRange(frame.GetData(), coilCount, 2000)
	if exc != nil {
		return []byte{}, exc
	}
	coils := coilValues(c.svc.Get())

	byteCount := (qty + 7) / 8
	resp := make([]byte, 1+byteCount)
	resp[0] = byte(byteCount)
	for i := 0; i < qty; i++ {
		if coils[start+i] {
			resp[1+i/8] |= 1 << uint(i%8)
		}
	}
	return resp, &mbserver.Success
}

// Read Input Registers (function 4).
func (c *Controller) readInputRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	start, qty, exc := readRange(frame.GetData(), registerCount, 125)
	if exc != nil {
		return []byte{}, exc
	}
	regs := registerValues(c.svc.Get())

	byteCount := qty * 2
	resp := make([]byte, 1+byteCount)
	resp[0] = byte(byteCount)
	for i := 0; i < qty; i++ {
		binary.BigEndian.PutUint16(resp[1+i*2:1+i*2+2], regs[start+i])
	}
	return resp, &mbserver.Success
}

// Write Single Coil (function 5).
func (c *Controller) writeSingleCoil(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	addr := binary.BigEndian.Uint16(data[0:2])
	value := binary.BigEndian.Uint16(data[2:4])

	var on bool
	switch value {
	case 0x0000:
		on = false
	case 0xFF00:
		on = true
	default:
		return []byte{}, &mbserver.IllegalDataValue
	}

	switch addr {
	case CoilRunning:
		c.svc.SetRunning(on)
	case CoilUV, CoilCO2Lift, CoilIR:
		sub := coilSubsystem(int(addr))
		if c.svc.Get().Subsystem(sub).Active != on {
			if _, err := c.svc.Toggle(sub); err != nil {
				return []byte{}, &mbserver.IllegalDataValue
			}
		}
	default:
		return []byte{}, &mbserver.IllegalDataAddress
	}

	// echo request (address + value)
	resp := make([]byte, 4)
	copy(resp, data[0:4])
	return resp, &mbserver.Success
}

func readRange(data []byte, size, maxQty int) (start, qty int, exc *mbserver.Exception) {
	if len(data) < 4 {
		return 0, 0, &mbserver.IllegalDataValue
	}
	start = int(binary.BigEndian.Uint16(data[0:2]))
	qty = int(binary.BigEndian.Uint16(data[2:4]))
	if qty == 0 || qty > maxQty {
		return 0, 0, &mbserver.IllegalDataValue
	}
	if start+qty > size {
		return 0, 0, &mbserver.IllegalDataAddress
	}
	return start, qty, nil
}

func coilSubsystem(addr int) greenhouse.Subsystem {
	switch addr {
	case CoilUV:
		return greenhouse.SubsystemUV
	case CoilCO2Lift:
		return greenhouse.SubsystemCO2Lift
	case CoilIR:
		return greenhouse.SubsystemIR
	default:
		return greenhouse.SubsystemUnknown
	}
}

func coilValues(s greenhouse.Snapshot) [coilCount]bool {
	return [coilCount]bool{
		CoilRunning: s.Running,
		CoilUV:      s.UV.Active,
		CoilCO2Lift: s.CO2Lift.Active,
		CoilIR:      s.IR.Active,
	}
}

func registerValues(s greenhouse.Snapshot) [registerCount]uint16 {
	return [registerCount]uint16{
		RegCO2Level:          uint16(s.CO2Level),
		RegCloudiness:        uint16(s.Cloudiness),
		RegUVProgress:        encodeScaled(s.UV.Progress),
		RegCO2LiftProgress:   encodeScaled(s.CO2Lift.Progress),
		RegIRProgress:        encodeScaled(s.IR.Progress),
		RegMinutes:           uint16(s.Minutes),
		RegHour:              uint16(s.Time.Hour()),
		RegMinute:            uint16(s.Time.Minute()),
		RegStartCO2Level:     uint16(s.StartCO2Level),
		RegLastIRConsumption: encodeScaled(s.LastIRConsumption),
	}
}

func encodeScaled(v float64) uint16 {
	r := min(max(int(math.Round(v*float64(ProgressScale))), 0), math.MaxUint16)
	return uint16(r)
}

func decodeScaled(u uint16) float64 {
	return float64(u) / float64(ProgressScale)
}
