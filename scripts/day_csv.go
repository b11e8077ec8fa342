package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/Agrid-Dev/greenhouse/internal/eventlog"
	"github.com/Agrid-Dev/greenhouse/internal/greenhouse"
)

// SimulateDay ticks a fresh engine minute by minute and writes one CSV row per tick.
func SimulateDay(minutes int, seed uint64, filename string) error {
	params := greenhouse.DefaultParams()
	params.Seed = seed

	events := 0
	e, err := greenhouse.New(params, greenhouse.WithSink(eventlog.SinkFunc(func(eventlog.Entry) { events++ })))
	if err != nil {
		return fmt.Errorf("failed to create engine: %v", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"Minute", "Time", "CO2", "Cloudiness",
		"UV", "UVProgress", "CO2Lift", "CO2LiftProgress", "IR", "IRProgress", "TotalIRkWh",
	}); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for range minutes {
		s := e.Tick()
		if err := writer.Write([]string{
			strconv.FormatUint(uint64(s.Minutes), 10),
			s.Time.Format("15:04"),
			strconv.Itoa(s.CO2Level),
			strconv.Itoa(s.Cloudiness),
			strconv.FormatBool(s.UV.Active),
			fmt.Sprintf("%.2f", s.UV.Progress),
			strconv.FormatBool(s.CO2Lift.Active),
			fmt.Sprintf("%.2f", s.CO2Lift.Progress),
			strconv.FormatBool(s.IR.Active),
			fmt.Sprintf("%.2f", s.IR.Progress),
			fmt.Sprintf("%.2f", s.TotalIRConsumption),
		}); err != nil {
			return fmt.Errorf("failed to write CSV record: %v", err)
		}
	}

	log.Printf("simulated %d minutes, %d events", minutes, events)
	return nil
}

func main() {
	minutes := flag.Int("minutes", int((24 * time.Hour).Minutes()), "simulated minutes to run")
	seed := flag.Uint64("seed", 1, "random seed")
	out := flag.String("out", "greenhouse.csv", "output CSV file")
	flag.Parse()

	if err := SimulateDay(*minutes, *seed, *out); err != nil {
		log.Fatal(err)
	}
}
