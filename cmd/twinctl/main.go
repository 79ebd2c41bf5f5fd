package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	logpkg "twin-data/common/logger"
	"twin-data/internal/client"
	"twin-data/internal/domain"
	"twin-data/internal/journal"
	"twin-data/internal/registry"
)

const usage = `Usage: twinctl [-server URL] <command> [flags]

Commands:
  sensors   list sensors (-kind, -type, -q)
  rows      list mapping rows
  add       add a manual reading (-sensor, -date, -time, -value, -notes)
  history   list manual entry history
  export    export manual sensor definitions (-o file)
  import    import manual sensor definitions (-f file)
`

func main() {
	server := flag.String("server", envOr("TWIN_DATA_URL", "http://localhost:8080"), "twin-data base URL")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logpkg.NewLogger("warn", "console", "twinctl")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	c := client.New(*server, log)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, c, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.Client, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	switch cmd {
	case "sensors":
		kind := fs.String("kind", "", "automatic | manual")
		typ := fs.String("type", "", "sensor type")
		q := fs.String("q", "", "search by name, code or location")
		_ = fs.Parse(args)
		sensors, err := c.ListSensors(ctx, registry.Filter{Kind: domain.SensorKind(*kind), Type: *typ, Query: *q})
		if err != nil {
			return err
		}
		for _, s := range sensors {
			fmt.Printf("%-10s %-8s %-10s %-30s %s\n", s.ID, s.Code, s.Type, s.Name, s.Unit)
		}
		fmt.Printf("Total: %d\n", len(sensors))
		return nil

	case "rows":
		_ = fs.Parse(args)
		rows, err := c.MappingRows(ctx)
		if err != nil {
			return err
		}
		return printJSON(rows)

	case "add":
		sensorID := fs.String("sensor", "", "sensor ID (required)")
		now := time.Now()
		date := fs.String("date", now.Format("2006-01-02"), "YYYY-MM-DD")
		clock := fs.String("time", now.Format("15:04"), "HH:MM")
		value := fs.String("value", "", "reading value (required)")
		notes := fs.String("notes", "", "notes")
		_ = fs.Parse(args)
		if *sensorID == "" || *value == "" {
			return fmt.Errorf("-sensor and -value are required")
		}
		res, warning, err := c.AddReading(ctx, *sensorID, journal.Entry{
			Date: *date, Time: *clock, Value: *value, Notes: *notes, EnteredBy: "twinctl",
		})
		if err != nil {
			return err
		}
		if warning != "" {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
		fmt.Printf("Saved %s = %v at %s\n", res.SensorID, res.Reading.Value, res.Reading.Timestamp)
		return nil

	case "history":
		_ = fs.Parse(args)
		entries, err := c.History(ctx)
		if err != nil {
			return err
		}
		return printJSON(entries)

	case "export":
		out := fs.String("o", "", "output file (default stdout)")
		_ = fs.Parse(args)
		data, err := c.ExportSensors(ctx)
		if err != nil {
			return err
		}
		if *out == "" {
			_, err = os.Stdout.Write(data)
			return err
		}
		return os.WriteFile(*out, data, 0o644)

	case "import":
		in := fs.String("f", "", "input JSON file (required)")
		_ = fs.Parse(args)
		if *in == "" {
			return fmt.Errorf("-f is required")
		}
		data, err := os.ReadFile(*in)
		if err != nil {
			return err
		}
		res, err := c.ImportSensors(ctx, data)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d of %d, skipped %d\n", res.Imported, res.Total, res.Skipped)
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
