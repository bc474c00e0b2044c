package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-hclog"
	"github.com/heysubinoy/pyazcell/internal/logging"
	"github.com/heysubinoy/pyazcell/internal/remote"
	"github.com/heysubinoy/pyazcell/internal/store"
	"github.com/heysubinoy/pyazcell/pkg/cell"
	"github.com/heysubinoy/pyazcell/pkg/config"
	"github.com/heysubinoy/pyazcell/pkg/kv"
)

var errCellFailed = errors.New("store operation failed")

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	raw := flag.Bool("raw", false, "store and print values as plain text")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cellctl: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New("cellctl", cfg.LogLevel)

	st, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	command, key := args[0], args[1]

	switch command {
	case "get":
		err = handleGet(st, logger, key, *raw)

	case "set":
		if len(args) < 3 {
			fmt.Println("Usage: cellctl [-raw] set <key> <value>")
			os.Exit(1)
		}
		err = handleSet(st, logger, key, args[2], *raw)

	case "incr":
		delta := int64(1)
		if len(args) > 2 {
			delta, err = strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				fmt.Printf("Invalid delta %q\n", args[2])
				os.Exit(1)
			}
		}
		err = handleIncr(st, logger, key, delta)

	case "remove":
		err = handleRemove(st, logger, key)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		closeStore()
		fmt.Fprintf(os.Stderr, "cellctl: %s %s: %v\n", command, key, err)
		os.Exit(1)
	}
}

// openStore prefers a remote host over the local bolt file.
func openStore(cfg *config.Config) (kv.Store, func(), error) {
	if cfg.StoreAddr != "" {
		rs, err := remote.Dial(cfg.StoreAddr, cfg.RequestTimeout)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { rs.Close() }, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create store dir: %w", err)
	}
	bs, err := store.OpenBoltStore(cfg.StorePath)
	if err != nil {
		return nil, nil, err
	}
	return bs, func() { bs.Close() }, nil
}

// failureTracker logs swallowed cell failures and remembers whether one happened.
type failureTracker struct {
	logger hclog.Logger
	failed bool
}

func (f *failureTracker) handler() cell.ErrorHandler {
	log := logging.CellErrors(f.logger)
	return func(op cell.Op, key string, err error) {
		f.failed = true
		log(op, key, err)
	}
}

func (f *failureTracker) err() error {
	if f.failed {
		return errCellFailed
	}
	return nil
}

func openAnyCell(st kv.Store, key string, raw bool, onError cell.ErrorHandler) (*cell.Cell[any], error) {
	opts := []cell.Option[any]{cell.WithErrorHandler[any](onError)}
	if raw {
		opts = append(opts, cell.WithRaw[any]())
	}
	return cell.New(st, key, opts...)
}

func handleGet(st kv.Store, logger hclog.Logger, key string, raw bool) error {
	tracker := &failureTracker{logger: logger}
	c, err := openAnyCell(st, key, raw, tracker.handler())
	if err != nil {
		return err
	}
	if err := tracker.err(); err != nil {
		return err
	}

	v, ok := c.Get()
	if !ok {
		return fmt.Errorf("key '%s' not found", key)
	}
	out, err := format(v, raw)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func handleSet(st kv.Store, logger hclog.Logger, key, arg string, raw bool) error {
	var value any = arg
	if !raw {
		if err := json.Unmarshal([]byte(arg), &value); err != nil {
			return fmt.Errorf("value is not valid JSON (use -raw for plain text): %w", err)
		}
	}

	tracker := &failureTracker{logger: logger}
	c, err := openAnyCell(st, key, raw, tracker.handler())
	if err != nil {
		return err
	}
	c.Set(value)
	if err := tracker.err(); err != nil {
		return err
	}

	out, err := format(c.Value(), raw)
	if err != nil {
		return err
	}
	fmt.Printf("Set '%s' = %s\n", key, out)
	return nil
}

func handleIncr(st kv.Store, logger hclog.Logger, key string, delta int64) error {
	tracker := &failureTracker{logger: logger}
	c, err := cell.New(st, key,
		cell.WithInitial[int64](0),
		cell.WithErrorHandler[int64](tracker.handler()),
	)
	if err != nil {
		return err
	}
	// A value that does not decode as an integer must not be overwritten.
	if err := tracker.err(); err != nil {
		return err
	}

	c.Update(func(n int64, _ bool) (int64, bool) {
		return n + delta, true
	})
	if err := tracker.err(); err != nil {
		return err
	}
	fmt.Printf("%s = %d\n", key, c.Value())
	return nil
}

func handleRemove(st kv.Store, logger hclog.Logger, key string) error {
	tracker := &failureTracker{logger: logger}
	c, err := openAnyCell(st, key, true, tracker.handler())
	if err != nil {
		return err
	}
	c.Remove()
	if err := tracker.err(); err != nil {
		return err
	}
	fmt.Printf("Removed '%s'\n", key)
	return nil
}

func format(v any, raw bool) (string, error) {
	if s, ok := v.(string); ok && raw {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  cellctl [-config file] [-raw] get <key>")
	fmt.Println("  cellctl [-config file] [-raw] set <key> <value>")
	fmt.Println("  cellctl [-config file] incr <key> [delta]")
	fmt.Println("  cellctl [-config file] remove <key>")
	fmt.Println("")
	fmt.Println("Environment variables:")
	fmt.Println("  STORE_ADDR - celld gRPC address; when unset a local bolt file is used")
	fmt.Println("  STORE_PATH - bolt file path (default: ./pyazcell/node1/cells.db)")
}
