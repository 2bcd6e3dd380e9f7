package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"mythra/pkg/batch"
	"mythra/pkg/blake2gen"
	"mythra/pkg/programstore"
	"mythra/pkg/serializer"
	"mythra/pkg/superscalar"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

func main() {
	configPath, fv := registerFlags(flag.CommandLine)
	flag.Parse()

	fs := afero.NewOsFs()

	config := defaultConfig()
	if *configPath != "" {
		var err error
		config, err = loadConfig(fs, *configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	fv.applyFlags(flag.CommandLine, &config)

	if err := config.validate(); err != nil {
		log.Fatalf("Error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, config, fs, os.Stdout); err != nil {
		log.Fatalf("Failed: %v", err)
	}
}

func run(ctx context.Context, config Config, fs afero.Fs, out io.Writer) error {
	seed, err := config.seedBytes()
	if err != nil {
		return err
	}

	programs, err := generatePrograms(ctx, config, seed)
	if err != nil {
		return err
	}
	log.Printf("Generated %d programs from nonce %d", len(programs), config.Nonce)

	if config.DataPath != "" {
		if err := cachePrograms(config.DataPath, seed, config.Nonce, programs); err != nil {
			return err
		}
	}

	for i, p := range programs {
		nonce := config.Nonce + uint32(i)
		hash := serializer.ProgramHash(p)
		fmt.Fprintf(out, "; program %d, hash %x\n%s", nonce, hash, p)
		log.Printf("Program %d: %d instructions (%d shared with the VM), cpu latency %d, asic latency %d",
			nonce, p.Size(), vmInstructionCount(p), p.CPULatency, p.ASICLatency)

		if config.DumpDir != "" {
			if _, err := saveProgram(fs, config.DumpDir, nonce, serializer.EncodeProgram(p)); err != nil {
				return err
			}
		}
	}
	return nil
}

func generatePrograms(ctx context.Context, config Config, seed []byte) ([]*superscalar.Program, error) {
	if !config.Trace {
		return batch.GenerateRange(ctx, seed, config.Nonce, config.Count, config.Workers)
	}

	// the trace of parallel generators would interleave
	trace := log.New(os.Stderr, "", 0)
	programs := make([]*superscalar.Program, 0, config.Count)
	for i := 0; i < config.Count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gen, err := blake2gen.New(seed, config.Nonce+uint32(i))
		if err != nil {
			return nil, err
		}
		programs = append(programs, superscalar.Generate(gen, superscalar.WithTrace(trace)))
	}
	return programs, nil
}

// cachePrograms stores new programs and checks cached ones against the
// fresh generation, all in one transaction.
func cachePrograms(dataPath string, seed []byte, first uint32, programs []*superscalar.Program) error {
	store, err := programstore.Open(dataPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.BeginTransaction(); err != nil {
		return err
	}
	stored := 0
	for i, p := range programs {
		nonce := first + uint32(i)
		cached, err := store.Get(seed, nonce)
		switch {
		case err == nil:
			if serializer.ProgramHash(cached) != serializer.ProgramHash(p) {
				store.RollbackTransaction()
				return fmt.Errorf("cached program %d does not match the generated one", nonce)
			}
		case errors.Is(err, programstore.ErrNotFound):
			if err := store.Put(seed, nonce, p); err != nil {
				store.RollbackTransaction()
				return err
			}
			stored++
		default:
			store.RollbackTransaction()
			return err
		}
	}
	if err := store.CommitTransaction(); err != nil {
		return fmt.Errorf("failed to commit program cache: %w", err)
	}
	log.Printf("Cached %d new programs in %s", stored, dataPath)
	return nil
}

func vmInstructionCount(p *superscalar.Program) int {
	n := 0
	for _, ins := range p.Instructions {
		if _, ok := ins.Opcode.VMOpcode(); ok {
			n++
		}
	}
	return n
}

// saveProgram writes an encoded program to a uniquely named file in dumpDir
func saveProgram(fs afero.Fs, dumpDir string, nonce uint32, data []byte) (string, error) {
	if err := fs.MkdirAll(dumpDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	filename := filepath.Join(dumpDir, fmt.Sprintf("program_%d_%s.bin", nonce, uuid.New().String()))
	if err := afero.WriteFile(fs, filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write program %d: %w", nonce, err)
	}

	log.Printf("Saved program %d (%d bytes) to %s", nonce, len(data), filename)
	return filename, nil
}
