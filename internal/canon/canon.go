// Package canon rewrites streams of trace records into canonical form.
package canon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"http-trace/internal/config"
	"http-trace/internal/trace"
	"http-trace/internal/tracefile"
)

// Stats counts what a Run did.
type Stats struct {
	Inputs  int
	Written int
	Skipped int
}

// Run decodes every record from inputs and writes it back out in canonical
// form to cfg.Output. With no inputs it reads stdin. Malformed records stop the
// run unless cfg.SkipMalformed is set, in which case they are logged and
// dropped.
func Run(ctx context.Context, cfg *config.Config, inputs []string) (Stats, error) {
	var stats Stats

	compression, err := tracefile.ParseCompression(cfg.Compression)
	if err != nil {
		return stats, err
	}
	if len(inputs) == 0 {
		inputs = []string{tracefile.Stdio}
	}

	if err := checkOutput(cfg.Output, inputs); err != nil {
		return stats, err
	}

	log.Printf("[tracefmt] canonicalizing %d input(s) to %s", len(inputs), cfg.Output)

	out, err := tracefile.Create(cfg.Output, compression)
	if err != nil {
		return stats, fmt.Errorf("create output: %w", err)
	}

	bw := bufio.NewWriter(out)
	enc := trace.NewEncoder(bw)

	for _, in := range inputs {
		if err := canonicalize(ctx, cfg, in, enc, &stats); err != nil {
			_ = out.Close()
			return stats, err
		}
		stats.Inputs++
	}

	if err := bw.Flush(); err != nil {
		_ = out.Close()
		return stats, fmt.Errorf("flush output: %w", err)
	}
	if err := out.Close(); err != nil {
		return stats, fmt.Errorf("close output: %w", err)
	}
	return stats, nil
}

// checkOutput refuses an output that is also an input, since creating the
// output truncates it before it is read.
func checkOutput(output string, inputs []string) error {
	if output == tracefile.Stdio {
		return nil
	}
	outInfo, statErr := os.Stat(output)
	outAbs, _ := filepath.Abs(output)
	for _, in := range inputs {
		if in == tracefile.Stdio {
			continue
		}
		if inAbs, _ := filepath.Abs(in); inAbs == outAbs {
			return fmt.Errorf("output %s is also an input", output)
		}
		if statErr != nil {
			continue
		}
		if inInfo, err := os.Stat(in); err == nil && os.SameFile(inInfo, outInfo) {
			return fmt.Errorf("output %s is also an input (%s)", output, in)
		}
	}
	return nil
}

func canonicalize(ctx context.Context, cfg *config.Config, path string, enc *trace.Encoder, stats *Stats) error {
	f, err := tracefile.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	dec := trace.NewDecoder(f)
	dec.SetMaxLineBytes(cfg.MaxLineBytes)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		r, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if cfg.SkipMalformed && errors.Is(err, trace.ErrMalformedRecord) {
				log.Printf("[tracefmt] skipping record in %s: %v", path, err)
				stats.Skipped++
				continue
			}
			return fmt.Errorf("%s: %w", path, err)
		}

		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		stats.Written++
	}
}
