package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harshilgor/testtaker-sub001/internal/attempt"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import attempts from a JSON-lines file (- for stdin)",
	Long: `Import reads one raw attempt JSON object per line. Rows that fail validation
are skipped and counted; attempts already stored are ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	rt, err := open(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	raws, bad, err := readRaw(in, rt)
	if err != nil {
		return err
	}
	events, dropped := rt.normalizer.NormalizeAll(raws, rt.log)
	dropped += bad

	before, err := rt.store.CountAttempts(ctx, rt.user)
	if err != nil {
		return err
	}
	if err := rt.store.AppendAttempts(ctx, rt.user, events); err != nil {
		return err
	}
	after, err := rt.store.CountAttempts(ctx, rt.user)
	if err != nil {
		return err
	}

	// Bring quest progress up to date with the imported history.
	if err := rt.warm(ctx); err != nil {
		return err
	}
	if err := rt.flush(ctx); err != nil {
		return err
	}

	fmt.Printf("Imported %d attempts (%d already present, %d dropped)\n",
		after-before, len(events)-(after-before), dropped)
	return nil
}

// readRaw decodes one raw attempt per non-empty line. Lines that fail schema
// validation are logged and counted, not fatal.
func readRaw(in io.Reader, rt *runtime) ([]attempt.Raw, int, error) {
	var (
		raws []attempt.Raw
		bad  int
		line int
	)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		raw, err := attempt.DecodeJSON(b)
		if err != nil {
			rt.log.Warn("skipping malformed line", "line", line, "error", err)
			bad++
			continue
		}
		raws = append(raws, raw)
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("read line %d: %w", line+1, err)
	}
	return raws, bad, nil
}
