package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/theckman/yacspin"

	vault "github.com/duskvault/chunkvault"
	"github.com/duskvault/chunkvault/pkg/labels"
	"github.com/duskvault/chunkvault/pkg/logging"
)

func main() {
	debug := flag.Bool("v", false, "Enable verbose (debug) logging")
	labelName := flag.String("label", "Default", "Label to restore")
	labelID := flag.Uint64("label-id", labels.DefaultLabelID, "Label id to restore (overrides -label unless left at the default id 1)")
	dest := flag.String("o", "./restored", "Destination directory")

	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: vaultrestore [options] <vault-path>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	level := logging.LEVEL_INFO
	if *debug {
		level = logging.LEVEL_DEBUG
	}
	log := logging.NewSimpleLogger(os.Stderr, level, true)

	v, err := vault.Open(flag.Arg(0), vault.WithLogger(log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open vault: %v\n", err)
		os.Exit(1)
	}

	resolvedLabelID := *labelID
	if *labelID == labels.DefaultLabelID && *labelName != "Default" {
		found := false
		for _, l := range v.Labels() {
			if l.Name == *labelName {
				resolvedLabelID = l.ID
				found = true
				break
			}
		}
		if !found {
			fmt.Fprintf(os.Stderr, "no such label: %s\n", *labelName)
			os.Exit(1)
		}
	}
	labelID = &resolvedLabelID

	spinner, _ := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " restoring",
		SuffixAutoColon: true,
		Message:         "starting",
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	})
	if spinner != nil {
		_ = spinner.Start()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	progress := func(filename string, _, _ int64, fileNum, totalFiles int) {
		if spinner != nil {
			_ = spinner.Message(fmt.Sprintf("%s (%d/%d files)", filename, fileNum, totalFiles))
		}
	}

	results, err := v.Restore(ctx, vault.RestoreOptions{
		LabelID:  *labelID,
		DestRoot: *dest,
		Progress: progress,
	})

	if spinner != nil {
		if err != nil {
			_ = spinner.StopFail()
		} else {
			_ = spinner.Stop()
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "restore failed: %v\n", err)
		os.Exit(1)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "error restoring %s: %v\n", r.FileName, r.Err)
		}
	}
	fmt.Printf("restored %d files to %s (%d errors)\n", len(results), *dest, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
