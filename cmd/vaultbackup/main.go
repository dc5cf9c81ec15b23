package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/theckman/yacspin"

	vault "github.com/duskvault/chunkvault"
	"github.com/duskvault/chunkvault/pkg/labels"
	"github.com/duskvault/chunkvault/pkg/logging"
)

func main() {
	debug := flag.Bool("v", false, "Enable verbose (debug) logging")
	backupType := flag.String("type", "full", "Backup type: full, incremental, or differential")
	description := flag.String("description", "", "Free-text description for this snapshot")
	labelName := flag.String("label", "Default", "Label to back up into")
	labelID := flag.Uint64("label-id", 0, "Existing label id to back up into (overrides -label)")
	compress := flag.Bool("compress", true, "Enable zlib compression of chunk payloads")
	maxVolumeMB := flag.Uint64("volume-size", 700, "Maximum size in MB of each volume before rollover")

	flag.Parse()

	if flag.NArg() < 2 {
		fmt.Println("Usage: vaultbackup [options] <vault-path> <root> [root...]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	level := logging.LEVEL_INFO
	if *debug {
		level = logging.LEVEL_DEBUG
	}
	log := logging.NewSimpleLogger(os.Stderr, level, true)

	// Tag every log line from this invocation with a run id so a single
	// backup's lines can be picked out of a shared log stream.
	runID := uuid.NewString()
	log = log.WithValues("run_id", runID)

	v, err := vault.Open(flag.Arg(0),
		vault.WithLogger(log),
		vault.WithCompression(*compress),
		vault.WithMaxVolumeSizeMB(*maxVolumeMB),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open vault: %v\n", err)
		os.Exit(1)
	}

	btype, err := parseBackupType(*backupType)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " backing up",
		SuffixAutoColon: true,
		Message:         "starting",
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	})
	if err == nil {
		_ = spinner.Start()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	progress := func(filename string, transferred, total int64, fileNum, totalFiles int) {
		if spinner == nil {
			return
		}
		_ = spinner.Message(fmt.Sprintf("%s (%d/%d files, %s/%s)",
			filename, fileNum, totalFiles, humanize.Bytes(uint64(transferred)), humanize.Bytes(uint64(total))))
	}

	// Without -label-id, back up into the existing label named -label;
	// "Default" maps to the reserved default id.
	resolvedLabelID := *labelID
	if resolvedLabelID == labels.AllocateID {
		if *labelName == "Default" {
			resolvedLabelID = labels.DefaultLabelID
		}
		for _, l := range v.Labels() {
			if l.Name == *labelName {
				resolvedLabelID = l.ID
				break
			}
		}
	}

	err = v.Backup(ctx, vault.BackupOptions{
		Type:        btype,
		LabelID:     resolvedLabelID,
		LabelName:   *labelName,
		Description: *description,
		Roots:       flag.Args()[1:],
		Progress:    progress,
	})

	if spinner != nil {
		if err != nil {
			_ = spinner.StopFail()
		} else {
			_ = spinner.Stop()
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "backup failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("backup complete (last volume: %d)\n", v.LastVolume())
}

func parseBackupType(s string) (vault.BackupType, error) {
	switch strings.ToLower(s) {
	case "full":
		return vault.BackupFull, nil
	case "incremental":
		return vault.BackupIncremental, nil
	case "differential":
		return vault.BackupDifferential, nil
	default:
		return 0, fmt.Errorf("unknown backup type %q (want full, incremental, or differential)", s)
	}
}
