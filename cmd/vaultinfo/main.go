package main

import (
	"fmt"
	"os"
	"time"

	"github.com/bgrewell/usage"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	vault "github.com/duskvault/chunkvault"
	"github.com/duskvault/chunkvault/pkg/labels"
)

// descriptionWidth caps how much of a snapshot's description is printed,
// leaving room for the summary columns on a narrow terminal.
func descriptionWidth() int {
	const minWidth = 40
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < minWidth {
		return minWidth
	}
	return width - 14
}

func main() {
	u := usage.NewUsage(
		usage.WithApplicationName("vaultinfo"),
		usage.WithApplicationDescription("vaultinfo inspects a chunkvault volume series: labels, their snapshot history, and summary sizes."),
	)

	help := u.AddBooleanOption("h", "help", false, "Show this help message", "optional", nil)
	verbose := u.AddBooleanOption("v", "verbose", false, "List every snapshot in the chain, not just the most recent", "", nil)
	path := u.AddArgument(1, "vault-path", "Path to any volume belonging to the series", "")
	labelArg := u.AddArgument(2, "label", "Label name to report on", "Default")

	parsed := u.Parse()
	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	if path == nil || *path == "" {
		u.PrintError(fmt.Errorf("vault-path must be provided"))
		os.Exit(1)
	}

	v, err := vault.Open(*path)
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}

	fmt.Println("=== Vault Information ===")
	fmt.Printf("Last volume: %d\n", v.LastVolume())

	all := v.Labels()
	fmt.Printf("Labels: %d\n", len(all))
	for _, l := range all {
		fmt.Printf("  [%d] %s\n", l.ID, l.Name)
	}

	targetName := "Default"
	if labelArg != nil && *labelArg != "" {
		targetName = *labelArg
	}
	var targetID uint64 = labels.DefaultLabelID
	found := false
	for _, l := range all {
		if l.Name == targetName {
			targetID = l.ID
			found = true
			break
		}
	}
	if !found {
		fmt.Printf("\nLabel %q has no snapshots yet.\n", targetName)
		return
	}

	snaps, err := v.Snapshots(targetID, true)
	if err != nil {
		u.PrintError(fmt.Errorf("failed to load snapshots for %q: %w", targetName, err))
		os.Exit(1)
	}

	fmt.Printf("\n=== Snapshots for %q ===\n", targetName)
	shown := snaps
	if !*verbose && len(shown) > 1 {
		shown = shown[:1]
	}
	for _, s := range shown {
		fmt.Printf("%-13s %-20s files=%-6d size=%-10s deduped=%-10s encoded=%-10s\n",
			s.Type, time.Unix(int64(s.Date), 0).Format(time.RFC3339), len(s.Files),
			humanize.Bytes(s.UnencodedSize), humanize.Bytes(s.DeduplicatedSize), humanize.Bytes(s.EncodedSize))
		if s.Description != "" {
			desc := s.Description
			if w := descriptionWidth(); len(desc) > w {
				desc = desc[:w-1] + "…"
			}
			fmt.Printf("              %s\n", desc)
		}
	}
	if !*verbose && len(snaps) > 1 {
		fmt.Printf("(%d older snapshot(s) not shown; pass -v to list them all)\n", len(snaps)-1)
	}
}
