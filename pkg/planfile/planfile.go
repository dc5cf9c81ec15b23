// Package planfile implements the optional XML sidecar (spec §6.3) that
// saves and reloads a backup's configuration: what to back up, where,
// and with what options, independent of the backup run itself. Uses
// stdlib encoding/xml; see DESIGN.md for why no third-party XML library
// from the retrieval pack applies here.
package planfile

import (
	"encoding/xml"
	"os"

	"github.com/duskvault/chunkvault/pkg/vaulterrors"
)

// VolumeSizeIndex enumerates the plan file's preset volume sizes.
type VolumeSizeIndex int

const (
	VolumeSize100MiB  VolumeSizeIndex = 0
	VolumeSize700MiB  VolumeSizeIndex = 1
	VolumeSize4400MiB VolumeSizeIndex = 2
	VolumeSize15000MiB VolumeSizeIndex = 3
)

// MB returns the megabyte value this preset corresponds to.
func (v VolumeSizeIndex) MB() uint64 {
	switch v {
	case VolumeSize100MiB:
		return 100
	case VolumeSize700MiB:
		return 700
	case VolumeSize4400MiB:
		return 4400
	case VolumeSize15000MiB:
		return 15000
	default:
		return 100
	}
}

// BackupTypeCode mirrors §6.3's enum (0=invalid,1=full,2=incremental,
// 3=differential) independent of wire.BackupType so the sidecar format
// doesn't couple to the on-disk wire enum's numbering.
type BackupTypeCode int

const (
	PlanBackupInvalid BackupTypeCode = iota
	PlanBackupFull
	PlanBackupIncremental
	PlanBackupDifferential
)

// Paths holds the two repeatable path lists a plan carries: entries the
// user has explicitly checked for inclusion, and entries explicitly
// excluded.
type Paths struct {
	Checked   []string `xml:"checked"`
	Unchecked []string `xml:"unchecked"`
}

// Plan is the root element of a saved backup configuration (spec §6.3).
type Plan struct {
	XMLName           xml.Name        `xml:"backup"`
	Type              BackupTypeCode  `xml:"type"`
	Description       string          `xml:"description"`
	Destination       string          `xml:"destination"`
	EnableCompression bool            `xml:"enable_compression"`
	Split             bool            `xml:"split"`
	UseVSS            bool            `xml:"use_vss"`
	VolumeSizeIndex   VolumeSizeIndex `xml:"volume_size_index"`
	UseDefaultLabel   bool            `xml:"use_default_label"`
	LabelID           uint64          `xml:"label_id"`
	LabelName         string          `xml:"label_name"`
	Paths             Paths           `xml:"paths"`
}

// Save writes p to path as an indented XML document.
func Save(path string, p Plan) error {
	data, err := xml.MarshalIndent(p, "", "  ")
	if err != nil {
		return vaulterrors.Wrap(vaulterrors.GenericError, err, "marshal plan file")
	}
	data = append([]byte(xml.Header), data...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		if os.IsNotExist(err) {
			return vaulterrors.Wrap(vaulterrors.NoSuchFile, err, path)
		}
		return vaulterrors.Wrap(vaulterrors.GenericError, err, "write plan file "+path)
	}
	return nil
}

// Load reads and decodes a plan file from path.
func Load(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Plan{}, vaulterrors.Wrap(vaulterrors.NoSuchFile, err, path)
		}
		return Plan{}, vaulterrors.Wrap(vaulterrors.GenericError, err, "read plan file "+path)
	}
	var p Plan
	if err := xml.Unmarshal(data, &p); err != nil {
		return Plan{}, vaulterrors.Wrap(vaulterrors.CorruptBackup, err, "parse plan file "+path)
	}
	return p, nil
}
