package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

func newProcessCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process <file>",
		Short: "Triage incidents from a .jsonl file or a .json object/array",
		Long: "process runs every incident in the file through the pipeline and\n" +
			"prints the resulting record (one incident) or the batch result.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			incidents, err := readIncidents(args[0])
			if err != nil {
				return err
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(incidents) == 1 {
				rec, err := a.Service.Process(cmd.Context(), incidents[0])
				if err != nil {
					return fmt.Errorf("process %s: %w", incidents[0].EventID, err)
				}
				return opts.render(cmd.OutOrStdout(), rec)
			}

			res, err := a.Service.ProcessBatch(cmd.Context(), incidents)
			if err != nil {
				return fmt.Errorf("process batch: %w", err)
			}
			return opts.render(cmd.OutOrStdout(), res)
		},
	}
}

// readIncidents accepts JSON Lines (.jsonl) or a JSON document holding one
// incident or an array of them.
func readIncidents(path string) ([]models.Incident, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read incidents: %w", err)
	}

	var incidents []models.Incident
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		sc := bufio.NewScanner(bytes.NewReader(data))
		sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
		for line := 1; sc.Scan(); line++ {
			text := bytes.TrimSpace(sc.Bytes())
			if len(text) == 0 {
				continue
			}
			var inc models.Incident
			if err := json.Unmarshal(text, &inc); err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, line, err)
			}
			incidents = append(incidents, inc)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read incidents: %w", err)
		}
	} else {
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			err = json.Unmarshal(trimmed, &incidents)
		} else {
			var inc models.Incident
			err = json.Unmarshal(trimmed, &inc)
			incidents = []models.Incident{inc}
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if len(incidents) == 0 {
		return nil, errors.New("no incidents in " + path)
	}
	return incidents, nil
}
