// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/gvern/soxauto/internal/contract"
	"github.com/gvern/soxauto/internal/quality"
)

// resolveVersion returns the requested contract, or the active one when
// version is 0.
func (s *state) resolveVersion(ctx context.Context, datasetID string, version int) (*contract.SchemaContract, error) {
	if version < 0 {
		return nil, fmt.Errorf("invalid version %d", version)
	}
	if version == 0 {
		active, err := s.registry.ActiveVersion(ctx, datasetID)
		if err != nil {
			return nil, err
		}
		version = active
	}
	return s.registry.LoadVersion(ctx, datasetID, version)
}

func newRulesCommand(st *state) *cobra.Command {
	var version int
	cmd := &cobra.Command{
		Use:   "rules <dataset_id>",
		Short: "Print the quality rules derived from a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := st.open(ctx); err != nil {
				return err
			}
			sc, err := st.resolveVersion(ctx, args[0], version)
			if err != nil {
				return err
			}
			rules := quality.BuildRules(sc)

			w := cmd.OutOrStdout()
			switch st.output() {
			case "table", "markdown":
				t := newTable(w)
				t.AppendHeader(table.Row{"Rule", "Severity", "Description", "Expression"})
				for _, r := range rules {
					t.AppendRow(table.Row{r.ID, r.Severity, r.Description, r.Expression})
				}
				renderTable(t, st.output())
				return nil
			}
			return writeStructured(w, st.output(), struct {
				DatasetID       string         `json:"dataset_id" yaml:"dataset_id"`
				ContractVersion int            `json:"contract_version" yaml:"contract_version"`
				ContractHash    string         `json:"contract_hash" yaml:"contract_hash"`
				Rules           []quality.Rule `json:"rules" yaml:"rules"`
			}{sc.DatasetID(), sc.Version(), sc.Hash(), rules})
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "Contract version (default: active)")
	return cmd
}

func newHashCommand(st *state) *cobra.Command {
	var version int
	cmd := &cobra.Command{
		Use:   "hash <dataset_id>",
		Short: "Print the content hash of a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := st.open(ctx); err != nil {
				return err
			}
			sc, err := st.resolveVersion(ctx, args[0], version)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch st.output() {
			case "table", "markdown":
				_, err = fmt.Fprintf(w, "%s v%d %s\n", sc.DatasetID(), sc.Version(), sc.Hash())
				return err
			}
			return writeStructured(w, st.output(), struct {
				DatasetID string `json:"dataset_id" yaml:"dataset_id"`
				Version   int    `json:"version" yaml:"version"`
				Hash      string `json:"hash" yaml:"hash"`
			}{sc.DatasetID(), sc.Version(), sc.Hash()})
		},
	}
	cmd.Flags().IntVar(&version, "version", 0, "Contract version (default: active)")
	return cmd
}

// contractEntry is one row of the contracts listing.
type contractEntry struct {
	DatasetID string `json:"dataset_id" yaml:"dataset_id"`
	Versions  []int  `json:"versions" yaml:"versions"`
	Active    int    `json:"active" yaml:"active"`
	Hash      string `json:"hash" yaml:"hash"`
}

func newContractsCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "contracts",
		Short: "List datasets, their contract versions and the active version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := st.open(ctx); err != nil {
				return err
			}
			ids, err := st.registry.Datasets(ctx)
			if err != nil {
				return err
			}
			entries := make([]contractEntry, 0, len(ids))
			for _, id := range ids {
				versions, err := st.registry.Versions(ctx, id)
				if err != nil {
					return err
				}
				sc, hash, err := st.registry.Load(ctx, id)
				if err != nil {
					return err
				}
				entries = append(entries, contractEntry{DatasetID: id, Versions: versions, Active: sc.Version(), Hash: hash})
			}

			w := cmd.OutOrStdout()
			switch st.output() {
			case "table", "markdown":
				t := newTable(w)
				t.AppendHeader(table.Row{"Dataset", "Versions", "Active", "Hash"})
				for _, e := range entries {
					t.AppendRow(table.Row{e.DatasetID, joinInts(e.Versions), e.Active, e.Hash})
				}
				renderTable(t, st.output())
				return nil
			}
			return writeStructured(w, st.output(), entries)
		},
	}
}

func joinInts(vs []int) string {
	out := ""
	for i, v := range vs {
		if i > 0 {
			out += ", "
		}
		out += strconv.Itoa(v)
	}
	return out
}
