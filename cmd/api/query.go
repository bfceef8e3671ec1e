package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/melih/tunnelwatch/internal/core/domain"
	"github.com/melih/tunnelwatch/internal/core/service"
)

var statusCmd = &cobra.Command{
	Use:   "status [tunnel-id...]",
	Short: "Print the fleet status as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		_, svc, err := setup(os.Stderr)
		if err != nil {
			return err
		}
		records, err := svc.status.GetStatus(cmd.Context(), ids)
		if err != nil {
			return err
		}
		return printJSON(service.Summarize(records))
	},
}

var healthCmd = &cobra.Command{
	Use:   "health [tunnel-id...]",
	Short: "Print tunnel health as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		_, svc, err := setup(os.Stderr)
		if err != nil {
			return err
		}
		records, err := svc.status.GetHealth(cmd.Context(), ids)
		if err != nil {
			return err
		}
		return printJSON(service.SummarizeHealth(records))
	},
}

func parseIDs(args []string) ([]domain.TunnelID, error) {
	var ids []domain.TunnelID
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid tunnel id %q", a)
		}
		ids = append(ids, domain.TunnelID(n))
	}
	return ids, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
