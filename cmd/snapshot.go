package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kfrancois/fieldsync/config"
	corsync "github.com/kfrancois/fieldsync/core/sync"
	"github.com/kfrancois/fieldsync/core/timerange"
	"github.com/kfrancois/fieldsync/infra/gateway"
)

var snapshotDays int

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch the upcoming schedule once and print it as JSON",
	RunE:  snapshot,
}

func init() {
	snapshotCmd.Flags().IntVar(&snapshotDays, "days", 7, "window width in days")
	rootCmd.AddCommand(snapshotCmd)
}

func snapshot(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gw, err := gateway.NewClient(cfg.Gateway)
	if err != nil {
		return fmt.Errorf("gateway client: %w", err)
	}
	companyID, err := gw.ResolveCompany(ctx)
	if err != nil {
		return fmt.Errorf("resolve company: %w", err)
	}
	if companyID == "" {
		return fmt.Errorf("no active company")
	}

	now := time.Now()
	res, err := gw.FetchScheduleData(ctx, corsync.Query{
		CompanyID: companyID,
		Range:     timerange.Range{Start: now, End: now.AddDate(0, 0, snapshotDays)},
	})
	if err != nil {
		return fmt.Errorf("fetch schedule: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
