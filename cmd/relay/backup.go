package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relay/internal/config"
	relaysync "github.com/alfredjeanlab/relay/internal/sync"
)

var exportCmd = &cobra.Command{
	Use:     "export [file]",
	Short:   "Write every stored event as JSONL (stdout when no file is given)",
	GroupID: "system",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		var w io.Writer = os.Stdout
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create %s: %w", args[0], err)
			}
			defer f.Close()
			w = f
		}
		bw := bufio.NewWriter(w)
		if err := relaysync.ExportJSONL(context.Background(), st, bw); err != nil {
			return err
		}
		return bw.Flush()
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	Short:   "Load events from a JSONL export into the configured store",
	GroupID: "system",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		defer f.Close()

		stats, err := relaysync.ImportJSONL(context.Background(), st, f)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSONLine(stats)
		}
		fmt.Printf("imported %d events (%d already present)\n", stats.Inserted, stats.Duplicates)
		return nil
	},
}
