package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/relay/internal/idgen"
)

var reqFilter filterFlags

var reqCmd = &cobra.Command{
	Use:     "req",
	Short:   "Query stored events",
	GroupID: "events",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := reqFilter.build()
		if err != nil {
			return err
		}

		ctx, cancel := requestContext()
		defer cancel()
		c, _, err := connect(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		subID, err := idgen.Challenge(8)
		if err != nil {
			return err
		}
		events, err := c.Query(ctx, subID, filter)
		if err != nil {
			return err
		}

		if jsonOutput {
			for _, e := range events {
				if err := printJSONLine(e); err != nil {
					return err
				}
			}
			return nil
		}
		printEventsTable(events)
		return nil
	},
}

var countFilter filterFlags

var countCmd = &cobra.Command{
	Use:     "count",
	Short:   "Count stored events matching a filter",
	GroupID: "events",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := countFilter.build()
		if err != nil {
			return err
		}

		ctx, cancel := requestContext()
		defer cancel()
		c, _, err := connect(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		n, err := c.Count(ctx, "count", filter)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSONLine(map[string]int64{"count": n})
		}
		fmt.Println(n)
		return nil
	},
}

func init() {
	reqFilter.bind(reqCmd)
	countFilter.bind(countCmd)
}
