package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/parut/agri-advisor/internal/aggregate"
)

var aggregateFlags struct {
	region string
	crop   string
	stage  string
	demo   bool
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Print the merged evidence pack for one profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		pack, err := env.Service.Aggregate(cmd.Context(), aggregate.Request{
			Region: aggregateFlags.region,
			Crop:   aggregateFlags.crop,
			Stage:  aggregateFlags.stage,
			Demo:   aggregateFlags.demo,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(pack), "encode evidence pack")
	},
}

func init() {
	aggregateCmd.Flags().StringVar(&aggregateFlags.region, "region", "", "region slug (e.g. andong-si)")
	aggregateCmd.Flags().StringVar(&aggregateFlags.crop, "crop", "", "crop (apple or tomato)")
	aggregateCmd.Flags().StringVar(&aggregateFlags.stage, "stage", "", "growth stage")
	aggregateCmd.Flags().BoolVar(&aggregateFlags.demo, "demo", false, "serve the scripted demo bundle instead of live data")
	_ = aggregateCmd.MarkFlagRequired("region")
	_ = aggregateCmd.MarkFlagRequired("crop")
	_ = aggregateCmd.MarkFlagRequired("stage")
	rootCmd.AddCommand(aggregateCmd)
}
