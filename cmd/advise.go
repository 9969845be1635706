package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parut/agri-advisor/internal/aggregate"
	"github.com/parut/agri-advisor/internal/model"
)

var adviseFlags struct {
	region string
	crop   string
	stage  string
	demo   bool
	to     string
}

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Generate, persist, and optionally deliver a farm advisory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		gen, err := env.requireGenerator()
		if err != nil {
			return err
		}

		pack, err := env.Service.Aggregate(ctx, aggregate.Request{
			Region: adviseFlags.region,
			Crop:   adviseFlags.crop,
			Stage:  adviseFlags.stage,
			Demo:   adviseFlags.demo,
		})
		if err != nil {
			return err
		}

		result, err := gen.Generate(ctx, pack)
		if err != nil {
			return err
		}

		adv := &model.Advisory{
			Profile:        pack.Profile,
			IssuedAt:       pack.IssuedAt,
			DetailedReport: result.DetailedReport,
			Brief:          result.Brief,
			Provenance:     pack.Provenance,
		}
		if err := env.Store.SaveAdvisory(ctx, adv); err != nil {
			return err
		}

		if adviseFlags.to != "" {
			sent, err := env.SMS.Send(ctx, adviseFlags.to, result.Brief)
			if err != nil {
				zap.L().Error("sms delivery failed", zap.String("advisory_id", adv.ID), zap.Error(err))
			} else {
				zap.L().Info("sms delivered",
					zap.String("advisory_id", adv.ID),
					zap.String("channel", sent.Channel),
					zap.String("group_id", sent.GroupID),
				)
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(adv), "encode advisory")
	},
}

func init() {
	adviseCmd.Flags().StringVar(&adviseFlags.region, "region", "", "region slug (e.g. andong-si)")
	adviseCmd.Flags().StringVar(&adviseFlags.crop, "crop", "", "crop (apple or tomato)")
	adviseCmd.Flags().StringVar(&adviseFlags.stage, "stage", "", "growth stage")
	adviseCmd.Flags().BoolVar(&adviseFlags.demo, "demo", false, "serve the scripted demo bundle instead of live data")
	adviseCmd.Flags().StringVar(&adviseFlags.to, "to", "", "recipient phone number for SMS delivery")
	_ = adviseCmd.MarkFlagRequired("region")
	_ = adviseCmd.MarkFlagRequired("crop")
	_ = adviseCmd.MarkFlagRequired("stage")
	rootCmd.AddCommand(adviseCmd)
}
