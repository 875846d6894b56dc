package cli

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateAsset   string
	simulateOld     float64
	simulateNew     float64
	simulateElapsed time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次价格变动并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateAsset == "" {
			return errors.New("--asset must be provided")
		}
		if simulateOld <= 0 || simulateNew <= 0 {
			return errors.New("--old 与 --new 必须大于 0")
		}

		oldPrice := decimal.NewFromFloat(simulateOld)
		newPrice := decimal.NewFromFloat(simulateNew)
		return getApp().SimulateAlert(cmd.Context(), simulateAsset, oldPrice, newPrice, simulateElapsed)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateAsset, "asset", "", "Asset identifier")
	simulateCmd.Flags().Float64Var(&simulateOld, "old", 0, "基准价格")
	simulateCmd.Flags().Float64Var(&simulateNew, "new", 0, "当前价格")
	simulateCmd.Flags().DurationVar(&simulateElapsed, "elapsed", time.Hour, "Time since the baseline observation")
}
