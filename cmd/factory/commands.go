package main

import (
	"github.com/spf13/cobra"

	"car-part-factory/internal/config"
)

// overrides 是命令行上覆盖配置文件的参数
type overrides struct {
	days     int
	minutes  int
	seed     int64
	workers  int
	format   string
	machines string
	orders   string
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "factory",
		Short:        "Car part factory production and order fulfillment simulator",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./config.yaml)")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newServeCmd(&configPath))
	return root
}

func newRunCmd(configPath *string) *cobra.Command {
	var o overrides
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation once and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configPath, o)
			if err != nil {
				return err
			}
			return runOnce(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	addOverrideFlags(cmd, &o)
	cmd.Flags().StringVar(&o.format, "format", "", "report format: text, json or yaml")
	return cmd
}

func newServeCmd(configPath *string) *cobra.Command {
	var o overrides
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation day by day and stream state over websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configPath, o)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}
	addOverrideFlags(cmd, &o)
	return cmd
}

func addOverrideFlags(cmd *cobra.Command, o *overrides) {
	cmd.Flags().IntVar(&o.days, "days", 0, "number of simulated days")
	cmd.Flags().IntVar(&o.minutes, "minutes", 0, "minutes per simulated day")
	cmd.Flags().Int64Var(&o.seed, "seed", 0, "random seed for part weights")
	cmd.Flags().IntVar(&o.workers, "workers", 0, "machines ticked concurrently per day")
	cmd.Flags().StringVar(&o.machines, "machines", "", "machines CSV file")
	cmd.Flags().StringVar(&o.orders, "orders", "", "orders CSV file")
}

// loadConfig 读取配置文件，再用显式给出的命令行参数覆盖
func loadConfig(cmd *cobra.Command, path string, o overrides) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("days") {
		cfg.Simulation.Days = o.days
	}
	if flags.Changed("minutes") {
		cfg.Simulation.MinutesPerDay = o.minutes
	}
	if flags.Changed("seed") {
		cfg.Simulation.Seed = o.seed
	}
	if flags.Changed("workers") {
		cfg.Simulation.MaxWorkers = o.workers
	}
	if flags.Changed("format") {
		cfg.Report.Format = o.format
	}
	if flags.Changed("machines") {
		cfg.Inputs.MachinesPath = o.machines
	}
	if flags.Changed("orders") {
		cfg.Inputs.OrdersPath = o.orders
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
