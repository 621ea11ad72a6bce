package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/slongle/appleseed/internal/render"
)

var (
	debug      bool
	cpuProfile string
)

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newRenderCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one frame described by a scene config",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			if cpuProfile != "" {
				f, err := os.Create(cpuProfile)
				if err != nil {
					return err
				}
				if err := pprof.StartCPUProfile(f); err != nil {
					f.Close()
					return err
				}
				defer func() {
					pprof.StopCPUProfile()
					_ = f.Close()
				}()
			}

			return render.Run(cfgPath, log)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "scenes/config.yaml", "render config file (.yaml or .json)")
	return cmd
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the available surface shader models",
		Run: func(cmd *cobra.Command, args []string) {
			for _, m := range render.SurfaceShaderModels() {
				fmt.Println(m)
			}
		},
	}
}

func main() {
	root := &cobra.Command{
		Use:           "appleseed",
		Short:         "Adaptive voxel ambient-occlusion renderer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "verbose development logging")
	root.PersistentFlags().StringVar(&cpuProfile, "cpuprofile", "", "write a CPU profile to this file")
	root.AddCommand(newRenderCmd(), newModelsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
