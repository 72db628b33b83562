package main

import (
	"fmt"

	"progress-map/internal/adapters/deployments"
	"progress-map/internal/adapters/geo"
	"progress-map/internal/domain/model"
	"progress-map/internal/services/aggregate"
	"progress-map/internal/services/mapview"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// renderCmd 读取部署表并输出地图渲染请求（JSON）。
func (c *cli) renderCmd() *cobra.Command {
	var (
		mode      string
		from      string
		sets      []string
		withGeo   bool
		semicolon bool
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Aggregate the deployment table and print the map render request as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m := model.AggregationMode(mode)
			if m != model.ModeCount && m != model.ModeWeighted {
				return fmt.Errorf("unknown aggregation mode: %q", mode)
			}

			reader := deployments.NewReader(c.cfg.DeploymentsCSV)
			if semicolon {
				reader.Comma = ';'
			}
			loaded, err := reader.Load(ctx)
			if err != nil {
				return err
			}

			var env *reportEnv
			if m == model.ModeWeighted && from != "" {
				env, err = c.reportEnv(ctx)
				if err != nil {
					return err
				}
				defer env.close()
			} else {
				_, catalog, err := c.loadCatalog(ctx)
				if err != nil {
					return err
				}
				env = &reportEnv{catalog: catalog}
			}
			var progressReader aggregate.ProgressReader
			if m == model.ModeWeighted {
				state, err := buildState(ctx, env, from, sets)
				if err != nil {
					return err
				}
				progressReader = state
			}

			var raw []byte
			if withGeo {
				g, err := geo.NewLoader(c.cfg.GeoJSONPath).Load(ctx)
				if err != nil {
					return err
				}
				raw = g.Raw
			}

			agg := aggregate.New(env.catalog)
			agg.SetLogger(c.logger.Named("aggregate"))
			req, err := mapview.NewBuilder(agg, raw).Build(m, loaded.Table, progressReader)
			if err != nil {
				return err
			}
			c.logger.Debug("render built",
				zap.String("source", loaded.Source),
				zap.String("sha256", loaded.SHA256),
				zap.Int("rows", len(req.Rows)),
				zap.Int("dropped", len(req.Warnings)))
			return printJSON(cmd.OutOrStdout(), req)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(model.ModeCount), "aggregation mode: count|weighted")
	cmd.Flags().StringVar(&from, "from", "", "weighted mode: take progress from a saved report")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "weighted mode: region progress, CODE=VALUE (repeatable)")
	cmd.Flags().BoolVar(&withGeo, "with-geojson", false, "embed the GeoJSON in the output")
	cmd.Flags().BoolVar(&semicolon, "semicolon", false, "CSV uses ';' as separator")
	return cmd
}
