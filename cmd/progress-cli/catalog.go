package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	catalogadapter "progress-map/internal/adapters/catalog"
	"progress-map/internal/adapters/geo"
	"progress-map/internal/domain/model"
	"progress-map/internal/services/regions"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) loadCatalog(ctx context.Context) (*catalogadapter.LoadedCatalog, *regions.Catalog, error) {
	loaded, err := catalogadapter.NewLoader(c.cfg.CatalogPath).Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := regions.FromLoaded(loaded)
	if err != nil {
		return nil, nil, err
	}
	return loaded, catalog, nil
}

// catalogCmd 是二级命令路由，目前支持 catalog validate。
func (c *cli) catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Region catalog tools",
	}
	var checkGeo bool
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate the region catalog and optionally its GeoJSON coverage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, catalog, err := c.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "catalog ok: source=%s version=%s regions=%d sha256=%s\n",
				loaded.Source, loaded.Bundle.Version, catalog.Len(), loaded.SHA256)
			if !checkGeo {
				return nil
			}

			g, err := geo.NewLoader(c.cfg.GeoJSONPath).Load(cmd.Context())
			if err != nil {
				return err
			}
			codes := make([]string, 0, catalog.Len())
			for _, code := range catalog.AllCodes() {
				codes = append(codes, string(code))
			}
			missing := g.MissingIDs(codes)
			if len(missing) > 0 {
				c.logger.Warn("geojson lacks features for regions", zap.Strings("regions", missing))
				return fmt.Errorf("geojson %s has no feature for %d region(s): %s", g.Source, len(missing), strings.Join(missing, ", "))
			}
			fmt.Fprintf(out, "geojson ok: source=%s features=%d\n", g.Source, len(g.FeatureIDs))
			return nil
		},
	}
	validate.Flags().BoolVar(&checkGeo, "geo", false, "also check that every region has a GeoJSON feature")
	cmd.AddCommand(validate)
	return cmd
}

// parseAssignments 解析形如 MX-CMX=37 的进度赋值。
func parseAssignments(sets []string) (map[model.RegionCode]int, error) {
	out := make(map[model.RegionCode]int, len(sets))
	for _, s := range sets {
		code, val, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("invalid assignment %q: want CODE=VALUE", s)
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("invalid value in %q: %w", s, err)
		}
		out[model.RegionCode(strings.ToUpper(strings.TrimSpace(code)))] = n
	}
	return out, nil
}
