package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	catalogadapter "progress-map/internal/adapters/catalog"
	sqliteadapter "progress-map/internal/adapters/store/sqlite"
	"progress-map/internal/domain/model"
	"progress-map/internal/services/progress"
	"progress-map/internal/services/regions"
	"progress-map/internal/services/reportbundle"
	"progress-map/internal/services/reportpdf"
	"progress-map/internal/services/reports"

	"github.com/spf13/cobra"
)

// reportEnv 是报告类子命令共用的依赖；close 关闭数据库。
type reportEnv struct {
	loaded  *catalogadapter.LoadedCatalog
	store   *sqliteadapter.Store
	catalog *regions.Catalog
	service *reports.Service
	close   func() error
}

func (c *cli) reportEnv(ctx context.Context) (*reportEnv, error) {
	loaded, catalog, err := c.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	db, store, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	svc := reports.New(store, catalog, reports.Options{
		Audit:  store,
		Logger: c.logger.Named("reports"),
		Source: "cli",
	})
	return &reportEnv{loaded: loaded, store: store, catalog: catalog, service: svc, close: db.Close}, nil
}

// reportCmd 是二级命令路由：save / load / delete / list / export-pdf。
func (c *cli) reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Manage saved progress reports",
	}
	cmd.AddCommand(
		c.reportSaveCmd(),
		c.reportLoadCmd(),
		c.reportDeleteCmd(),
		c.reportListCmd(),
		c.reportExportCmd(),
		c.reportBundleCmd(),
	)
	return cmd
}

func (c *cli) reportSaveCmd() *cobra.Command {
	var (
		name string
		user string
		from string
		sets []string
	)
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a report built from --set assignments (optionally on top of --from)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := c.reportEnv(ctx)
			if err != nil {
				return err
			}
			defer env.close()

			state, err := buildState(ctx, env, from, sets)
			if err != nil {
				return err
			}
			if strings.TrimSpace(name) == "" {
				name = reports.DefaultReportName(time.Now())
			}
			if strings.TrimSpace(user) == "" {
				user = c.cfg.ReportUser
			}
			report, err := env.service.Save(ctx, state.Snapshot(), name, user)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "report=%s version=%d regions=%d\n", report.ID, report.Version, len(report.Progress))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "report name (default Reporte_<date>_<time>)")
	cmd.Flags().StringVar(&user, "user", "", "author (default from config)")
	cmd.Flags().StringVar(&from, "from", "", "start from an existing report")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "region progress, CODE=VALUE (repeatable)")
	return cmd
}

// buildState 先加载 from 报告（如有），再应用 --set 赋值。
func buildState(ctx context.Context, env *reportEnv, from string, sets []string) (*progress.State, error) {
	state := progress.New(env.catalog)
	if strings.TrimSpace(from) != "" {
		res, err := env.service.LoadInto(ctx, from, state)
		if err != nil {
			return nil, err
		}
		if !res.Found {
			return nil, fmt.Errorf("report not found: %s", from)
		}
	}
	assignments, err := parseAssignments(sets)
	if err != nil {
		return nil, err
	}
	codes := make([]model.RegionCode, 0, len(assignments))
	for code := range assignments {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	for _, code := range codes {
		if err := state.Set(code, assignments[code]); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func (c *cli) reportLoadCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "load <name>",
		Short: "Print a saved report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := c.reportEnv(ctx)
			if err != nil {
				return err
			}
			defer env.close()

			res, err := env.service.Load(ctx, args[0])
			if err != nil {
				return err
			}
			if !res.Found {
				return fmt.Errorf("report not found: %s", args[0])
			}
			if !full {
				return printJSON(cmd.OutOrStdout(), res.Report)
			}
			// 补全未保存的区域，便于对照完整目录。
			state := progress.New(env.catalog)
			if err := state.ReplaceAll(res.Report.Progress); err != nil {
				return err
			}
			all := make(map[model.RegionCode]int, env.catalog.Len())
			for _, code := range env.catalog.AllCodes() {
				v, _ := state.Get(code)
				all[code] = v
			}
			out := res.Report
			out.Progress = all
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "include default values for regions not in the report")
	return cmd
}

func (c *cli) reportDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved report (no error if absent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.reportEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()
			if err := env.service.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted=%s\n", args[0])
			return nil
		},
	}
}

func (c *cli) reportListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved report names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.reportEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()
			names, err := env.service.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func (c *cli) reportExportCmd() *cobra.Command {
	var (
		outDir   string
		operator string
		note     string
	)
	cmd := &cobra.Command{
		Use:   "export-pdf <name>",
		Short: "Render a saved report to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.reportEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			if outDir == "" {
				outDir = c.cfg.ReportDir
			}
			if operator == "" {
				operator = c.cfg.ReportUser
			}
			res, err := reportpdf.Export(cmd.Context(), env.service, env.catalog, args[0], reportpdf.Options{
				OutputDir: outDir,
				Operator:  operator,
				Note:      note,
				Audit:     env.store,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "report=%s\n", res.ReportName)
			fmt.Fprintf(out, "pdf=%s\n", res.PDFPath)
			fmt.Fprintf(out, "pdf_sha256=%s\n", res.PDFSHA256)
			if len(res.Warnings) > 0 {
				fmt.Fprintf(out, "warnings=%s\n", strings.Join(res.Warnings, " | "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default from config)")
	cmd.Flags().StringVar(&operator, "operator", "", "operator shown in the PDF header")
	cmd.Flags().StringVar(&note, "note", "", "free-form note shown in the PDF header")
	return cmd
}

func (c *cli) reportBundleCmd() *cobra.Command {
	var (
		outDir   string
		operator string
		note     string
		noCSV    bool
	)
	cmd := &cobra.Command{
		Use:   "export-bundle <name>",
		Short: "Package a saved report, its PDF, the deployment table and audit trail into a ZIP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.reportEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.close()

			opts := reportbundle.Options{
				OutputDir:      outDir,
				DeploymentsCSV: c.cfg.DeploymentsCSV,
				Operator:       operator,
				Note:           note,
				Audits:         env.store,
				Audit:          env.store,
			}
			if opts.OutputDir == "" {
				opts.OutputDir = c.cfg.ReportDir
			}
			if opts.Operator == "" {
				opts.Operator = c.cfg.ReportUser
			}
			if noCSV {
				opts.DeploymentsCSV = ""
			}
			res, err := reportbundle.Export(cmd.Context(), env.service, env.loaded, args[0], opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "report=%s\n", res.ReportName)
			fmt.Fprintf(out, "zip=%s\n", res.ZipPath)
			fmt.Fprintf(out, "zip_sha256=%s\n", res.ZipSHA256)
			if len(res.Warnings) > 0 {
				fmt.Fprintf(out, "warnings=%s\n", strings.Join(res.Warnings, " | "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default from config)")
	cmd.Flags().StringVar(&operator, "operator", "", "operator recorded in the manifest")
	cmd.Flags().StringVar(&note, "note", "", "free-form note recorded in the manifest")
	cmd.Flags().BoolVar(&noCSV, "no-csv", false, "do not include the deployment table")
	return cmd
}
