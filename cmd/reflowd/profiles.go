package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reflow_oven/internal/config"
	"reflow_oven/internal/logger"
	"reflow_oven/internal/profile"
	"reflow_oven/internal/repository"
	"reflow_oven/internal/repository/db"
	"reflow_oven/internal/service"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Inspect and import profile documents",
}

var profilesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a profiles document against the configured maximum temperature",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesValidate,
}

var profilesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Store a profiles document in the database, replacing the current one",
	Long:  `Validates the document and writes it to the database. A running daemon picks it up on its next start; use POST /profiles to replace profiles live.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesImport,
}

func init() {
	profilesCmd.AddCommand(profilesValidateCmd)
	profilesCmd.AddCommand(profilesImportCmd)
}

func runProfilesValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	body, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	c, err := profile.Parse(body, cfg.Engine.MaxTemperature)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok: profiles %s; pid sets %s\n",
		strings.Join(c.Names(), ", "), strings.Join(c.PIDNames(), ", "))
	return nil
}

func runProfilesImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)

	body, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	conn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer conn.Close()
	repos := repository.NewRepository(conn)

	ctx := cmd.Context()
	// stored tuning may lower the ceiling below the file default
	cfgSvc := service.NewConfigService(repos.Documents, cfg.Engine, nil, log)
	if _, err := cfgSvc.Load(ctx); err != nil {
		return err
	}
	profilesSvc := service.NewProfilesService(repos.Documents, profile.NewStore(nil), cfgSvc.MaxTemperature, log)
	if err := profilesSvc.Put(ctx, body); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d profiles into %s\n", len(profilesSvc.Names()), cfg.DB.Path)
	return nil
}
