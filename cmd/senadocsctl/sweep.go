package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bigkaa/senadocs/internal/service"
	"github.com/bigkaa/senadocs/internal/storage/filestore"
	"github.com/bigkaa/senadocs/internal/storage/s3mirror"
)

// newSweepCmd — разовый проход очистки (для cron без HTTP).
func newSweepCmd() *cobra.Command {
	var (
		retentionDays int
		outputJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Executa uma limpeza: propostas vencidas e arquivos temporários antigos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if retentionDays > 0 {
				cfg.RetentionDays = retentionDays
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()

			repo, closeRepo, err := openRepository(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeRepo()

			store, err := filestore.New(cfg.StorageDir)
			if err != nil {
				return err
			}

			var mirror service.Mirror
			if cfg.S3Enabled() {
				m, err := s3mirror.New(ctx, cfg, logger)
				if err != nil {
					return err
				}
				mirror = m
			}

			result := service.NewSweeper(cfg, repo, store, mirror, logger).RunOnce(ctx)

			out := cmd.OutOrStdout()
			if outputJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"started_at":         result.StartedAt.UTC().Format(time.RFC3339),
					"records_removed":    result.RecordsRemoved,
					"temp_files_removed": result.TempFilesRemoved,
					"duration_ms":        result.Duration.Milliseconds(),
				})
			}
			fmt.Fprintf(out, "Propostas removidas: %d\nArquivos temporários removidos: %d\nDuração: %s\n",
				result.RecordsRemoved, result.TempFilesRemoved, result.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().IntVar(&retentionDays, "retention-days", 0, "prazo de retenção em dias (padrão: SD_RETENTION_DAYS)")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "saída em JSON")
	return cmd
}
