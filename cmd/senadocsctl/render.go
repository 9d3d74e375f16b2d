package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bigkaa/senadocs/internal/render/convert"
	"github.com/bigkaa/senadocs/internal/render/docx"
	"github.com/bigkaa/senadocs/internal/service"
	"github.com/bigkaa/senadocs/internal/storage/filestore"
)

// newRenderCmd — формирование документа без веб-слоя (проверка шаблонов).
func newRenderCmd() *cobra.Command {
	var (
		fieldArgs []string
		imagePath string
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "render <kind>",
		Short: "Gera um documento (" + strings.Join(service.Kinds(), ", ") + ") a partir de campos",
		Example: `  senadocsctl render proposal --field CLIENTE="Ana Souza" --field CPF=12345678900 \
    --field MODELO="Ricoh MP 301" --field FRANQUIA=5000 --field VALOR=350 \
    --image foto.png --out proposta.pdf`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: service.Kinds(),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			fields, err := parseFields(fieldArgs)
			if err != nil {
				return err
			}
			if outPath == "" {
				return fmt.Errorf("informe --out")
			}
			out, err := filepath.Abs(outPath)
			if err != nil {
				return err
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := filestore.New(cfg.StorageDir)
			if err != nil {
				return err
			}

			docs := service.NewDocumentService(cfg, store,
				docx.NewRenderer(cfg.TemplateCacheSize, cfg.TemplateCacheTTL, logger),
				convert.NewSoffice(cfg.SofficePath, cfg.ConversionTimeout, logger),
				logger,
			)
			if err := docs.Generate(cmd.Context(), kind, fields, out, imagePath); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&fieldArgs, "field", "f", nil, "campo CHAVE=valor (repetível)")
	cmd.Flags().StringVar(&imagePath, "image", "", "imagem PNG/JPG (proposal, promissory)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "caminho do PDF gerado")
	return cmd
}

// parseFields разбирает аргументы KEY=value. Ключи приводятся к верхнему регистру.
func parseFields(args []string) (map[string]string, error) {
	fields := make(map[string]string, len(args))
	for _, a := range args {
		key, value, ok := strings.Cut(a, "=")
		key = strings.ToUpper(strings.TrimSpace(key))
		if !ok || key == "" {
			return nil, fmt.Errorf("campo inválido %q: use CHAVE=valor", a)
		}
		fields[key] = value
	}
	return fields, nil
}
