// manifest.go — параметры DOCX-шаблонов по видам документов
// с возможностью переопределения через YAML-манифест.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Виды документов.
const (
	KindProposal   = "proposal"
	KindContract   = "contract"
	KindPromissory = "promissory"
	KindReceipt    = "receipt"
)

// DocumentTemplate — шаблон вида документа.
type DocumentTemplate struct {
	// Имя файла шаблона (относительно TemplatesDir или абсолютный путь)
	Template string `yaml:"template"`
	// Ширина вставляемого изображения в миллиметрах (0 — без изображения)
	ImageWidthMM float64 `yaml:"image_width_mm"`
}

// manifestFile — структура YAML-манифеста.
//
//	documents:
//	  proposal:
//	    template: template_proposta.docx
//	    image_width_mm: 70
type manifestFile struct {
	Documents map[string]DocumentTemplate `yaml:"documents"`
}

// DefaultDocuments возвращает встроенные параметры шаблонов.
func DefaultDocuments() map[string]DocumentTemplate {
	return map[string]DocumentTemplate{
		KindProposal:   {Template: "template_proposta.docx", ImageWidthMM: 70},
		KindContract:   {Template: "template_contrato.docx"},
		KindPromissory: {Template: "template_promissoria.docx", ImageWidthMM: 185},
		KindReceipt:    {Template: "template_termo.docx"},
	}
}

// LoadManifest возвращает параметры шаблонов: встроенные значения,
// поверх которых применены поля из манифеста. Пустой path — только встроенные.
func LoadManifest(path string) (map[string]DocumentTemplate, error) {
	docs := DefaultDocuments()
	if path == "" {
		return docs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения манифеста: %w", err)
	}

	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("ошибка разбора манифеста: %w", err)
	}

	for kind, override := range mf.Documents {
		base, ok := docs[kind]
		if !ok {
			return nil, fmt.Errorf("неизвестный вид документа %q", kind)
		}
		if override.Template != "" {
			base.Template = override.Template
		}
		if override.ImageWidthMM < 0 {
			return nil, fmt.Errorf("%s: ширина изображения не может быть отрицательной", kind)
		}
		if override.ImageWidthMM > 0 {
			if base.ImageWidthMM == 0 {
				return nil, fmt.Errorf("%s: вид документа не содержит изображения", kind)
			}
			base.ImageWidthMM = override.ImageWidthMM
		}
		docs[kind] = base
	}
	return docs, nil
}
