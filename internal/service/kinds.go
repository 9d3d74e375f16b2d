// kinds.go — сборка контекста шаблона для каждого вида документа:
// проверка обязательных полей и вычисление производных значений.
package service

import (
	"strings"
	"time"

	"github.com/bigkaa/senadocs/internal/config"
	"github.com/bigkaa/senadocs/internal/ptbr"
	"github.com/bigkaa/senadocs/internal/storage/filestore"
)

// Плейсхолдеры изображений.
const (
	ImageKeyProposal   = "IMAGEM"
	ImageKeyPromissory = "IMAGEM_RG"
)

// kindSpec — правила одного вида документа.
type kindSpec struct {
	// required — поля, которые должны быть непустыми
	required []string
	// optional — поля, передаваемые в шаблон как есть (пустая строка по умолчанию)
	optional []string
	// imageKey — плейсхолдер изображения (пусто — изображение не используется)
	imageKey string
	// imageMessage — сообщение, если изображение не передано
	imageMessage string
	// tempDir, prefix, nameField — размещение результата во временном подкаталоге
	tempDir   string
	prefix    string
	nameField string
	// derive дополняет values вычисленными полями
	derive func(values map[string]string, now time.Time) error
}

var kinds = map[string]kindSpec{
	config.KindProposal: {
		required: []string{"CLIENTE", "CPF", "MODELO", "FRANQUIA", "VALOR"},
		imageKey:     ImageKeyProposal,
		imageMessage: "Envie a imagem do equipamento.",
		derive:       deriveProposal,
	},
	config.KindContract: {
		required: []string{
			"DENOMINACAO", "CPF_CNPJ", "ENDERECO", "TELEFONE", "EMAIL",
			"EQUIPAMENTO", "DATA_INICIO", "DATA_TERMINO", "FRANQUIA", "VALOR_MENSAL",
		},
		optional:  []string{"ACESSORIOS"},
		tempDir:   filestore.ContractsDir,
		prefix:    "CONTRATO",
		nameField: "DENOMINACAO",
		derive:    deriveContract,
	},
	config.KindPromissory: {
		required: []string{"DATA", "NOME", "CPF", "ENDERECO"},
		imageKey:     ImageKeyPromissory,
		imageMessage: "Envie a foto do documento (RG/CNH).",
		tempDir:      filestore.PromissoryDir,
		prefix:       "PROMISSORIA",
		nameField:    "NOME",
		derive:       derivePromissory,
	},
	config.KindReceipt: {
		required: []string{"NOME", "CPF_CNPJ", "EQUIPAMENTO", "DATA_RETIRADA", "HORA_RETIRADA"},
		optional:  []string{"ACESSORIOS"},
		tempDir:   filestore.ReceiptsDir,
		prefix:    "TERMO",
		nameField: "NOME",
		derive:    deriveReceipt,
	},
}

// Kinds возвращает поддерживаемые виды документов.
func Kinds() []string {
	return []string{config.KindProposal, config.KindContract, config.KindPromissory, config.KindReceipt}
}

// RequiredFields возвращает обязательные поля вида документа.
func RequiredFields(kind string) ([]string, error) {
	spec, ok := kinds[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	return append([]string(nil), spec.required...), nil
}

// ImageKey возвращает плейсхолдер изображения вида (пусто — без изображения).
func ImageKey(kind string) string {
	return kinds[kind].imageKey
}

// BuildValues проверяет поля и возвращает значения для подстановки в шаблон.
// Входная карта не изменяется. Пробелы по краям значений удаляются.
func BuildValues(kind string, fields map[string]string, now time.Time) (map[string]string, error) {
	spec, ok := kinds[kind]
	if !ok {
		return nil, ErrUnknownKind
	}

	values := make(map[string]string, len(spec.required)+len(spec.optional)+4)
	var missing []string
	for _, key := range spec.required {
		v := strings.TrimSpace(fields[key])
		if v == "" {
			missing = append(missing, key)
			continue
		}
		values[key] = v
	}
	if len(missing) > 0 {
		return nil, invalid("Preencha os campos obrigatórios: %s", strings.Join(missing, ", "))
	}
	for _, key := range spec.optional {
		values[key] = strings.TrimSpace(fields[key])
	}

	if err := spec.derive(values, now); err != nil {
		return nil, err
	}
	return values, nil
}

// deriveProposal: VALOR → "R$ 1.234,56 (mil duzentos e trinta e quatro reais)", DATA = сегодня.
func deriveProposal(values map[string]string, now time.Time) error {
	m, err := ptbr.ParseCurrency(values["VALOR"])
	if err != nil {
		return fromFormat("VALOR", err)
	}
	values["VALOR"] = ptbr.FormatReais(m) + " (" + ptbr.CurrencyWords(m.Reais()) + ")"
	values["DATA"] = ptbr.LongDate(now)
	return nil
}

// deriveContract: даты прописью, франшиза и месячная плата в цифрах и словами.
func deriveContract(values map[string]string, now time.Time) error {
	for _, key := range []string{"DATA_INICIO", "DATA_TERMINO"} {
		long, err := ptbr.ShortDateToLong(values[key])
		if err != nil {
			return fromFormat(key, err)
		}
		values[key] = long
	}

	franchise, err := ptbr.ParseInteger(values["FRANQUIA"])
	if err != nil {
		return fromFormat("FRANQUIA", err)
	}
	values["FRANQUIA_FORMATADA"] = ptbr.ThousandsGrouped(franchise)
	values["FRANQUIA_EXTENSO"] = ptbr.IntegerWords(franchise)

	monthly, err := ptbr.ParseCurrency(values["VALOR_MENSAL"])
	if err != nil {
		return fromFormat("VALOR_MENSAL", err)
	}
	values["VALOR_MENSAL_FORMATADO"] = ptbr.FormatCurrency(monthly)
	values["VALOR_MENSAL_EXTENSO"] = ptbr.CurrencyWords(monthly.Reais())

	values["DATA_ASSINATURA"] = ptbr.LongDate(now)
	return nil
}

// derivePromissory: срок платежа DATA прописью, DATA_SISTEMA = сегодня.
func derivePromissory(values map[string]string, now time.Time) error {
	due, err := ptbr.ShortDateToLong(values["DATA"])
	if err != nil {
		return fromFormat("DATA", err)
	}
	values["DATA"] = due
	values["DATA_SISTEMA"] = ptbr.LongDate(now)
	return nil
}

// deriveReceipt: дата выдачи прописью, время hh:mm, DATA_ASSINATURA = сегодня.
func deriveReceipt(values map[string]string, now time.Time) error {
	pickup, err := ptbr.ShortDateToLong(values["DATA_RETIRADA"])
	if err != nil {
		return fromFormat("DATA_RETIRADA", err)
	}
	values["DATA_RETIRADA"] = pickup

	hour, err := ptbr.ValidateTime(values["HORA_RETIRADA"])
	if err != nil {
		return fromFormat("HORA_RETIRADA", err)
	}
	values["HORA_RETIRADA"] = hour

	values["DATA_ASSINATURA"] = ptbr.LongDate(now)
	return nil
}

// JoinAccessories собирает список аксессуаров формы в одну строку "a / b / c".
// Пустые элементы пропускаются.
func JoinAccessories(items []string, other string) string {
	parts := make([]string, 0, len(items)+1)
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			parts = append(parts, it)
		}
	}
	if other = strings.TrimSpace(other); other != "" {
		parts = append(parts, other)
	}
	return strings.Join(parts, " / ")
}
