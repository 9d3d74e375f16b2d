package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bigkaa/senadocs/internal/config"
	"github.com/bigkaa/senadocs/internal/render/convert"
	"github.com/bigkaa/senadocs/internal/render/docx"
	"github.com/bigkaa/senadocs/internal/storage/filestore"
)

func contractFields() map[string]string {
	return map[string]string{
		"DENOMINACAO": "ACME Ltda", "CPF_CNPJ": "12.345.678/0001-90", "ENDERECO": "Rua A, 1",
		"TELEFONE": "11 99999-0000", "EMAIL": "a@b.com", "EQUIPAMENTO": "Impressora",
		"DATA_INICIO": "01/03/26", "DATA_TERMINO": "28/02/27", "FRANQUIA": "1.000",
		"VALOR_MENSAL": "220,00", "ACESSORIOS": "cabo & fonte",
	}
}

func TestGenerate_Contract(t *testing.T) {
	env := newTestEnv(t)
	target := filepath.Join(env.cfg.StorageDir, "out", "contrato.pdf")

	if err := env.docs.Generate(context.Background(), config.KindContract, contractFields(), target, ""); err != nil {
		t.Fatalf("Generate() вернул ошибку: %v", err)
	}

	doc := documentText(t, target)
	want := "CONTRATO ACME Ltda 1 de Março de 2026 a 28 de Fevereiro de 2027 1.000 (mil) 220,00 " +
		"(duzentos e vinte reais) cabo &amp; fonte 20 de Fevereiro de 2026"
	if !strings.Contains(doc, want) {
		t.Errorf("документ не содержит ожидаемый текст:\n%s", doc)
	}

	if n := len(dirEntries(t, env.store.Dir(filestore.WorkDir))); n != 0 {
		t.Errorf("временный каталог рендеринга не удалён: %d элементов", n)
	}
	if env.converter.Calls() != 1 {
		t.Errorf("конвертер вызван %d раз", env.converter.Calls())
	}
}

func TestGenerate_MissingFieldFailsBeforeConversion(t *testing.T) {
	env := newTestEnv(t)
	fields := contractFields()
	delete(fields, "EMAIL")
	target := filepath.Join(t.TempDir(), "contrato.pdf")

	err := env.docs.Generate(context.Background(), config.KindContract, fields, target, "")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ожидается ErrValidation, получено: %v", err)
	}
	if env.converter.Calls() != 0 {
		t.Error("конвертер не должен запускаться при ошибке валидации")
	}
	if n := len(dirEntries(t, env.store.Dir(filestore.WorkDir))); n != 0 {
		t.Error("временный каталог не должен создаваться при ошибке валидации")
	}
	if filestore.FileExists(target) {
		t.Error("целевой файл не должен создаваться")
	}
}

func TestGenerate_ConversionFailureLeavesTargetUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.converter.err = &convert.ConversionError{ExitCode: 1, Stderr: "boom"}

	target := filepath.Join(t.TempDir(), "contrato.pdf")
	if err := os.WriteFile(target, []byte("versão anterior"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := env.docs.Generate(context.Background(), config.KindContract, contractFields(), target, "")
	if !errors.Is(err, convert.ErrConversionFailed) {
		t.Fatalf("ожидается ErrConversionFailed, получено: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil || string(data) != "versão anterior" {
		t.Errorf("целевой файл изменён: %q, %v", data, err)
	}
	if n := len(dirEntries(t, env.store.Dir(filestore.WorkDir))); n != 0 {
		t.Error("временный каталог не удалён после ошибки")
	}
}

func TestGenerate_RepeatedGenerationIsStable(t *testing.T) {
	env := newTestEnv(t)
	target := filepath.Join(t.TempDir(), "contrato.pdf")

	if err := env.docs.Generate(context.Background(), config.KindContract, contractFields(), target, ""); err != nil {
		t.Fatal(err)
	}
	first := documentText(t, target)

	if err := env.docs.Generate(context.Background(), config.KindContract, contractFields(), target, ""); err != nil {
		t.Fatal(err)
	}
	if second := documentText(t, target); second != first {
		t.Errorf("повторное формирование дало другой текст:\n%s\n%s", first, second)
	}
}

func TestGenerate_ImageKinds(t *testing.T) {
	env := newTestEnv(t)
	fields := map[string]string{"DATA": "10/04/26", "NOME": "João", "CPF": "1", "ENDERECO": "Rua"}
	target := filepath.Join(t.TempDir(), "promissoria.pdf")

	err := env.docs.Generate(context.Background(), config.KindPromissory, fields, target, "")
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Message != "Envie a foto do documento (RG/CNH)." {
		t.Fatalf("ожидается ошибка отсутствия изображения, получено: %v", err)
	}

	img := filepath.Join(t.TempDir(), "rg.png")
	writeTestImage(t, img)
	if err := env.docs.Generate(context.Background(), config.KindPromissory, fields, target, img); err != nil {
		t.Fatalf("Generate() вернул ошибку: %v", err)
	}
	doc := documentText(t, target)
	if !strings.Contains(doc, "PROMISSORIA João 10 de Abril de 2026 20 de Fevereiro de 2026") {
		t.Errorf("неверный текст векселя:\n%s", doc)
	}
	// 185 мм = 6660000 EMU, пропорция 4x2
	if !strings.Contains(doc, `cx="6660000" cy="3330000"`) {
		t.Errorf("изображение не встроено с нужной шириной:\n%s", doc)
	}
}

func TestGenerate_MissingTemplate(t *testing.T) {
	env := newTestEnv(t)
	if err := os.Remove(filepath.Join(env.cfg.TemplatesDir, "template_termo.docx")); err != nil {
		t.Fatal(err)
	}
	fields := map[string]string{
		"NOME": "a", "CPF_CNPJ": "b", "EQUIPAMENTO": "c", "DATA_RETIRADA": "01/01/26", "HORA_RETIRADA": "10:00",
	}
	err := env.docs.Generate(context.Background(), config.KindReceipt, fields, filepath.Join(t.TempDir(), "t.pdf"), "")
	if !errors.Is(err, docx.ErrTemplate) {
		t.Errorf("ожидается ErrTemplate, получено: %v", err)
	}
	if env.converter.Calls() != 0 {
		t.Error("конвертер не должен запускаться без шаблона")
	}
}

func TestGenerateTemp(t *testing.T) {
	env := newTestEnv(t)
	fields := map[string]string{
		"NOME": "José: da Silva", "CPF_CNPJ": "b", "EQUIPAMENTO": "c", "DATA_RETIRADA": "01/01/26", "HORA_RETIRADA": "10:00",
	}

	path, err := env.docs.GenerateTemp(context.Background(), config.KindReceipt, fields, "")
	if err != nil {
		t.Fatalf("GenerateTemp() вернул ошибку: %v", err)
	}
	if filepath.Dir(path) != env.store.Dir(filestore.ReceiptsDir) {
		t.Errorf("файл создан не в каталоге актов: %s", path)
	}
	if base := filepath.Base(path); !strings.HasPrefix(base, "TERMO - José da Silva_") || filepath.Ext(base) != ".pdf" {
		t.Errorf("неверное имя файла: %s", base)
	}
	if !filestore.FileExists(path) {
		t.Error("файл не создан")
	}

	if _, err := env.docs.GenerateTemp(context.Background(), config.KindProposal, nil, ""); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("предложения не формируются во временном каталоге, получено: %v", err)
	}
}
