package handlers

import (
	"net/http"
	"strings"

	"github.com/bigkaa/senadocs/internal/domain/model"
	"github.com/bigkaa/senadocs/internal/service"
	"github.com/bigkaa/senadocs/internal/ui/pages"
)

// formField — соответствие поля HTML-формы ключу шаблона.
type formField struct {
	name string
	key  string
}

var (
	proposalFields = []formField{
		{"cliente", model.FieldClient},
		{"cpf", model.FieldCPF},
		{"modelo", model.FieldModel},
		{"franquia", model.FieldFranchise},
		{"valor", model.FieldValue},
	}
	contractFields = []formField{
		{"denominacao", "DENOMINACAO"},
		{"cpf_cnpj", "CPF_CNPJ"},
		{"endereco", "ENDERECO"},
		{"telefone", "TELEFONE"},
		{"email", "EMAIL"},
		{"equipamento", "EQUIPAMENTO"},
		{"data_inicio", "DATA_INICIO"},
		{"data_termino", "DATA_TERMINO"},
		{"franquia", "FRANQUIA"},
		{"valor_mensal", "VALOR_MENSAL"},
	}
	promissoryFields = []formField{
		{"nome", "NOME"},
		{"cpf", "CPF"},
		{"endereco", "ENDERECO"},
		{"data_venc", "DATA"},
	}
	receiptFields = []formField{
		{"nome", "NOME"},
		{"cpf_cnpj", "CPF_CNPJ"},
		{"equipamento", "EQUIPAMENTO"},
		{"data_retirada", "DATA_RETIRADA"},
		{"hora_retirada", "HORA_RETIRADA"},
	}
)

// submission — разобранная отправка формы.
type submission struct {
	// fields — значения по ключам шаблона
	fields map[string]string
	// form — данные для повторного вывода формы
	form pages.FormData
}

// readForm читает поля формы (r.ParseForm/ParseMultipartForm уже вызван).
// withAccessories добавляет ACESSORIOS из флажков acc и поля acc_outros.
func readForm(r *http.Request, layout []formField, withAccessories bool) submission {
	s := submission{
		fields: make(map[string]string, len(layout)+1),
		form: pages.FormData{
			Username: username(r),
			Action:   r.URL.Path,
			Values:   make(map[string]string, len(layout)+1),
		},
	}
	for _, f := range layout {
		v := strings.TrimSpace(r.FormValue(f.name))
		s.fields[f.key] = v
		s.form.Values[f.name] = v
	}
	if withAccessories {
		items := r.Form["acc"]
		other := r.FormValue("acc_outros")
		s.fields["ACESSORIOS"] = service.JoinAccessories(items, other)
		s.form.Accessories = items
		s.form.Values["acc_outros"] = strings.TrimSpace(other)
	}
	return s
}
