package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/bigkaa/senadocs/internal/config"
	"github.com/bigkaa/senadocs/internal/domain/model"
	"github.com/bigkaa/senadocs/internal/render/convert"
	"github.com/bigkaa/senadocs/internal/service"
	"github.com/bigkaa/senadocs/internal/storage/filestore"
	"github.com/bigkaa/senadocs/internal/ui/auth"
	uimiddleware "github.com/bigkaa/senadocs/internal/ui/middleware"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- моки ---

type mockProposals struct {
	items     map[int64]*model.Proposal
	created   []map[string]string
	generated []string
	deleted   []int64
	createErr error
	genErr    error
	pdfPath   string
}

func newMockProposals() *mockProposals {
	return &mockProposals{items: map[int64]*model.Proposal{}}
}

func (m *mockProposals) Create(_ context.Context, payload map[string]string) (*model.Proposal, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, payload)
	p := model.NewProposal(payload[model.FieldClient], payload, time.Now(), 10)
	p.ID = int64(len(m.created))
	m.items[p.ID] = p
	return p, nil
}

func (m *mockProposals) Get(_ context.Context, id int64) (*model.Proposal, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	return p, nil
}

func (m *mockProposals) ListRecent(context.Context, int) ([]*model.Proposal, error) {
	out := make([]*model.Proposal, 0, len(m.items))
	for _, p := range m.items {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProposals) Generate(_ context.Context, _ *model.Proposal, imagePath string) error {
	m.generated = append(m.generated, imagePath)
	return m.genErr
}

func (m *mockProposals) Delete(_ context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return service.ErrNotFound
	}
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockProposals) PDFPath(_ context.Context, id int64) (string, error) {
	if _, ok := m.items[id]; !ok || m.pdfPath == "" {
		return "", service.ErrNotFound
	}
	return m.pdfPath, nil
}

type mockDocs struct {
	kind   string
	fields map[string]string
	image  string
	// imageExisted — существовал ли файл изображения в момент вызова
	imageExisted bool
	path         string
	err          error
}

func (m *mockDocs) GenerateTemp(_ context.Context, kind string, fields map[string]string, imagePath string) (string, error) {
	m.kind, m.fields, m.image = kind, fields, imagePath
	m.imageExisted = imagePath != "" && filestore.FileExists(imagePath)
	if m.err != nil {
		return "", m.err
	}
	return m.path, nil
}

func newStore(t *testing.T) *filestore.FileStore {
	t.Helper()
	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("filestore.New() вернул ошибку: %v", err)
	}
	return store
}

func writePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 teste"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// withUser добавляет сессию сотрудника в контекст запроса.
func withUser(r *http.Request) *http.Request {
	return r.WithContext(uimiddleware.WithSession(r.Context(), &auth.SessionData{Username: "ana"}))
}

// withID добавляет параметр маршрута {id}.
func withID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func postForm(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return withUser(req)
}

func postMultipart(t *testing.T, target string, values map[string]string, fileField, fileName string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte("\x89PNG fake"))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return withUser(req)
}

var proposalValues = map[string]string{
	"cliente":  "  Ana Souza ",
	"cpf":      "123.456.789-00",
	"modelo":   "Ricoh MP 301",
	"franquia": "5000",
	"valor":    "350,00",
}

// --- auth ---

func newAuthHandler(t *testing.T, users map[string]string) (*AuthHandler, *auth.SessionManager) {
	t.Helper()
	sm, err := auth.NewSessionManager("chave-teste", false, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return NewAuthHandler(auth.NewStaff(users), sm, testLogger()), sm
}

func staffUsers(t *testing.T) map[string]string {
	t.Helper()
	hash, err := auth.HashPassword("segredo", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]string{"ana": hash}
}

// TestLoginSuccess проверяет вход с правильным паролем.
func TestLoginSuccess(t *testing.T) {
	h, sm := newAuthHandler(t, staffUsers(t))

	w := httptest.NewRecorder()
	h.HandleLogin(w, postForm("/login", url.Values{"username": {"ana"}, "password": {"segredo"}}))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("статус: want 303, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Location: want /, got %q", loc)
	}

	// Cookie из ответа даёт действующую сессию
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	session, err := sm.GetSessionFromRequest(req)
	if err != nil || session == nil || session.Username != "ana" {
		t.Fatalf("сессия после входа: %+v, %v", session, err)
	}

	// Повторный GET /login с сессией — redirect на /
	w2 := httptest.NewRecorder()
	h.HandleLoginPage(w2, req)
	if w2.Code != http.StatusFound {
		t.Errorf("GET /login с сессией: want 302, got %d", w2.Code)
	}
}

// TestLoginFailures проверяет отказы во входе.
func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name       string
		users      map[string]string
		password   string
		wantStatus int
		wantText   string
	}{
		{"неверный пароль", staffUsers(t), "errado", http.StatusUnauthorized, "Usuário ou senha inválidos."},
		{"нет сотрудников", nil, "segredo", http.StatusServiceUnavailable, "Nenhum usuário configurado"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newAuthHandler(t, tt.users)
			w := httptest.NewRecorder()
			h.HandleLogin(w, postForm("/login", url.Values{"username": {"ana"}, "password": {tt.password}}))

			if w.Code != tt.wantStatus {
				t.Errorf("статус: want %d, got %d", tt.wantStatus, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.wantText) {
				t.Errorf("страница не содержит %q", tt.wantText)
			}
			if len(w.Result().Cookies()) != 0 {
				t.Error("cookie не должен устанавливаться")
			}
		})
	}
}

// TestLogout проверяет удаление cookie.
func TestLogout(t *testing.T) {
	h, _ := newAuthHandler(t, staffUsers(t))
	w := httptest.NewRecorder()
	h.HandleLogout(w, httptest.NewRequest(http.MethodPost, "/logout", nil))

	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Fatalf("ответ: %d %q", w.Code, w.Header().Get("Location"))
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != auth.SessionCookieName || cookies[0].MaxAge >= 0 {
		t.Errorf("cookie не удалён: %+v", cookies)
	}
}

// --- предложения ---

// TestProposalSubmitSuccess проверяет полный сценарий отправки формы.
func TestProposalSubmitSuccess(t *testing.T) {
	props := newMockProposals()
	h := NewProposalsHandler(props, newStore(t), testLogger())

	w := httptest.NewRecorder()
	h.HandleSubmit(w, postMultipart(t, "/proposta", proposalValues, "imagem", "foto.png"))

	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/recentes" {
		t.Fatalf("ответ: %d %q, тело: %s", w.Code, w.Header().Get("Location"), w.Body.String())
	}
	if len(props.created) != 1 {
		t.Fatalf("Create вызван %d раз", len(props.created))
	}
	if got := props.created[0][model.FieldClient]; got != "Ana Souza" {
		t.Errorf("CLIENTE: want %q, got %q", "Ana Souza", got)
	}
	if len(props.generated) != 1 || !strings.HasSuffix(props.generated[0], ".png") {
		t.Errorf("Generate получил изображение %v", props.generated)
	}
}

// TestProposalSubmitMissingImage проверяет отказ без изображения.
func TestProposalSubmitMissingImage(t *testing.T) {
	props := newMockProposals()
	h := NewProposalsHandler(props, newStore(t), testLogger())

	w := httptest.NewRecorder()
	h.HandleSubmit(w, postMultipart(t, "/proposta", proposalValues, "", ""))

	if w.Code != http.StatusBadRequest {
		t.Errorf("статус: want 400, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Envie a imagem do equipamento.") {
		t.Error("нет сообщения об изображении")
	}
	if !strings.Contains(body, "Ricoh MP 301") {
		t.Error("введённые значения не сохранены в форме")
	}
	if len(props.created) != 0 {
		t.Error("Create не должен вызываться")
	}
}

// TestProposalSubmitValidationRemovesUpload проверяет удаление загрузки
// при отклонённых полях.
func TestProposalSubmitValidationRemovesUpload(t *testing.T) {
	props := newMockProposals()
	props.createErr = &service.ValidationError{Message: "Valor inválido."}
	store := newStore(t)
	h := NewProposalsHandler(props, store, testLogger())

	w := httptest.NewRecorder()
	h.HandleSubmit(w, postMultipart(t, "/proposta", proposalValues, "imagem", "foto.png"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("статус: want 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Valor inválido.") {
		t.Error("нет сообщения валидации")
	}
	entries, err := os.ReadDir(store.Dir(filestore.UploadsDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("загрузка не удалена: %d файлов", len(entries))
	}
}

// TestProposalSubmitUnsupportedImage проверяет отказ для неподдерживаемого формата.
func TestProposalSubmitUnsupportedImage(t *testing.T) {
	props := newMockProposals()
	h := NewProposalsHandler(props, newStore(t), testLogger())

	w := httptest.NewRecorder()
	h.HandleSubmit(w, postMultipart(t, "/proposta", proposalValues, "imagem", "foto.gif"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("статус: want 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Formato de imagem não suportado") {
		t.Error("нет сообщения о формате")
	}
}

// TestProposalSubmitConversionFailed проверяет ответ при сбое конвертера.
func TestProposalSubmitConversionFailed(t *testing.T) {
	props := newMockProposals()
	props.genErr = &convert.ConversionError{ExitCode: 1, Stderr: "timeout"}
	h := NewProposalsHandler(props, newStore(t), testLogger())

	w := httptest.NewRecorder()
	h.HandleSubmit(w, postMultipart(t, "/proposta", proposalValues, "imagem", "foto.jpg"))

	if w.Code != http.StatusBadGateway {
		t.Errorf("статус: want 502, got %d", w.Code)
	}
}

// TestRecentPage проверяет список последних предложений.
func TestRecentPage(t *testing.T) {
	props := newMockProposals()
	props.Create(context.Background(), map[string]string{model.FieldClient: "Beto <Ltda>"})
	h := NewProposalsHandler(props, newStore(t), testLogger())

	w := httptest.NewRecorder()
	h.HandleRecent(w, withUser(httptest.NewRequest(http.MethodGet, "/recentes", nil)))

	if w.Code != http.StatusOK {
		t.Fatalf("статус: want 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Beto &lt;Ltda&gt;") {
		t.Error("имя клиента не выведено или не экранировано")
	}
}

// TestDownload проверяет скачивание PDF.
func TestDownload(t *testing.T) {
	props := newMockProposals()
	props.Create(context.Background(), map[string]string{model.FieldClient: "Ana"})
	props.pdfPath = writePDF(t)
	h := NewProposalsHandler(props, newStore(t), testLogger())

	tests := []struct {
		id         string
		wantStatus int
	}{
		{"1", http.StatusOK},
		{"2", http.StatusNotFound},
		{"abc", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.HandleDownload(w, withID(httptest.NewRequest(http.MethodGet, "/proposta/"+tt.id+"/baixar", nil), tt.id))
			if w.Code != tt.wantStatus {
				t.Fatalf("статус: want %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") || !strings.Contains(cd, "doc.pdf") {
				t.Errorf("Content-Disposition: %q", cd)
			}
			if w.Header().Get("Content-Type") != "application/pdf" {
				t.Errorf("Content-Type: %q", w.Header().Get("Content-Type"))
			}
		})
	}
}

// TestDelete проверяет удаление предложения.
func TestDelete(t *testing.T) {
	props := newMockProposals()
	props.Create(context.Background(), map[string]string{model.FieldClient: "Ana"})
	h := NewProposalsHandler(props, newStore(t), testLogger())

	w := httptest.NewRecorder()
	h.HandleDelete(w, withID(postForm("/proposta/1/excluir", nil), "1"))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/recentes" {
		t.Fatalf("ответ: %d %q", w.Code, w.Header().Get("Location"))
	}
	if len(props.deleted) != 1 || props.deleted[0] != 1 {
		t.Errorf("удалены: %v", props.deleted)
	}

	w = httptest.NewRecorder()
	h.HandleDelete(w, withID(postForm("/proposta/1/excluir", nil), "1"))
	if w.Code != http.StatusNotFound {
		t.Errorf("повторное удаление: want 404, got %d", w.Code)
	}
}

// --- документы ---

var contractValues = url.Values{
	"denominacao":  {"Empresa X"},
	"cpf_cnpj":     {"12.345.678/0001-90"},
	"equipamento":  {"Ricoh"},
	"acc":          {"Cabo de força", "Toner reserva"},
	"acc_outros":   {"Suporte"},
	"data_inicio":  {"01/03/2026"},
	"data_termino": {"01/03/2027"},
	"franquia":     {"5000"},
	"valor_mensal": {"350,00"},
}

// TestContractManual проверяет формирование контракта вручную.
func TestContractManual(t *testing.T) {
	docs := &mockDocs{path: writePDF(t)}
	h := NewDocumentsHandler(docs, newMockProposals(), newStore(t), testLogger())

	w := httptest.NewRecorder()
	h.HandleContract(w, postForm("/contrato", contractValues))

	if w.Code != http.StatusOK {
		t.Fatalf("статус: want 200, got %d", w.Code)
	}
	if docs.kind != config.KindContract {
		t.Errorf("вид: want %q, got %q", config.KindContract, docs.kind)
	}
	if got := docs.fields["ACESSORIOS"]; !strings.Contains(got, "Toner reserva") || !strings.Contains(got, "Suporte") {
		t.Errorf("ACESSORIOS: %q", got)
	}
	cd := w.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "attachment") || !strings.Contains(cd, "CONTRATO - Empresa X.pdf") {
		t.Errorf("Content-Disposition: %q", cd)
	}
}

// TestContractValidationError проверяет повторный вывод формы с сообщением.
func TestContractValidationError(t *testing.T) {
	docs := &mockDocs{err: &service.ValidationError{Message: "Data de início inválida."}}
	h := NewDocumentsHandler(docs, newMockProposals(), newStore(t), testLogger())

	w := httptest.NewRecorder()
	h.HandleContract(w, postForm("/contrato", contractValues))

	if w.Code != http.StatusBadRequest {
		t.Errorf("статус: want 400, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Data de início inválida.") {
		t.Error("нет сообщения валидации")
	}
	if !strings.Contains(body, "Empresa X") {
		t.Error("введённые значения не сохранены в форме")
	}
}

// TestContractFromProposal проверяет предзаполнение и имя вложения.
func TestContractFromProposal(t *testing.T) {
	props := newMockProposals()
	props.Create(context.Background(), map[string]string{
		model.FieldClient:    "Ana Souza",
		model.FieldCPF:       "123.456.789-00",
		model.FieldModel:     "Ricoh MP 301",
		model.FieldFranchise: "5000",
		model.FieldValue:     "350,00",
	})
	docs := &mockDocs{path: writePDF(t)}
	h := NewDocumentsHandler(docs, props, newStore(t), testLogger())

	w := httptest.NewRecorder()
	h.HandleContractFromProposalForm(w, withID(withUser(httptest.NewRequest(http.MethodGet, "/contrato/1", nil)), "1"))
	if w.Code != http.StatusOK {
		t.Fatalf("GET: want 200, got %d", w.Code)
	}
	for _, want := range []string{"Ana Souza", "123.456.789-00", "Ricoh MP 301", "350,00"} {
		if !strings.Contains(w.Body.String(), want) {
			t.Errorf("форма не предзаполнена значением %q", want)
		}
	}

	w = httptest.NewRecorder()
	h.HandleContractFromProposal(w, withID(postForm("/contrato/1", contractValues), "1"))
	if w.Code != http.StatusOK {
		t.Fatalf("POST: want 200, got %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "Ana Souza - #1.pdf") {
		t.Errorf("Content-Disposition: %q", cd)
	}

	w = httptest.NewRecorder()
	h.HandleContractFromProposalForm(w, withID(withUser(httptest.NewRequest(http.MethodGet, "/contrato/9", nil)), "9"))
	if w.Code != http.StatusNotFound {
		t.Errorf("неизвестное предложение: want 404, got %d", w.Code)
	}
}

// TestPromissory проверяет промиссорию: изображение передаётся и затем удаляется.
func TestPromissory(t *testing.T) {
	docs := &mockDocs{path: writePDF(t)}
	store := newStore(t)
	h := NewDocumentsHandler(docs, newMockProposals(), store, testLogger())

	values := map[string]string{"nome": "Ana", "cpf": "123", "endereco": "Rua A", "data_venc": "10/04/2026"}

	w := httptest.NewRecorder()
	h.HandlePromissory(w, postMultipart(t, "/promissoria", values, "", ""))
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Envie a imagem do RG/CPF.") {
		t.Errorf("без изображения: %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.HandlePromissory(w, postMultipart(t, "/promissoria", values, "imagem_rg", "rg.jpg"))
	if w.Code != http.StatusOK {
		t.Fatalf("статус: want 200, got %d", w.Code)
	}
	if docs.kind != config.KindPromissory || docs.fields["DATA"] != "10/04/2026" {
		t.Errorf("вызов: %q %v", docs.kind, docs.fields)
	}
	if !docs.imageExisted {
		t.Error("изображение должно существовать во время формирования")
	}
	if filestore.FileExists(docs.image) {
		t.Error("изображение не удалено после формирования")
	}
}

// TestReceipt проверяет акт выдачи.
func TestReceipt(t *testing.T) {
	docs := &mockDocs{path: writePDF(t)}
	h := NewDocumentsHandler(docs, newMockProposals(), newStore(t), testLogger())

	w := httptest.NewRecorder()
	h.HandleReceipt(w, postForm("/termo", url.Values{
		"nome":          {"Ana"},
		"equipamento":   {"Ricoh"},
		"data_retirada": {"01/03/2026"},
		"hora_retirada": {"14:30"},
	}))
	if w.Code != http.StatusOK {
		t.Fatalf("статус: want 200, got %d", w.Code)
	}
	if docs.kind != config.KindReceipt || docs.fields["HORA_RETIRADA"] != "14:30" {
		t.Errorf("вызов: %q %v", docs.kind, docs.fields)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "TERMO - Ana.pdf") {
		t.Errorf("Content-Disposition: %q", cd)
	}
}

// TestFormFailure проверяет соответствие ошибок статусам.
func TestFormFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"валидация", &service.ValidationError{Message: "x"}, http.StatusBadRequest},
		{"формат", filestore.ErrUnsupportedImage, http.StatusBadRequest},
		{"не найдено", service.ErrNotFound, http.StatusNotFound},
		{"конвертация", &convert.ConversionError{ExitCode: 1}, http.StatusBadGateway},
		{"прочее", errors.New("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, got := formFailure(tt.err, testLogger()); got != tt.want {
				t.Errorf("статус: want %d, got %d", tt.want, got)
			}
		})
	}
}
