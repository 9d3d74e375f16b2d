// Пакет pages — страницы UI на templ.
// Исходники страниц лежат в *.templ, код *_templ.go генерируется командой
// `templ generate` и коммитится вместе с ними.
package pages

import (
	"slices"
	"strconv"
)

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.977 generate

// LayoutData — общие данные страниц с меню.
type LayoutData struct {
	// Title — заголовок страницы
	Title string
	// Username — логин сотрудника в сессии
	Username string
}

// navItem — пункт бокового меню.
type navItem struct {
	href  string
	icon  string
	label string
}

func (n navItem) caption() string {
	return n.icon + " " + n.label
}

// navItems — пункты бокового меню; первый пункт ведёт на стартовую страницу.
var navItems = []navItem{
	{"/", "🏠", "Início"},
	{"/proposta", "📄", "Nova proposta"},
	{"/recentes", "🕘", "Propostas recentes"},
	{"/contrato", "📝", "Contrato"},
	{"/promissoria", "💵", "Nota promissória"},
	{"/termo", "📦", "Termo de retirada"},
}

// LoginData — данные страницы входа.
type LoginData struct {
	Username string
	Error    string
}

// AccessoryOptions — аксессуары, предлагаемые флажками в договоре и акте выдачи.
var AccessoryOptions = []string{
	"Cabo de força",
	"Cabo de rede",
	"Cabo USB",
	"Toner reserva",
	"Bandeja adicional",
}

// FormData — данные формы документа.
type FormData struct {
	// Username — логин сотрудника в сессии
	Username string
	// Error — сообщение об ошибке предыдущей отправки
	Error string
	// Action — адрес отправки формы
	Action string
	// BackURL — адрес кнопки "Voltar"
	BackURL string
	// Values — введённые значения по имени поля формы
	Values map[string]string
	// Accessories — отмеченные аксессуары
	Accessories []string
}

func (d FormData) value(name string) string {
	return d.Values[name]
}

func (d FormData) accessory(name string) bool {
	return slices.Contains(d.Accessories, name)
}

// field описывает поле формы.
type field struct {
	label     string
	name      string
	inputType string
	// mask — маска ввода на клиенте: "date" (dd/mm/aa) или "time" (hh:mm)
	mask        string
	placeholder string
	required    bool
}

func (f field) kind() string {
	if f.inputType == "" {
		return "text"
	}
	return f.inputType
}

// keepsValue сообщает, подставляется ли введённое значение при повторном показе формы.
// Файлы и пароли не возвращаются в браузер.
func (f field) keepsValue() bool {
	k := f.kind()
	return k != "file" && k != "password"
}

// RecentItem — строка списка последних предложений.
type RecentItem struct {
	ID         int64
	ClientName string
	CreatedAt  string
	ExpiresAt  string
	HasPDF     bool
}

func (it RecentItem) idText() string {
	return strconv.FormatInt(it.ID, 10)
}

func (it RecentItem) downloadURL() string {
	return "/proposta/" + it.idText() + "/baixar"
}

func (it RecentItem) contractURL() string {
	return "/contrato/" + it.idText()
}

func (it RecentItem) deleteURL() string {
	return "/proposta/" + it.idText() + "/excluir"
}

// RecentData — данные страницы последних предложений.
type RecentData struct {
	Username string
	Items    []RecentItem
}
