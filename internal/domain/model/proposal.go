package model

import "time"

// Ключи полей предложения в Payload (совпадают с плейсхолдерами шаблона).
const (
	FieldClient    = "CLIENTE"
	FieldCPF       = "CPF"
	FieldModel     = "MODELO"
	FieldFranchise = "FRANQUIA"
	FieldValue     = "VALOR"
)

// Proposal — выданное коммерческое предложение.
// Хранится в таблице proposals.
type Proposal struct {
	// ID — идентификатор, назначается хранилищем при создании
	ID int64
	// ClientName — имя клиента
	ClientName string
	// CreatedAt — время создания (UTC)
	CreatedAt time.Time
	// ExpiresAt — CreatedAt + срок хранения, вычисляется один раз при создании
	ExpiresAt time.Time
	// PDFPath — путь к готовому PDF (nil, пока документ не сформирован)
	PDFPath *string
	// Payload — значения полей формы
	Payload map[string]string
}

// NewProposal создаёт предложение с вычисленным сроком истечения.
// Время усекается до микросекунд — точности обоих хранилищ.
func NewProposal(clientName string, payload map[string]string, now time.Time, retentionDays int) *Proposal {
	created := now.UTC().Truncate(time.Microsecond)
	copied := make(map[string]string, len(payload))
	for k, v := range payload {
		copied[k] = v
	}
	return &Proposal{
		ClientName: clientName,
		CreatedAt:  created,
		ExpiresAt:  created.Add(time.Duration(retentionDays) * 24 * time.Hour),
		Payload:    copied,
	}
}

// Expired сообщает, истёк ли срок хранения на момент now.
func (p *Proposal) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// HasPDF сообщает, сформирован ли документ.
func (p *Proposal) HasPDF() bool {
	return p.PDFPath != nil && *p.PDFPath != ""
}
