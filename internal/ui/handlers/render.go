// Пакет handlers — HTTP-обработчики UI.
// render.go — общие функции: вывод страниц, отправка файлов, сообщения об ошибках.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/a-h/templ"

	"github.com/bigkaa/senadocs/internal/render/convert"
	"github.com/bigkaa/senadocs/internal/render/docx"
	"github.com/bigkaa/senadocs/internal/service"
	"github.com/bigkaa/senadocs/internal/storage/filestore"
	uimiddleware "github.com/bigkaa/senadocs/internal/ui/middleware"
)

// maxUploadBytes — максимальный размер multipart-формы с изображением.
const maxUploadBytes = 15 << 20

// displayLayout — формат дат в UI (dd/mm/YYYY HH:MM).
const displayLayout = "02/01/2006 15:04"

// renderPage выводит страницу с указанным статусом.
func renderPage(w http.ResponseWriter, r *http.Request, status int, page templ.Component, logger *slog.Logger) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Render(r.Context(), w); err != nil {
		logger.Error("Ошибка рендеринга страницы",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

// sendAttachment отправляет PDF как вложение с именем downloadName.
func sendAttachment(w http.ResponseWriter, r *http.Request, path, downloadName string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ошибка открытия файла: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("ошибка чтения атрибутов файла: %w", err)
	}

	if downloadName == "" {
		downloadName = filepath.Base(path)
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": downloadName}))
	http.ServeContent(w, r, downloadName, info.ModTime(), f)
	return nil
}

// username возвращает логин сотрудника из сессии запроса.
func username(r *http.Request) string {
	if s := uimiddleware.SessionFromContext(r.Context()); s != nil {
		return s.Username
	}
	return ""
}

// formFailure переводит ошибку формирования документа в сообщение формы и HTTP-статус.
// Внутренние ошибки логируются и не показываются пользователю.
func formFailure(err error, logger *slog.Logger, attrs ...any) (string, int) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message, http.StatusBadRequest
	case errors.Is(err, filestore.ErrUnsupportedImage):
		return "Formato de imagem não suportado (use PNG ou JPG).", http.StatusBadRequest
	case errors.Is(err, docx.ErrImage):
		return "Não foi possível ler a imagem enviada.", http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return "Proposta não encontrada.", http.StatusNotFound
	case errors.Is(err, convert.ErrConversionFailed):
		logger.Warn("Ошибка конвертации в PDF", append(attrs, slog.String("error", err.Error()))...)
		return "Falha ao converter o documento para PDF. Tente novamente.", http.StatusBadGateway
	case errors.Is(err, docx.ErrTemplate):
		logger.Error("Ошибка шаблона", append(attrs, slog.String("error", err.Error()))...)
		return "Modelo de documento indisponível. Avise o administrador.", http.StatusInternalServerError
	default:
		logger.Error("Ошибка формирования документа", append(attrs, slog.String("error", err.Error()))...)
		return "Erro interno ao gerar o documento.", http.StatusInternalServerError
	}
}
