// sweep.go — очистка по сроку хранения, запускаемая запросами UI.
package middleware

import (
	"context"
	"net/http"

	"github.com/bigkaa/senadocs/internal/domain/model"
)

// Sweeper — очистка с ограничением частоты (реализуется *service.Sweeper).
type Sweeper interface {
	MaybeSweep(ctx context.Context) *model.SweepResult
}

// AutoSweep запускает очистку перед обработкой запроса. Частоту ограничивает
// сам Sweeper; ошибки очистки на запрос не влияют.
func AutoSweep(sweeper Sweeper) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sweeper.MaybeSweep(context.WithoutCancel(r.Context()))
			next.ServeHTTP(w, r)
		})
	}
}
