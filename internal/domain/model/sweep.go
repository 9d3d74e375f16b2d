package model

import "time"

// SweepResult — результат одного прохода очистки.
type SweepResult struct {
	// StartedAt — время начала прохода
	StartedAt time.Time
	// RecordsRemoved — удалено просроченных предложений
	RecordsRemoved int
	// TempFilesRemoved — удалено устаревших временных файлов
	TempFilesRemoved int
	// Duration — длительность прохода
	Duration time.Duration
	// Skipped — проход пропущен (выполняется другой или сработало ограничение частоты)
	Skipped bool
}
