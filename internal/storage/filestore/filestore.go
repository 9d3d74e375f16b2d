// Пакет filestore — раскладка файлов в каталоге хранения и операции с ними:
// атомарное размещение готовых документов, приём загруженных изображений,
// уникальные имена во временных подкаталогах.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ErrStorageIO — ошибка чтения, записи или переименования файла.
var ErrStorageIO = errors.New("erro de armazenamento")

// ErrUnsupportedImage — загруженный файл не является PNG/JPEG.
var ErrUnsupportedImage = errors.New("formato de imagem não suportado (use PNG ou JPG)")

// Временные подкаталоги внутри корня хранения.
const (
	// UploadsDir — загруженные изображения до встраивания в документ
	UploadsDir = "_tmp"
	// ContractsDir — сформированные договоры до скачивания
	ContractsDir = "_contratos_tmp"
	// PromissoryDir — сформированные промиссорные векселя до скачивания
	PromissoryDir = "_promissorias_tmp"
	// ReceiptsDir — сформированные акты выдачи до скачивания
	ReceiptsDir = "_termos_tmp"
	// WorkDir — приватные каталоги рендеринга
	WorkDir = "_render"
)

// TempSubdirs — все временные подкаталоги, обслуживаемые очисткой.
var TempSubdirs = []string{UploadsDir, ContractsDir, PromissoryDir, ReceiptsDir}

// allowedImageExt — допустимые расширения загружаемых изображений.
var allowedImageExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// FileStore — управление файлами в каталоге хранения.
type FileStore struct {
	// root — корневой каталог хранения (SD_STORAGE_DIR)
	root string
}

// SaveResult — результат сохранения загруженного файла.
type SaveResult struct {
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого
	Checksum string
}

// New создаёт FileStore, создавая корневой и временные подкаталоги.
func New(root string) (*FileStore, error) {
	for _, dir := range append([]string{"", WorkDir}, TempSubdirs...) {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o750); err != nil {
			return nil, fmt.Errorf("%w: не удалось создать каталог %s: %v", ErrStorageIO, filepath.Join(root, dir), err)
		}
	}
	return &FileStore{root: root}, nil
}

// Root возвращает корневой каталог хранения.
func (fs *FileStore) Root() string {
	return fs.root
}

// Dir возвращает абсолютный путь подкаталога.
func (fs *FileStore) Dir(subdir string) string {
	return filepath.Join(fs.root, subdir)
}

// TempDirs возвращает абсолютные пути всех временных подкаталогов.
func (fs *FileStore) TempDirs() []string {
	dirs := make([]string, 0, len(TempSubdirs))
	for _, d := range TempSubdirs {
		dirs = append(dirs, fs.Dir(d))
	}
	return dirs
}

// ProposalPath возвращает постоянный путь PDF предложения.
// Идентификатор в имени исключает коллизии между клиентами с одинаковым именем.
func (fs *FileStore) ProposalPath(clientName string, id int64) string {
	return filepath.Join(fs.root, fmt.Sprintf("PROPOSTA - %s - #%d.pdf", SafeName(clientName), id))
}

// TempOutputPath возвращает уникальный путь результата во временном подкаталоге.
// Формат: {PREFIXO} - {nome}_{timestamp}_{uuid}.pdf
func (fs *FileStore) TempOutputPath(subdir, prefix, name string) string {
	return filepath.Join(fs.root, subdir, generateName(prefix+" - "+SafeName(name), ".pdf"))
}

// SaveUpload сохраняет загруженное изображение в UploadsDir.
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (fs *FileStore) SaveUpload(reader io.Reader, originalFilename string) (*SaveResult, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	if !allowedImageExt[ext] {
		return nil, ErrUnsupportedImage
	}

	name := strings.TrimSuffix(filepath.Base(originalFilename), filepath.Ext(originalFilename))
	fullPath := filepath.Join(fs.root, UploadsDir, generateName(sanitize(name), ext))

	size, checksum, err := writeAtomic(reader, fullPath)
	if err != nil {
		return nil, err
	}
	return &SaveResult{FullPath: fullPath, Size: size, Checksum: checksum}, nil
}

// PlaceFile атомарно помещает копию src по пути target:
// родительские каталоги создаются, копия пишется в уникальный соседний
// временный файл, после fsync переименовывается. При ошибке target не изменяется.
func PlaceFile(src, target string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: ошибка открытия %s: %v", ErrStorageIO, src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("%w: ошибка создания каталога %s: %v", ErrStorageIO, filepath.Dir(target), err)
	}

	_, _, err = writeAtomic(in, target)
	return err
}

// DeleteFile удаляет файл. Возвращает nil, если файла уже нет.
func DeleteFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: ошибка удаления файла %s: %v", ErrStorageIO, path, err)
	}
	return nil
}

// FileExists проверяет существование файла на диске.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// SafeName убирает из имени символы, недопустимые в именах файлов
// (\ / * ? : " < > |) и управляющие, схлопывает пробелы.
// Пустой результат заменяется на "cliente".
func SafeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`\/*?:"<>|`, r), unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	// Точки по краям ломают имена на некоторых ФС
	out = strings.Trim(out, ". ")
	if out == "" {
		return "cliente"
	}
	if r := []rune(out); len(r) > 80 {
		out = strings.TrimSpace(string(r[:80]))
	}
	return out
}

// writeAtomic пишет reader во временный файл рядом с target,
// затем переименовывает его. Возвращает размер и SHA-256.
func writeAtomic(reader io.Reader, target string) (int64, string, error) {
	dir, base := filepath.Split(target)
	f, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return 0, "", fmt.Errorf("%w: ошибка создания временного файла: %v", ErrStorageIO, err)
	}
	tmpPath := f.Name()

	// Streaming запись с одновременным подсчётом SHA-256
	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(reader, hasher))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("%w: ошибка записи данных: %v", ErrStorageIO, err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("%w: ошибка fsync: %v", ErrStorageIO, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("%w: ошибка закрытия файла: %v", ErrStorageIO, err)
	}

	if err := os.Chmod(tmpPath, 0o640); err != nil {
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("%w: ошибка установки прав: %v", ErrStorageIO, err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return 0, "", fmt.Errorf("%w: ошибка атомарного переименования: %v", ErrStorageIO, err)
	}

	return size, hex.EncodeToString(hasher.Sum(nil)), nil
}

// generateName генерирует уникальное имя файла.
// Формат: {name}_{timestamp}_{uuid}{ext}
// Пример: CONTRATO - Maria_20260221150405_a1b2c3d4.pdf
func generateName(name, ext string) string {
	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8] // Короткий UUID для уникальности
	return fmt.Sprintf("%s_%s_%s%s", name, ts, uid, ext)
}

// sanitize убирает небезопасные символы из строки для использования в имени файла.
// Оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	if r := []rune(result.String()); len(r) > 50 {
		return string(r[:50])
	}
	return result.String()
}
