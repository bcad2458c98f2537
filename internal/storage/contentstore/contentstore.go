// Пакет contentstore — хранение содержимого файлов на локальном диске.
// Плоская директория blob-ов с непрозрачными именами (UUID) и производных
// копий с детерминированными именами {ref}_{suffix}.
// Ничего не знает о метаданных.
package contentstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound — blob с указанной ссылкой отсутствует на диске.
	ErrNotFound = errors.New("содержимое не найдено")
	// ErrIO — ошибка записи/чтения диска.
	ErrIO = errors.New("ошибка ввода-вывода хранилища")
	// ErrInvalidRef — недопустимая ссылка (разделители пути, "..").
	ErrInvalidRef = errors.New("недопустимая ссылка на содержимое")
)

// Store — управление blob-ами в корневой директории.
type Store struct {
	// root — корневая директория хранения (FM_FOLDER_PATH)
	root string
}

// New создаёт Store. Директория создаётся при первой записи.
func New(root string) *Store {
	return &Store{root: root}
}

// Root возвращает путь к корневой директории.
func (s *Store) Root() string {
	return s.root
}

// Put записывает данные под новым уникальным именем и возвращает ссылку.
func (s *Store) Put(data []byte) (string, error) {
	ref := uuid.New().String()
	if err := s.write(ref, data); err != nil {
		return "", err
	}
	return ref, nil
}

// PutDerived записывает производную копию для ref с суффиксом suffix.
// Повторная запись с тем же суффиксом перезаписывает предыдущую копию.
func (s *Store) PutDerived(ref, suffix string, data []byte) (string, error) {
	if err := checkRef(ref); err != nil {
		return "", err
	}
	if err := checkRef(suffix); err != nil {
		return "", err
	}
	derived := ref + "_" + suffix
	if err := s.write(derived, data); err != nil {
		return "", err
	}
	return derived, nil
}

// DerivedRef возвращает имя производной копии ref для ширины width.
func DerivedRef(ref string, width int) string {
	return ref + "_" + strconv.Itoa(width)
}

// Get читает содержимое по ссылке.
func (s *Store) Get(ref string) ([]byte, error) {
	if err := checkRef(ref); err != nil {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(s.path(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("%w: чтение %s: %v", ErrIO, ref, err)
	}
	return data, nil
}

// Exists проверяет наличие blob-а на диске.
func (s *Store) Exists(ref string) bool {
	if checkRef(ref) != nil {
		return false
	}
	info, err := os.Stat(s.path(ref))
	return err == nil && info.Mode().IsRegular()
}

// Delete удаляет blob. Отсутствующий blob не считается ошибкой.
func (s *Store) Delete(ref string) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	err := os.Remove(s.path(ref))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: удаление %s: %v", ErrIO, ref, err)
	}
	return nil
}

// write — temp файл → запись → fsync → атомарный rename.
// При ошибке temp файл удаляется.
func (s *Store) write(name string, data []byte) error {
	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return fmt.Errorf("%w: создание директории %s: %v", ErrIO, s.root, err)
	}

	fullPath := s.path(name)
	f, err := os.CreateTemp(s.root, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: создание временного файла: %v", ErrIO, err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: запись данных: %v", ErrIO, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: fsync: %v", ErrIO, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: закрытие файла: %v", ErrIO, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: атомарное переименование: %v", ErrIO, err)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, name)
}

// checkRef запрещает выход за пределы корневой директории.
func checkRef(ref string) error {
	if ref == "" || ref == "." || strings.Contains(ref, "..") ||
		strings.ContainsAny(ref, `/\`) || strings.HasPrefix(ref, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return nil
}
