package contentstore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestPut_CreatesRootOnFirstUse проверяет ленивое создание корневой директории.
func TestPut_CreatesRootOnFirstUse(t *testing.T) {
	root := filepath.Join(t.TempDir(), "files")
	s := New(root)

	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatalf("директория не должна существовать до первой записи")
	}

	ref, err := s.Put([]byte("hello"))
	if err != nil {
		t.Fatalf("ошибка Put: %v", err)
	}
	if ref == "" {
		t.Fatal("пустая ссылка")
	}

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		t.Fatalf("корневая директория не создана: %v", err)
	}
}

// TestPutGet проверяет запись и чтение содержимого.
func TestPutGet(t *testing.T) {
	s := New(t.TempDir())
	content := []byte("Тестовые данные")

	ref, err := s.Put(content)
	if err != nil {
		t.Fatalf("ошибка Put: %v", err)
	}

	if !s.Exists(ref) {
		t.Error("Exists: ожидалось true")
	}

	got, err := s.Get(ref)
	if err != nil {
		t.Fatalf("ошибка Get: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("содержимое: ожидалось %q, получено %q", content, got)
	}
}

// TestPut_UniqueRefs проверяет уникальность имён.
func TestPut_UniqueRefs(t *testing.T) {
	s := New(t.TempDir())

	seen := make(map[string]bool)
	for range 20 {
		ref, err := s.Put([]byte("x"))
		if err != nil {
			t.Fatalf("ошибка Put: %v", err)
		}
		if seen[ref] {
			t.Fatalf("повторная ссылка %s", ref)
		}
		seen[ref] = true
	}
}

// TestPut_NoTempFilesLeft проверяет, что после записи не остаётся временных файлов.
func TestPut_NoTempFilesLeft(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	if _, err := s.Put([]byte("data")); err != nil {
		t.Fatalf("ошибка Put: %v", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ошибка чтения директории: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("ожидался 1 файл, найдено %d", len(entries))
	}
}

// TestGet_NotFound проверяет ошибку для несуществующей ссылки.
func TestGet_NotFound(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.Get("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
	if s.Exists("missing") {
		t.Error("Exists: ожидалось false")
	}
}

// TestPutDerived_Overwrites проверяет идемпотентную перезапись производной копии.
func TestPutDerived_Overwrites(t *testing.T) {
	s := New(t.TempDir())

	ref, err := s.Put([]byte("original"))
	if err != nil {
		t.Fatalf("ошибка Put: %v", err)
	}

	derived, err := s.PutDerived(ref, "250", []byte("v1"))
	if err != nil {
		t.Fatalf("ошибка PutDerived: %v", err)
	}
	if derived != DerivedRef(ref, 250) {
		t.Errorf("имя производной: ожидалось %s, получено %s", DerivedRef(ref, 250), derived)
	}

	if _, err := s.PutDerived(ref, "250", []byte("v2")); err != nil {
		t.Fatalf("ошибка повторного PutDerived: %v", err)
	}

	got, err := s.Get(derived)
	if err != nil {
		t.Fatalf("ошибка Get: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("ожидалось v2, получено %q", got)
	}

	original, _ := s.Get(ref)
	if string(original) != "original" {
		t.Errorf("оригинал изменён: %q", original)
	}
}

// TestInvalidRefs проверяет защиту от выхода за пределы корня.
func TestInvalidRefs(t *testing.T) {
	s := New(t.TempDir())

	for _, ref := range []string{"", "../etc/passwd", "a/b", `a\b`, ".hidden", ".."} {
		if _, err := s.Get(ref); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q): ожидалась ErrNotFound, получено %v", ref, err)
		}
		if _, err := s.PutDerived(ref, "100", []byte("x")); !errors.Is(err, ErrInvalidRef) {
			t.Errorf("PutDerived(%q): ожидалась ErrInvalidRef, получено %v", ref, err)
		}
	}
}

// TestDelete проверяет удаление и идемпотентность.
func TestDelete(t *testing.T) {
	s := New(t.TempDir())

	ref, err := s.Put([]byte("x"))
	if err != nil {
		t.Fatalf("ошибка Put: %v", err)
	}

	if err := s.Delete(ref); err != nil {
		t.Fatalf("ошибка Delete: %v", err)
	}
	if s.Exists(ref) {
		t.Error("файл не удалён")
	}
	if err := s.Delete(ref); err != nil {
		t.Errorf("повторный Delete: %v", err)
	}
}

// TestPut_UnwritableRoot проверяет ErrIO, если корень — обычный файл.
func TestPut_UnwritableRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o640); err != nil {
		t.Fatalf("ошибка подготовки: %v", err)
	}

	s := New(file)
	if _, err := s.Put([]byte("data")); !errors.Is(err, ErrIO) {
		t.Errorf("ожидалась ErrIO, получено %v", err)
	}
}
