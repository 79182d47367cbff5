package filter

import (
	"os"
	"path/filepath"
	"testing"

	"treekeeper/internal/tree"
)

func file(name string) tree.Entry {
	return tree.Entry{Path: filepath.Join("/data", name), Name: filepath.Base(name), Kind: tree.KindFile}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		name string
		list string
		file string
		want bool
	}{
		{"single match", "log", "app.log", true},
		{"list with separators", "txt; csv,log", "app.log", true},
		{"leading dot tolerated", ".gz", "dump.tar.gz", true},
		{"last extension only", "tar", "dump.tar.gz", false},
		{"no match", "log", "app.txt", false},
		{"all", "*", "anything.bin", true},
		{"none accepts bare name", "?none?", "README", true},
		{"none rejects extension", "?none?", "README.md", false},
		{"none plus list", "?none? md", "README.md", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Extension(tt.list).Accept(file(tt.file)); got != tt.want {
				t.Errorf("Extension(%q).Accept(%q) = %v, want %v", tt.list, tt.file, got, tt.want)
			}
		})
	}
}

func TestPrefixAndContains(t *testing.T) {
	p := Prefix("tmp_", "cache-")
	if !p.Accept(file("cache-01.bin")) || p.Accept(file("data.bin")) {
		t.Error("Prefix mismatch")
	}
	c := Contains("backup")
	if !c.Accept(file("db_backup_01.sql")) || c.Accept(file("db.sql")) {
		t.Error("Contains mismatch")
	}
}

func TestPattern(t *testing.T) {
	p, err := Pattern(`^core\.\d+$`)
	if err != nil {
		t.Fatalf("Pattern: %v", err)
	}
	if !p.Accept(file("core.1234")) || p.Accept(file("core.dump")) {
		t.Error("Pattern mismatch")
	}
	if _, err := Pattern("("); err == nil {
		t.Error("expected error for invalid regexp")
	}
}

func TestGlob(t *testing.T) {
	byName, err := Glob("/data", "*.{log,tmp}")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	byPath, err := Glob("/data", "cache/**/*.bin")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}

	tests := []struct {
		name string
		pred tree.Predicate
		file string
		want bool
	}{
		{"name alternation", byName, "x/y/app.log", true},
		{"name alternation tmp", byName, "a.tmp", true},
		{"name miss", byName, "a.txt", false},
		{"path deep", byPath, "cache/a/b/blob.bin", true},
		{"path shallow", byPath, "cache/blob.bin", true},
		{"path outside", byPath, "other/blob.bin", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred.Accept(file(tt.file)); got != tt.want {
				t.Errorf("Accept(%q) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}

	if _, err := Glob("/data", "[abc"); err == nil {
		t.Error("expected error for invalid glob")
	}
}

func TestTimestampMatch(t *testing.T) {
	tests := []struct {
		name  string
		match string
		shift int
		file  string
		want  bool
	}{
		{"from start", "20240301", 4, "log_20240301_a.txt", true},
		{"from end", "20240301", -1, "app-20240301.log", true},
		{"from end with tail", "20240301", -3, "app-20240301_1.log", true},
		{"wrong date", "20240302", -1, "app-20240301.log", false},
		{"out of range", "20240301", 20, "short.log", false},
		{"negative out of range", "20240301", -1, "a.log", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TimestampMatch(tt.match, tt.shift).Accept(file(tt.file)); got != tt.want {
				t.Errorf("TimestampMatch(%q, %d).Accept(%q) = %v, want %v", tt.match, tt.shift, tt.file, got, tt.want)
			}
		})
	}
}

func TestCombinators(t *testing.T) {
	logs := Extension("log")
	tmp := Prefix("tmp")

	if !Any(logs, tmp).Accept(file("tmp.bin")) {
		t.Error("Any should accept when one predicate does")
	}
	if All(logs, tmp).Accept(file("app.log")) {
		t.Error("All should reject when one predicate does")
	}
	if !All().Accept(file("x")) {
		t.Error("empty All should accept")
	}
	if Any().Accept(file("x")) {
		t.Error("empty Any should reject")
	}
	if Not(logs).Accept(file("app.log")) {
		t.Error("Not should invert")
	}
}

func TestNameField(t *testing.T) {
	tests := []struct {
		name   string
		shift  int
		length int
		want   string
		ok     bool
	}{
		{"seq_0042.dat", 4, 4, "0042", true},
		{"seq_0042.dat", -1, 4, "0042", true},
		{".hidden", 0, 3, ".hi", true},
		{"ab", 1, 5, "", false},
	}
	for _, tt := range tests {
		got, ok := NameField(tt.name, tt.shift, tt.length)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NameField(%q, %d, %d) = %q, %v; want %q, %v", tt.name, tt.shift, tt.length, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMimeType(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) tree.Entry {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}
		return tree.Entry{Path: p, Name: name, Kind: tree.KindFile, Size: int64(len(data))}
	}

	png := write("pixel.dat", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00"))
	txt := write("notes.png", []byte("plain words, not an image\n"))
	missing := tree.Entry{Path: filepath.Join(dir, "gone"), Name: "gone", Kind: tree.KindFile}

	tests := []struct {
		name  string
		types []string
		entry tree.Entry
		want  bool
	}{
		{"exact", []string{"image/png"}, png, true},
		{"wildcard", []string{"image/*"}, png, true},
		{"content wins over name", []string{"image/*"}, txt, false},
		{"text ignores charset", []string{"text/plain"}, txt, true},
		{"any of several", []string{"application/pdf", "text/*"}, txt, true},
		{"unreadable", []string{"*/*", "image/png"}, missing, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MimeType(tt.types...).Accept(tt.entry); got != tt.want {
				t.Errorf("MimeType(%v).Accept(%s) = %v, want %v", tt.types, tt.entry.Name, got, tt.want)
			}
		})
	}
}
