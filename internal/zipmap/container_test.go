package zipmap

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func openContainer(t *testing.T, a *archive) (*Container, error) {
	t.Helper()
	data := a.bytes(t)
	return OpenContainer(bytes.NewReader(data), int64(len(data)))
}

func TestOpenContainer_NotAZip(t *testing.T) {
	data := []byte("definitely not a zip file")
	_, err := OpenContainer(bytes.NewReader(data), int64(len(data)))
	if !errors.Is(err, ErrMalformedArchive) {
		t.Errorf("error = %v, want ErrMalformedArchive", err)
	}
}

func TestOpenContainer_CaseCollision(t *testing.T) {
	a := newArchive().
		add("song.egg", []byte("a")).
		add("Song.egg", []byte("b"))

	_, err := openContainer(t, a)
	if !errors.Is(err, ErrMalformedArchive) {
		t.Errorf("error = %v, want ErrMalformedArchive", err)
	}
}

func TestOpenContainer_RejectsEscapingNames(t *testing.T) {
	tests := []string{"../evil.dat", "/abs.dat", `dir\file.dat`}

	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := openContainer(t, newArchive().add(name, []byte("x")))
			if !errors.Is(err, ErrMalformedArchive) {
				t.Errorf("error = %v, want ErrMalformedArchive", err)
			}
		})
	}
}

func TestContainer_Resolve(t *testing.T) {
	c, err := openContainer(t, newArchive().
		add("Info.dat", []byte("{}")).
		add("maps/ExpertPlus.dat", []byte("{}")))
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}

	tests := []struct {
		query string
		want  string
		found bool
	}{
		{"info.dat", "Info.dat", true},
		{"INFO.DAT", "Info.dat", true},
		{"maps/expertplus.dat", "maps/ExpertPlus.dat", true},
		{"./maps/../maps/ExpertPlus.dat", "maps/ExpertPlus.dat", true},
		{"maps", "", false},
		{"missing.dat", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, ok := c.Resolve(tt.query)
			if ok != tt.found || got != tt.want {
				t.Errorf("Resolve(%q) = (%q, %v), want (%q, %v)", tt.query, got, ok, tt.want, tt.found)
			}
		})
	}
}

func TestContainer_Directories(t *testing.T) {
	c, err := openContainer(t, newArchive().
		add("a/b/c.dat", []byte("x")).
		add("d/", nil))
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}

	got := strings.Join(c.Directories(), ",")
	if got != "a,a/b,d" {
		t.Errorf("Directories = %q, want %q", got, "a,a/b,d")
	}
	if !c.IsDir("A/B") {
		t.Error("IsDir(A/B) = false, want true")
	}
	if c.IsDir("a/b/c.dat") {
		t.Error("IsDir(a/b/c.dat) = true, want false")
	}
	if files := c.Files(); len(files) != 1 || files[0] != "a/b/c.dat" {
		t.Errorf("Files = %v, want [a/b/c.dat]", files)
	}
}

func TestContainer_Open(t *testing.T) {
	c, err := openContainer(t, newArchive().add("Easy.dat", []byte("payload")))
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}

	rc, err := c.Open("Easy.dat")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "payload" {
		t.Errorf("content = %q, want payload", data)
	}

	if _, err := c.Open("easy.dat"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Open with folded case: error = %v, want ErrEntryNotFound", err)
	}
}

func TestContainer_FindInfo(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		want    string
		wantErr error
	}{
		{"root", []string{"Info.dat", "Easy.dat"}, "Info.dat", nil},
		{"any case", []string{"info.DAT"}, "info.DAT", nil},
		{"nested", []string{"MyMap/Info.dat"}, "MyMap/Info.dat", nil},
		{"shallowest wins", []string{"sub/Info.dat", "Info.dat"}, "Info.dat", nil},
		{"missing", []string{"Easy.dat"}, "", ErrMissingInfoDocument},
		{"ambiguous", []string{"a/Info.dat", "b/info.dat"}, "", ErrAmbiguousInfoDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newArchive()
			for _, f := range tt.files {
				a.add(f, []byte("{}"))
			}
			c, err := openContainer(t, a)
			if err != nil {
				t.Fatalf("OpenContainer: %v", err)
			}

			got, err := c.findInfo()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("findInfo: %v", err)
			}
			if got != tt.want {
				t.Errorf("findInfo = %q, want %q", got, tt.want)
			}
		})
	}
}
