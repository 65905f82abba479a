package theme

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadByName(t *testing.T) {
	t.Setenv("HISTVIEW_HOME", t.TempDir())

	dark, err := LoadByName("")
	if err != nil || dark.Name != "dark" {
		t.Fatalf("empty name: %v %q", err, dark.Name)
	}
	if light, err := LoadByName("light"); err != nil || light.GetMarkdown() != "light" {
		t.Errorf("light: %v %+v", err, light)
	}
	if _, err := LoadByName("nope"); err == nil {
		t.Error("expected an error for an unknown theme")
	}
}

func TestUserTheme(t *testing.T) {
	t.Setenv("HISTVIEW_HOME", t.TempDir())
	dir, _ := ThemesDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	data := "description = \"Mine\"\naccent = \"#FF0000\"\n[author]\nfg = \"#00FF00\"\n"
	if err := os.WriteFile(filepath.Join(dir, "mine.toml"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	mine, err := LoadByName("mine")
	if err != nil {
		t.Fatal(err)
	}
	if mine.Name != "mine" || mine.Accent != "#FF0000" || mine.Author.Fg != "#00FF00" {
		t.Errorf("user theme not applied: %+v", mine)
	}
	if mine.Date != DefaultTheme().Date {
		t.Error("missing fields should fall back to the dark theme")
	}

	themes, err := ListAvailable()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, m := range themes {
		names = append(names, m.Name)
	}
	if diff := cmp.Diff([]string{"dark", "light", "plain", "mine"}, names); diff != "" {
		t.Errorf("themes (-want +got):\n%s", diff)
	}
	if Next("plain") != "mine" || Next("mine") != "dark" || Next("gone") != "dark" {
		t.Error("Next does not cycle through themes")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("HISTVIEW_HOME", t.TempDir())
	custom := DefaultTheme()
	custom.Accent = "#123456"
	if err := Save("custom", custom); err != nil {
		t.Fatal(err)
	}
	got, err := LoadByName("custom")
	if err != nil {
		t.Fatal(err)
	}
	custom.Name = "custom"
	if diff := cmp.Diff(custom, got); diff != "" {
		t.Errorf("saved theme (-want +got):\n%s", diff)
	}
}
