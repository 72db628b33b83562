package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbedded_Has31Regions(t *testing.T) {
	loaded := Embedded()
	if got := len(loaded.Bundle.Regions); got != 31 {
		t.Fatalf("regions=%d want=31", got)
	}
	if loaded.Bundle.Regions[0].Code != "MX-CMX" {
		t.Fatalf("first region=%s want=MX-CMX", loaded.Bundle.Regions[0].Code)
	}
	if loaded.SHA256 == "" || loaded.Source != EmbeddedSource {
		t.Fatalf("unexpected meta: %+v", loaded)
	}
}

func TestLoader_EmptyPathUsesEmbedded(t *testing.T) {
	loaded, err := NewLoader("").Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Source != EmbeddedSource {
		t.Fatalf("source=%s", loaded.Source)
	}
}

func TestLoader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	raw := `version: "1"
bundle_type: region_catalog
regions:
  - { code: MX-CMX, name: "CIUDAD DE MÉXICO" }
  - { code: MX-HID, name: "HIDALGO" }
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := NewLoader(path).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Bundle.Regions) != 2 || loaded.Bundle.Regions[1].DisplayName != "HIDALGO" {
		t.Fatalf("unexpected regions: %+v", loaded.Bundle.Regions)
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want string
	}{
		"missing version": {
			raw:  "bundle_type: x\nregions:\n  - { code: A, name: a }\n",
			want: "version is required",
		},
		"empty regions": {
			raw:  "version: \"1\"\nbundle_type: x\nregions: []\n",
			want: "regions is empty",
		},
		"duplicate": {
			raw:  "version: \"1\"\nbundle_type: x\nregions:\n  - { code: A, name: a }\n  - { code: A, name: b }\n",
			want: "duplicate region code: A",
		},
		"missing name": {
			raw:  "version: \"1\"\nbundle_type: x\nregions:\n  - { code: A, name: \"\" }\n",
			want: "region name is required: A",
		},
		"not yaml": {
			raw:  "version: [",
			want: "parse region catalog",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw), "test")
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v want contains %q", err, tc.want)
			}
		})
	}
}

func TestLoader_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLoader("").Load(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}
