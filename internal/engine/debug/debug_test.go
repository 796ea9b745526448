package debug

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/physbox/pkg/math"
)

func TestBoxWireframe(t *testing.T) {
	v := BoxWireframe(math.Vec3{}, math.Vec3{X: 1, Y: 2, Z: 3}, 0.5)
	if len(v) != BoxVertexCount*3 {
		t.Fatalf("got %d floats, want %d", len(v), BoxVertexCount*3)
	}
	for i := 0; i < len(v); i += 3 {
		x, y, z := v[i], v[i+1], v[i+2]
		if (x != -0.5 && x != 1.5) || (y != -0.5 && y != 2.5) || (z != -0.5 && z != 3.5) {
			t.Fatalf("vertex %d (%v, %v, %v) is not a padded corner", i/3, x, y, z)
		}
	}
}

func TestGridLines(t *testing.T) {
	v := GridLines(2, 1, 0)
	// 5 positions, 2 lines each, 2 endpoints of 3 floats
	if len(v) != 5*12 {
		t.Fatalf("got %d floats, want %d", len(v), 5*12)
	}
	if GridLines(0, 1, 0) != nil {
		t.Error("empty grid should be nil")
	}
}

func TestScreenshotsSave(t *testing.T) {
	s := &Screenshots{
		Dir:    filepath.Join(t.TempDir(), "shots"),
		Prefix: "physbox",
		Now:    func() time.Time { return time.Date(2024, 3, 1, 12, 30, 5, 0, time.UTC) },
	}
	// 1x2: bottom row red, top row blue
	pixels := []byte{255, 0, 0, 255, 0, 0, 255, 255}

	path, err := s.Save(pixels, 1, 2)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != "physbox_2024-03-01_12-30-05.png" {
		t.Errorf("unexpected file name %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r, _, b, _ := img.At(0, 0).RGBA(); b == 0 || r != 0 {
		t.Errorf("top pixel should be blue after the flip")
	}

	if _, err := s.Save(pixels[:4], 1, 2); err == nil {
		t.Error("expected size mismatch error")
	}
}
