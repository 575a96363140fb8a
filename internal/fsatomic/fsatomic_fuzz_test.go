package fsatomic

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

type record struct {
	A string `json:"a"`
	B int    `json:"b"`
}

// A crash can leave arbitrary bytes in the .tmp file; loading must ignore
// them and still read the last committed state.
func FuzzLoadJSONWithStaleTemp(f *testing.F) {
	f.Add([]byte("{"))
	f.Add([]byte("{\n\"a\":"))
	f.Add([]byte{0x00, 0xff})
	f.Fuzz(func(t *testing.T, partial []byte) {
		path := filepath.Join(t.TempDir(), "state.json")
		want := record{A: "x", B: 1}
		if err := SaveJSON(context.Background(), path, want, 0o600); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path+".tmp", partial, 0o600); err != nil {
			t.Fatal(err)
		}
		var got record
		ok, err := LoadJSON(path, &got)
		if err != nil || !ok {
			t.Fatalf("load: ok=%v err=%v", ok, err)
		}
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
		if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
			t.Fatal("stale temp file survived the load")
		}
	})
}
