package testutils

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// TestingT is the subset of *testing.T used by the fixture helpers.
type TestingT interface {
	Helper()
	Logf(format string, args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
}

// CheckGoldenFile compares actual with the content of expectFilePath.
// A missing file is written with actual. JSON files are compared after
// re-indenting both sides so that key order and spacing don't matter.
func CheckGoldenFile(t TestingT, actual []byte, expectFilePath string) {
	t.Helper()

	expect, err := os.ReadFile(expectFilePath)
	if os.IsNotExist(err) {
		err = os.MkdirAll(filepath.Dir(expectFilePath), 0755)
		if err != nil {
			t.Fatal(err)
		}
		err = os.WriteFile(expectFilePath, actual, 0444)
		if err != nil {
			t.Fatal(err)
		}
		t.Logf("golden file %s is created", expectFilePath)
		return
	} else if err != nil {
		t.Error(err)
		return
	}

	if strings.HasSuffix(expectFilePath, ".json") {
		expect = normalizeJSON(t, expect)
		actual = normalizeJSON(t, actual)
	}

	if !bytes.Equal(expect, actual) {
		diff := difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(expect)),
			B:        difflib.SplitLines(string(actual)),
			FromFile: expectFilePath,
			ToFile:   "actual",
			Context:  5,
		}
		d, err := difflib.GetUnifiedDiffString(diff)
		if err != nil {
			t.Fatal(err)
		}
		t.Error(d)
	}
}

func normalizeJSON(t TestingT, b []byte) []byte {
	t.Helper()

	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("invalid json: %s", err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	return append(out, '\n')
}
