package application

import (
	"testing"
)

// FuzzParseConfig feeds arbitrary documents to the configuration parser. A
// document either fails or yields a configuration that validates again.
func FuzzParseConfig(f *testing.F) {
	testcases := []string{
		"",
		"annotations:\n  root: /a\nevaluations:\n  root: /b\n",
		"layout:\n  golds_dir: gold\n  prediction_glob: \"*.{mmif,json}\"\n",
		"server:\n  watch_debounce: 1s\n  reload_burst: 3\n",
		"layout:\n  data_drop_pattern: \"(\"\n",
		"max_file_size: -1\n",
		"annotations: [\n",
		"unknown: true\n",
	}
	for _, tc := range testcases {
		f.Add(tc)
	}

	f.Fuzz(func(t *testing.T, doc string) {
		cfg, err := ParseConfig([]byte(doc))
		if err != nil {
			return
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("parsed config does not validate: %v", err)
		}
		if _, err := cfg.Layout.dataDropRegexp(); err != nil {
			t.Fatalf("validated data drop pattern does not compile: %v", err)
		}
	})
}
