// Package main implements the genconfig tool that writes config.default.toml
// from config.ExampleConfig().
//
// It is invoked by go generate via the directive in internal/config/config.go.
package main

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/avatarcard/internal/config"
)

// outPath is relative to internal/config, where go generate runs. The root
// package embeds the file from there.
const outPath = "../../config.default.toml"

func main() {
	out, err := render(config.ExampleConfig(), config.ConfigDocs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "genconfig: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", outPath, err)
		os.Exit(1)
	}
	fmt.Printf("wrote config.default.toml\n")
}

// render encodes cfg and annotates every key and table with its docs entry.
func render(cfg *config.Config, docs map[string]config.FieldDoc) (string, error) {
	var raw bytes.Buffer
	if err := toml.NewEncoder(&raw).Encode(cfg); err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	out := []string{
		"# ///////////////////////////////////////////////",
		"# avatarcard Configuration",
		"# ///////////////////////////////////////////////",
		"",
	}

	var sectionStack []string
	emitted := map[string]bool{}

	for _, line := range strings.Split(raw.String(), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "[[") {
			injectOmitted(&out, sectionStack, emitted, docs)

			section := strings.Trim(trimmed, "[] ")
			sectionStack = parseSectionPath(section)

			out = append(out, "", fmt.Sprintf("# ///// %s /////", sectionName(section)), "")
			out = appendComment(out, docs[section].Comment)
			out = append(out, trimmed)
			continue
		}

		if !strings.Contains(trimmed, "=") || strings.HasPrefix(trimmed, "#") {
			out = append(out, trimmed)
			continue
		}

		key := strings.TrimSpace(strings.SplitN(trimmed, "=", 2)[0])
		fullPath := key
		if len(sectionStack) > 0 {
			fullPath = strings.Join(sectionStack, ".") + "." + key
		}
		emitted[fullPath] = true

		doc := docs[fullPath]
		out = appendComment(out, doc.Comment)
		out = append(out, trimmed)
		for _, alt := range doc.Alternatives {
			out = append(out, "# "+alt)
		}
	}
	injectOmitted(&out, sectionStack, emitted, docs)

	return strings.TrimRight(strings.Join(out, "\n"), "\n") + "\n", nil
}

// appendComment adds comment as "# " lines.
func appendComment(out []string, comment string) []string {
	if comment == "" {
		return out
	}
	for _, cl := range strings.Split(comment, "\n") {
		out = append(out, "# "+cl)
	}
	return out
}

// injectOmitted appends commented-out entries for documented keys of the
// current section that the encoder did not emit, sorted by key.
func injectOmitted(out *[]string, sectionStack []string, emitted map[string]bool, docs map[string]config.FieldDoc) {
	if len(sectionStack) == 0 {
		return
	}
	prefix := strings.Join(sectionStack, ".") + "."

	var omitted []string
	for path := range docs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(rest, ".") || emitted[path] {
			continue
		}
		omitted = append(omitted, path)
	}
	sort.Strings(omitted)

	for _, path := range omitted {
		doc := docs[path]
		*out = append(*out, "")
		*out = appendComment(*out, doc.Comment)
		for _, alt := range doc.Alternatives {
			*out = append(*out, "# "+alt)
		}
		emitted[path] = true
	}
}

// parseSectionPath splits a dotted TOML section header into its segments.
func parseSectionPath(section string) []string {
	return strings.Split(section, ".")
}

// sectionName returns the last dotted segment of a header, capitalized.
// "quote" yields "Quote".
func sectionName(section string) string {
	parts := strings.Split(section, ".")
	last := parts[len(parts)-1]
	if len(last) == 0 {
		return ""
	}
	return strings.ToUpper(last[:1]) + last[1:]
}
