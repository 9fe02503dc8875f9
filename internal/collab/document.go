package collab

import (
	"path/filepath"
	"strings"

	"linklearn/pkg/types"
)

// kindByExtension maps file extensions to editor language kinds. Unknown
// extensions fall through to plain text.
var kindByExtension = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".go":   "go",
	".java": "java",
	".c":    "c",
	".cpp":  "cpp",
	".rb":   "ruby",
	".rs":   "rust",
	".html": "html",
	".css":  "css",
	".json": "json",
	".md":   "markdown",
	".sh":   "shell",
	".sql":  "sql",
	".txt":  "plaintext",
}

// templateByKind seeds new entries with a minimal runnable scaffold.
// Kinds without a template start empty.
var templateByKind = map[string]string{
	"python":     "# New file\n",
	"javascript": "// New file\n",
	"typescript": "// New file\n",
	"go":         "package main\n\nfunc main() {\n}\n",
	"java":       "public class Main {\n    public static void main(String[] args) {\n    }\n}\n",
	"c":          "#include <stdio.h>\n\nint main(void) {\n    return 0;\n}\n",
	"cpp":        "#include <iostream>\n\nint main() {\n    return 0;\n}\n",
	"html":       "<!DOCTYPE html>\n<html>\n<body>\n</body>\n</html>\n",
	"shell":      "#!/bin/sh\n",
	"markdown":   "# Notes\n",
}

// KindFromName infers an entry's language kind from its file extension.
func KindFromName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if kind, ok := kindByExtension[ext]; ok {
		return kind
	}
	return "plaintext"
}

// TemplateFor returns the starter content for a language kind. Empty for
// kinds without a scaffold.
func TemplateFor(kind string) string {
	return templateByKind[kind]
}

// defaultDocument is the seed state used when nothing is cached for a
// session yet: one empty entry, selected.
func defaultDocument(kind string) *types.Document {
	name := "main.txt"
	entryKind := "plaintext"
	if kind == "code" {
		name = "main.py"
		entryKind = "python"
	}
	return &types.Document{
		Entries: []types.DocumentEntry{{
			Name:    name,
			Kind:    entryKind,
			Content: TemplateFor(entryKind),
		}},
		ActiveIndex: 0,
	}
}
