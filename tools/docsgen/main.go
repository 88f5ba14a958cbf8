// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Command docsgen renders the command reference pages (markdown and man)
// from docs/templates/tfrunner.yaml.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

type reference struct {
	Subcommands []subcommand `yaml:"subcommands"`
	Common      struct {
		Flags []flag `yaml:"flags"`
	} `yaml:"common"`
}

type subcommand struct {
	ID          string    `yaml:"id"`
	Short       string    `yaml:"short"`
	Description string    `yaml:"description"`
	Usage       string    `yaml:"usage"`
	Flags       []flag    `yaml:"flags"`
	Examples    []example `yaml:"examples"`
	Notes       []string  `yaml:"notes,omitempty"`
}

type flag struct {
	ID          string `yaml:"id"`
	Syntax      string `yaml:"syntax"`
	Description string `yaml:"description"`
	Default     string `yaml:"default,omitempty"`
	More        string `yaml:"more,omitempty"`
}

type example struct {
	Command     string `yaml:"command"`
	Description string `yaml:"description"`
}

type pageData struct {
	subcommand
	Date    string
	Version string
	IDUpper string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: docsgen <docs-dir>")
		os.Exit(1)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(docs string) error {
	data, err := os.ReadFile(filepath.Join(docs, "templates", "tfrunner.yaml"))
	if err != nil {
		return err
	}
	var ref reference
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return err
	}

	version := gitVersion()
	for _, sub := range ref.Subcommands {
		sub.Flags = mergeFlags(ref.Common.Flags, sub.Flags)

		page := pageData{
			subcommand: sub,
			Date:       time.Now().Format("January 2, 2006"),
			Version:    version,
			IDUpper:    strings.ToUpper(sub.ID),
		}

		md := filepath.Join(docs, "commands", sub.ID+".md")
		if err := render(filepath.Join(docs, "templates", "tfrunner.md.tmpl"), md, page); err != nil {
			return err
		}
		man := filepath.Join(docs, "man", "share", "man1", "tfrunner-"+sub.ID+".1")
		if err := render(filepath.Join(docs, "templates", "tfrunner.man.tmpl"), man, page); err != nil {
			return err
		}
	}
	return nil
}

// mergeFlags joins the shared flags with a subcommand's own, sorted by id.
func mergeFlags(common, own []flag) []flag {
	merged := append(append([]flag{}, common...), own...)
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ID < merged[j].ID
	})
	return merged
}

func render(tmplPath, outPath string, page pageData) error {
	tmpl, err := template.ParseFiles(tmplPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	fmt.Println("Generating", outPath)
	return tmpl.Execute(out, page)
}

// gitVersion returns the most recent tag without its leading "v", or "dev"
// when git describe fails.
func gitVersion() string {
	out, err := exec.Command("git", "describe", "--tags", "--abbrev=0").Output()
	if err != nil {
		return "dev"
	}
	return strings.TrimPrefix(strings.TrimSpace(string(out)), "v")
}
